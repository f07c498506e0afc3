package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/livingdocs/pipeline/internal/config"
	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/providerauth"
	"github.com/livingdocs/pipeline/internal/server/handler"
	"github.com/livingdocs/pipeline/internal/store"
)

// NewRouter builds the chi router for the orchestrator's HTTP API: the
// webhook ingestion endpoint (public, HMAC-validated) and the documents
// surface (bearer-token authenticated, capability-gated per §9).
//
// Route ordering follows §6's invariant: literal subpaths (/filters,
// /search) are registered before the parametric /{commit} route so they
// are never shadowed by it. chi's router already sorts static routes
// ahead of wildcard ones internally, but the registration order here
// mirrors that invariant explicitly for readability.
func NewRouter(cfg *config.Config, dispatcher core.JobDispatcher, objStore *store.Store, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	resolveToken := func(ctx context.Context, installationID int64) (string, error) {
		return providerauth.InstallationToken(ctx, cfg, installationID)
	}
	webhookHandler := handler.NewWebhookHandler(cfg, dispatcher, resolveToken, logger)
	r.Post("/webhooks/{provider}", webhookHandler.Handle)

	docsHandler := handler.NewDocumentsHandler(objStore, logger)

	r.Route("/projects/{id}/documents", func(r chi.Router) {
		r.Use(Authenticate(cfg))
		r.Use(Authorize(core.CapReadDocs))

		r.Get("/filters", docsHandler.Filters)
		r.Post("/search", docsHandler.Search)
		r.Get("/", docsHandler.List)

		r.Get("/{commit}", docsHandler.GetCommit)
		r.Get("/{commit}/summary", docsHandler.GetSummary)
		r.Get("/{commit}/readme", docsHandler.GetReadme)
		r.Get("/{commit}/metadata", docsHandler.GetMetadataFile)

		r.Group(func(r chi.Router) {
			r.Use(Authorize(core.CapWriteDocs))
			r.Put("/{commit}/tags", docsHandler.PutTags)
			r.Delete("/{commit}", docsHandler.Delete)
			r.Post("/test-upload", docsHandler.TestUpload)
		})
	})

	return r
}
