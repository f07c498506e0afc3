package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/livingdocs/pipeline/internal/config"
	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/orchestrator"
)

// WebhookHandler verifies and dispatches provider push events (§4.9,
// §6): it is the one endpoint in the HTTP API that is public, HMAC
// validated rather than bearer-token authenticated.
type WebhookHandler struct {
	cfg          *config.Config
	dispatcher   core.JobDispatcher
	resolveToken func(ctx context.Context, installationID int64) (string, error)
	logger       *slog.Logger
}

// NewWebhookHandler returns a WebhookHandler. resolveToken exchanges a
// GitHub App installation id for a short-lived installation token before
// the trigger is dispatched, so the Delivery Agent never needs to know
// about app auth (see internal/providerauth.InstallationToken).
func NewWebhookHandler(cfg *config.Config, dispatcher core.JobDispatcher, resolveToken func(ctx context.Context, installationID int64) (string, error), logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, dispatcher: dispatcher, resolveToken: resolveToken, logger: logger}
}

// Handle processes POST /webhooks/{provider}.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if err := orchestrator.VerifySignature(body, r.Header.Get("X-Hub-Signature-256"), h.cfg.Provider.WebhookSecret); err != nil {
		h.logger.Warn("webhook signature verification failed", "provider", provider)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		projectID = r.Header.Get("X-Project-Id")
	}

	trigger, err := orchestrator.ParsePushEvent(projectID, body)
	if err != nil {
		h.logger.Warn("failed to parse push event", "error", err)
		http.Error(w, "malformed push event", http.StatusBadRequest)
		return
	}

	if trigger.InstallationID != 0 && h.resolveToken != nil {
		token, err := h.resolveToken(r.Context(), trigger.InstallationID)
		if err != nil {
			h.logger.Error("failed to resolve installation token", "error", err, "installation_id", trigger.InstallationID)
			http.Error(w, "failed to authenticate installation", http.StatusBadGateway)
			return
		}
		trigger.Token = token
	} else if h.cfg.Provider.Token != "" {
		trigger.Token = h.cfg.Provider.Token
	}

	if err := h.dispatcher.Dispatch(r.Context(), trigger); err != nil {
		h.logger.Error("failed to dispatch pipeline trigger", "error", err, "key", trigger.Key())
		http.Error(w, "failed to queue pipeline run", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("accepted"))
}
