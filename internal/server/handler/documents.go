package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/store"
)

// DocumentsHandler serves the pipeline & documents surface of §6: listing,
// filtering, searching, and retrieving generated artifact bundles, plus
// the owner/admin-only mutation endpoints (tags, delete, test-upload).
type DocumentsHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewDocumentsHandler returns a DocumentsHandler.
func NewDocumentsHandler(s *store.Store, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{store: s, logger: logger}
}

func (h *DocumentsHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		h.logger.Error("documents handler error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// List handles GET /projects/{id}/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	versions, err := h.store.ListVersions(r.Context(), projectID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// Filters handles GET /projects/{id}/documents/filters.
func (h *DocumentsHandler) Filters(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	commits, branches, tags, err := h.store.Filters(r.Context(), projectID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commits":  commits,
		"branches": branches,
		"tags":     tags,
	})
}

type searchRequest struct {
	Query  string   `json:"query"`
	Branch string   `json:"branch"`
	Commit string   `json:"commit"`
	Tags   []string `json:"tags"`
}

// Search handles POST /projects/{id}/documents/search.
func (h *DocumentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	hits, err := h.store.Search(r.Context(), projectID, req.Query, req.Branch, req.Commit, req.Tags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

// GetCommit handles GET /projects/{id}/documents/{commit}: metadata plus a
// content index (the set of artifact paths available for this commit).
func (h *DocumentsHandler) GetCommit(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	commit := chi.URLParam(r, "commit")

	meta, err := h.store.GetMetadata(r.Context(), projectID, commit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	content, err := h.store.GetContent(r.Context(), projectID, commit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	paths := make([]string, 0, len(content))
	for p := range content {
		paths = append(paths, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata": meta,
		"content":  paths,
	})
}

// GetSummary handles GET /projects/{id}/documents/{commit}/summary.
func (h *DocumentsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, h.store.GetSummary)
}

// GetReadme handles GET /projects/{id}/documents/{commit}/readme.
func (h *DocumentsHandler) GetReadme(w http.ResponseWriter, r *http.Request) {
	h.serveArtifact(w, r, h.store.GetReadme)
}

// GetMetadataFile handles GET /projects/{id}/documents/{commit}/metadata.
func (h *DocumentsHandler) GetMetadataFile(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	commit := chi.URLParam(r, "commit")
	meta, err := h.store.GetMetadata(r.Context(), projectID, commit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *DocumentsHandler) serveArtifact(w http.ResponseWriter, r *http.Request, get func(ctx context.Context, projectID, commit string) ([]byte, error)) {
	projectID := chi.URLParam(r, "id")
	commit := chi.URLParam(r, "commit")

	content, err := get(r.Context(), projectID, commit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// PutTags handles PUT /projects/{id}/documents/{commit}/tags.
type putTagsRequest struct {
	Tags    []string `json:"tags"`
	Version string   `json:"version"`
}

func (h *DocumentsHandler) PutTags(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	commit := chi.URLParam(r, "commit")

	var req putTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateTags(r.Context(), projectID, commit, req.Tags, req.Version); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /projects/{id}/documents/{commit}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	commit := chi.URLParam(r, "commit")

	if err := h.store.Delete(r.Context(), projectID, commit); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type testUploadRequest struct {
	CommitHash  string            `json:"commitHash"`
	Title       string            `json:"title"`
	Summary     string            `json:"summary"`
	Docs        map[string]string `json:"docs"`
	Branch      string            `json:"branch"`
	Description string            `json:"description"`
	Tags        []string          `json:"tags"`
	Version     string            `json:"version"`
}

// TestUpload handles POST /projects/{id}/documents/test-upload: a
// synthetic upload bypassing the full pipeline, for exercising the
// Artifact Store's contract directly (tests, demos).
func (h *DocumentsHandler) TestUpload(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req testUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.CommitHash == "" {
		http.Error(w, "commitHash is required", http.StatusBadRequest)
		return
	}
	if req.Branch == "" {
		req.Branch = "main"
	}

	var bundle core.DocumentBundle
	bundle.Set(core.SummaryPath, []byte(req.Summary))
	for path, content := range req.Docs {
		bundle.Set(path, []byte(content))
	}

	meta := core.Metadata{
		Version:     req.Version,
		Branch:      req.Branch,
		Commit:      req.CommitHash,
		Tags:        req.Tags,
		Title:       req.Title,
		Description: req.Description,
	}
	version := core.DocumentVersion{
		Branch:      req.Branch,
		VersionTag:  req.Version,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		SummaryPath: core.SummaryPath,
	}

	if err := h.store.Upload(r.Context(), projectID, req.CommitHash, bundle, meta, version); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
