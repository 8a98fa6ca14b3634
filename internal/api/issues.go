package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/store"
	"github.com/go-chi/chi/v5"
)

// IssueHandler exposes recorded escalation issues.
type IssueHandler struct {
	repo   store.IssueRepository
	logger *slog.Logger
}

// NewIssueHandler creates an IssueHandler.
func NewIssueHandler(repo store.IssueRepository, logger *slog.Logger) *IssueHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssueHandler{repo: repo, logger: logger}
}

// RegisterRoutes mounts the issue endpoints.
func (h *IssueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/issues", h.ListOpen)
	r.Get("/api/issues/{id}", h.Get)
}

// ListOpen returns every open issue, oldest first.
func (h *IssueHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	issues, err := h.repo.ListOpen(r.Context())
	if err != nil {
		h.logger.Error("Failed to list issues", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list issues")
		return
	}
	if issues == nil {
		issues = []*domain.Issue{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

// Get returns a single issue.
func (h *IssueHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	issue, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get issue", "issue_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to get issue")
		return
	}
	if issue == nil {
		Error(w, http.StatusNotFound, "issue not found")
		return
	}
	JSON(w, http.StatusOK, issue)
}
