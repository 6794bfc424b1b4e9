package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/grantpilot/grantpilot/internal/api"
	"github.com/grantpilot/grantpilot/internal/api/middleware"
	"github.com/grantpilot/grantpilot/internal/pagination"
	"github.com/grantpilot/grantpilot/internal/repository"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

type AuditLister interface {
	ListByScope(ctx context.Context, ownerScope string, cursor *pagination.Cursor, limit int) (*repository.AuditPageResult, error)
}

type AuditHandler struct {
	repo AuditLister
}

func NewAuditHandler(repo AuditLister) *AuditHandler {
	return &AuditHandler{repo: repo}
}

type AuditEntryResponse struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Actor     string            `json:"actor,omitempty"`
	Action    string            `json:"action"`
	SubjectID string            `json:"subject_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

type AuditListResponse struct {
	Entries []*AuditEntryResponse `json:"entries"`
	Cursor  string                `json:"cursor,omitempty"`
	HasMore bool                  `json:"has_more"`
}

// List returns the caller's audit trail newest-first, keyset-paginated.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := middleware.GetScope(r.Context())

	limit := defaultAuditPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}

	var cursor *pagination.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		decoded, err := pagination.DecodeCursor(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = decoded
	}

	page, err := h.repo.ListByScope(r.Context(), scope, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	entries := make([]*AuditEntryResponse, len(page.Items))
	for i, e := range page.Items {
		entries[i] = &AuditEntryResponse{
			ID:        e.ID,
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Actor:     e.Actor,
			Action:    string(e.Action),
			SubjectID: e.SubjectID,
			Details:   e.Details,
		}
	}

	api.Success(w, http.StatusOK, AuditListResponse{
		Entries: entries,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}
