package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grantpilot/grantpilot/internal/api"
	"github.com/grantpilot/grantpilot/internal/api/middleware"
	"github.com/grantpilot/grantpilot/internal/domain"
)

type ApprovalService interface {
	ListPending(ctx context.Context, ownerScope string) ([]*domain.ApprovalRequest, error)
	GetRequest(ctx context.Context, requestID string) (*domain.ApprovalRequest, error)
	Decide(ctx context.Context, requestID string, status domain.ApprovalStatus, actor, notes string) (*domain.ApprovalRequest, error)
}

// DraftArchive stores approved draft text for later release through grants.
// Nil when object storage is not configured.
type DraftArchive interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

type ApprovalHandler struct {
	svc     ApprovalService
	archive DraftArchive
}

func NewApprovalHandler(svc ApprovalService, archive DraftArchive) *ApprovalHandler {
	return &ApprovalHandler{svc: svc, archive: archive}
}

type ApprovalResponse struct {
	ID              string                   `json:"id"`
	OriginRequestID string                   `json:"origin_request_id"`
	ResponseText    string                   `json:"response_text,omitempty"`
	Evaluation      domain.EvaluationResult  `json:"evaluation"`
	Sensitivity     domain.SensitivityReport `json:"sensitivity"`
	Status          string                   `json:"status"`
	CreatedAt       string                   `json:"created_at"`
	DecidedAt       string                   `json:"decided_at,omitempty"`
	DecidedBy       string                   `json:"decided_by,omitempty"`
	DecisionNotes   string                   `json:"decision_notes,omitempty"`
}

type ApprovalListResponse struct {
	Requests []*ApprovalResponse `json:"requests"`
}

type DecisionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

func toApprovalResponse(a *domain.ApprovalRequest) *ApprovalResponse {
	resp := &ApprovalResponse{
		ID:              a.ID,
		OriginRequestID: a.OriginRequestID,
		ResponseText:    a.ResponseText,
		Evaluation:      a.Evaluation,
		Sensitivity:     a.Sensitivity,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
		DecidedBy:       a.DecidedBy,
		DecisionNotes:   a.DecisionNotes,
	}
	if a.DecidedAt != nil {
		resp.DecidedAt = a.DecidedAt.Format(time.RFC3339)
	}
	return resp
}

// ListPending returns undecided approval requests for the caller's scope in
// submission order.
func (h *ApprovalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	scope := middleware.GetScope(r.Context())

	requests, err := h.svc.ListPending(r.Context(), scope)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ApprovalResponse, len(requests))
	for i, req := range requests {
		responses[i] = toApprovalResponse(req)
	}

	api.Success(w, http.StatusOK, ApprovalListResponse{Requests: responses})
}

func (h *ApprovalHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	request, err := h.svc.GetRequest(r.Context(), requestID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if request.OwnerScope != middleware.GetScope(r.Context()) {
		api.HandleError(w, domain.ErrApprovalNotFound)
		return
	}

	api.Success(w, http.StatusOK, toApprovalResponse(request))
}

// Decide applies a one-way approve/deny decision. Deciding an already
// decided request is a conflict, not an overwrite. Requests outside the
// caller's scope are treated as not found.
func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	actor := middleware.GetActor(r.Context())

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var status domain.ApprovalStatus
	switch req.Decision {
	case "approve", string(domain.ApprovalStatusApproved):
		status = domain.ApprovalStatusApproved
	case "deny", string(domain.ApprovalStatusDenied):
		status = domain.ApprovalStatusDenied
	default:
		api.Error(w, http.StatusBadRequest, "decision must be approve or deny")
		return
	}

	request, err := h.svc.GetRequest(r.Context(), requestID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if request.OwnerScope != middleware.GetScope(r.Context()) {
		api.HandleError(w, domain.ErrApprovalNotFound)
		return
	}

	decided, err := h.svc.Decide(r.Context(), requestID, status, actor, req.Notes)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	// Approved drafts are archived so grant holders can fetch them later
	// even if the approval record is pruned. Archive failures do not fail
	// the decision; the response text remains available inline.
	if status == domain.ApprovalStatusApproved && h.archive != nil {
		key := "drafts/" + decided.OriginRequestID
		if err := h.archive.PutObject(r.Context(), key, []byte(decided.ResponseText), "text/plain; charset=utf-8"); err != nil {
			log.Printf("draft archive failed for %s: %v", key, err)
		}
	}

	api.Success(w, http.StatusOK, toApprovalResponse(decided))
}
