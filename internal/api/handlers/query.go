package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/grantpilot/grantpilot/internal/api"
	"github.com/grantpilot/grantpilot/internal/api/middleware"
	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/service"
)

type QueryService interface {
	SubmitQuery(ctx context.Context, scope, actor, text string) (*service.QueryResult, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query string `json:"query"`
}

type QueryResponse struct {
	RequestID         string                   `json:"request_id"`
	Status            string                   `json:"status"`
	Response          string                   `json:"response,omitempty"`
	Evaluation        domain.EvaluationResult  `json:"evaluation"`
	Sensitivity       domain.SensitivityReport `json:"sensitivity"`
	Reason            string                   `json:"reason"`
	ApprovalRequestID string                   `json:"approval_request_id,omitempty"`
	Attempts          int                      `json:"attempts"`
}

// Submit runs a query through the drafting pipeline. Accepted drafts come
// back 200 with the response text; escalated drafts come back 202 with the
// approval request to poll instead.
func (h *QueryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	scope := middleware.GetScope(r.Context())
	actor := middleware.GetActor(r.Context())

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.svc.SubmitQuery(r.Context(), scope, actor, req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := QueryResponse{
		RequestID:         result.RequestID,
		Status:            string(result.State),
		Evaluation:        result.Evaluation,
		Sensitivity:       result.Sensitivity,
		Reason:            string(result.Reason),
		ApprovalRequestID: result.ApprovalRequestID,
		Attempts:          result.Attempts,
	}

	if result.State == domain.DecisionAccepted {
		resp.Response = result.ResponseText
		api.Success(w, http.StatusOK, resp)
		return
	}

	resp.Status = "pending_review"
	api.Success(w, http.StatusAccepted, resp)
}
