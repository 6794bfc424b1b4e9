package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grantpilot/grantpilot/internal/api"
	"github.com/grantpilot/grantpilot/internal/api/middleware"
	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/storage"
)

type GrantService interface {
	GetGrant(ctx context.Context, grantID string) (*domain.AccessGrant, error)
	CheckAccess(ctx context.Context, grantID string) (bool, error)
	RevokeGrant(ctx context.Context, grantID, actor string) error
	GetRequest(ctx context.Context, requestID string) (*domain.ApprovalRequest, error)
}

// ArchiveStore provides time-limited download links into the draft archive.
// Nil when object storage is not configured.
type ArchiveStore interface {
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type GrantHandler struct {
	svc     GrantService
	archive ArchiveStore
}

func NewGrantHandler(svc GrantService, archive ArchiveStore) *GrantHandler {
	return &GrantHandler{svc: svc, archive: archive}
}

type GrantResponse struct {
	ID                string `json:"id"`
	ApprovalRequestID string `json:"approval_request_id"`
	GranteeID         string `json:"grantee_id"`
	ExpiresAt         string `json:"expires_at"`
	Revoked           bool   `json:"revoked"`
	Valid             bool   `json:"valid"`
	CreatedAt         string `json:"created_at"`
}

type GrantContentResponse struct {
	GrantID     string `json:"grant_id"`
	Response    string `json:"response"`
	DownloadURL string `json:"download_url,omitempty"`
}

func toGrantResponse(g *domain.AccessGrant, now time.Time) *GrantResponse {
	return &GrantResponse{
		ID:                g.ID,
		ApprovalRequestID: g.ApprovalRequestID,
		GranteeID:         g.GranteeID,
		ExpiresAt:         g.ExpiresAt.Format(time.RFC3339),
		Revoked:           g.Revoked,
		Valid:             g.Active(now),
		CreatedAt:         g.CreatedAt.Format(time.RFC3339),
	}
}

// Get reports the grant's state including whether it currently permits
// access. Expired and revoked grants are still returned, marked invalid.
func (h *GrantHandler) Get(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "id")

	grant, err := h.svc.GetGrant(r.Context(), grantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toGrantResponse(grant, time.Now()))
}

// Revoke disables a grant immediately. Revoking an already-revoked grant is
// a no-op success. Grants whose approval request belongs to another scope
// are treated as not found.
func (h *GrantHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "id")
	actor := middleware.GetActor(r.Context())

	grant, err := h.svc.GetGrant(r.Context(), grantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	request, err := h.svc.GetRequest(r.Context(), grant.ApprovalRequestID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if request.OwnerScope != middleware.GetScope(r.Context()) {
		api.HandleError(w, domain.ErrGrantNotFound)
		return
	}

	if err := h.svc.RevokeGrant(r.Context(), grantID, actor); err != nil {
		api.HandleError(w, err)
		return
	}

	grant, err = h.svc.GetGrant(r.Context(), grantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toGrantResponse(grant, time.Now()))
}

// Content releases the approved draft behind an active grant, with a
// presigned archive link when object storage is configured.
func (h *GrantHandler) Content(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "id")

	valid, err := h.svc.CheckAccess(r.Context(), grantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if !valid {
		api.Error(w, http.StatusForbidden, "grant is expired or revoked")
		return
	}

	grant, err := h.svc.GetGrant(r.Context(), grantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	request, err := h.svc.GetRequest(r.Context(), grant.ApprovalRequestID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := GrantContentResponse{
		GrantID:  grant.ID,
		Response: request.ResponseText,
	}

	// Only link the archive copy when it actually exists; drafts approved
	// before object storage was configured have no archived object.
	if h.archive != nil {
		key := "drafts/" + request.OriginRequestID
		if _, err := h.archive.HeadObject(r.Context(), key); err == nil {
			if url, err := h.archive.GenerateDownloadURL(r.Context(), key); err == nil {
				resp.DownloadURL = url
			}
		}
	}

	api.Success(w, http.StatusOK, resp)
}
