package service

import (
	"context"
	"errors"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/telemetry"
)

// EscalationInput carries an escalated response into the approval workflow.
type EscalationInput struct {
	OriginRequestID string
	OwnerScope      string
	Actor           string
	ResponseText    string
	Evaluation      domain.EvaluationResult
	Sensitivity     domain.SensitivityReport
	Reason          domain.DecisionReason
}

// ApprovalService manages the human-approval workflow: pending requests,
// one-way decisions, and time-limited access grants. Every transition
// appends exactly one audit entry in the same transaction.
type ApprovalService struct {
	txRunner  TxRunner
	approvals ApprovalRepositoryInterface
	grants    GrantRepositoryInterface
	uuidGen   UUIDGenerator
	grantTTL  time.Duration
	now       func() time.Time
}

func NewApprovalService(txRunner TxRunner, approvals ApprovalRepositoryInterface, grants GrantRepositoryInterface, uuidGen UUIDGenerator, grantTTL time.Duration) *ApprovalService {
	if grantTTL <= 0 {
		grantTTL = 24 * time.Hour
	}
	return &ApprovalService{
		txRunner:  txRunner,
		approvals: approvals,
		grants:    grants,
		uuidGen:   uuidGen,
		grantTTL:  grantTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateForEscalation opens a pending approval request for an escalated
// response. Repeated calls for the same originating request return the
// existing entry without creating a duplicate or a second audit record.
func (s *ApprovalService) CreateForEscalation(ctx context.Context, input EscalationInput) (*domain.ApprovalRequest, error) {
	if input.OwnerScope == "" {
		return nil, domain.ErrScopeRequired
	}
	if input.OriginRequestID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "origin request ID is required")
	}

	request := &domain.ApprovalRequest{
		ID:              s.uuidGen.NewString(),
		OwnerScope:      input.OwnerScope,
		OriginRequestID: input.OriginRequestID,
		ResponseText:    input.ResponseText,
		Evaluation:      input.Evaluation,
		Sensitivity:     input.Sensitivity,
		Status:          domain.ApprovalStatusPending,
		CreatedAt:       s.now(),
	}

	var created *domain.ApprovalRequest
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		stored, err := repos.Approvals().Create(ctx, request)
		if err != nil {
			return err
		}
		created = stored

		// Existing row means this escalation was already recorded and
		// audited; creating another entry would break the one-entry-per-
		// transition rule.
		if stored.ID != request.ID {
			return nil
		}

		return repos.Audit().Append(ctx, &domain.AuditEntry{
			ID:         s.uuidGen.NewString(),
			Timestamp:  s.now(),
			OwnerScope: input.OwnerScope,
			Actor:      input.Actor,
			Action:     domain.AuditApprovalCreated,
			SubjectID:  stored.ID,
			Details: map[string]string{
				"origin_request_id": input.OriginRequestID,
				"reason":            string(input.Reason),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Decide applies a human decision to a pending request. The status update is
// a compare-and-set: of two racing calls exactly one wins, the other gets
// ErrApprovalAlreadyDecided. Approval atomically issues an access grant for
// the deciding actor; denial requires non-empty notes.
func (s *ApprovalService) Decide(ctx context.Context, requestID string, status domain.ApprovalStatus, actor, notes string) (*domain.ApprovalRequest, error) {
	if err := domain.ValidateDecision(status, actor, notes); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "ApprovalService.Decide", telemetry.SpanAttributes{
		RequestID: requestID,
		Operation: string(status),
	})
	defer span.End()

	decidedAt := s.now()

	var decided *domain.ApprovalRequest
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		updated, err := repos.Approvals().Decide(ctx, requestID, status, actor, notes, decidedAt)
		if err != nil {
			return err
		}
		decided = updated

		if err := repos.Audit().Append(ctx, &domain.AuditEntry{
			ID:         s.uuidGen.NewString(),
			Timestamp:  decidedAt,
			OwnerScope: updated.OwnerScope,
			Actor:      actor,
			Action:     domain.AuditApprovalDecided,
			SubjectID:  updated.ID,
			Details: map[string]string{
				"status": string(status),
				"notes":  notes,
			},
		}); err != nil {
			return err
		}

		if status != domain.ApprovalStatusApproved {
			return nil
		}

		grant := &domain.AccessGrant{
			ID:                s.uuidGen.NewString(),
			ApprovalRequestID: updated.ID,
			GranteeID:         actor,
			ExpiresAt:         decidedAt.Add(s.grantTTL),
			CreatedAt:         decidedAt,
		}
		if err := repos.Grants().Create(ctx, grant); err != nil {
			return err
		}

		return repos.Audit().Append(ctx, &domain.AuditEntry{
			ID:         s.uuidGen.NewString(),
			Timestamp:  decidedAt,
			OwnerScope: updated.OwnerScope,
			Actor:      actor,
			Action:     domain.AuditGrantIssued,
			SubjectID:  grant.ID,
			Details: map[string]string{
				"approval_request_id": updated.ID,
				"expires_at":          grant.ExpiresAt.Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return decided, nil
}

// ListPending returns pending requests for a scope, oldest first.
func (s *ApprovalService) ListPending(ctx context.Context, ownerScope string) ([]*domain.ApprovalRequest, error) {
	if ownerScope == "" {
		return nil, domain.ErrScopeRequired
	}
	return s.approvals.ListPending(ctx, ownerScope)
}

// GetRequest returns one approval request by ID.
func (s *ApprovalService) GetRequest(ctx context.Context, requestID string) (*domain.ApprovalRequest, error) {
	return s.approvals.GetByID(ctx, requestID)
}

// RevokeGrant marks a grant revoked. Revoking an already-revoked or expired
// grant is a no-op, not an error, and appends no audit entry: nothing
// transitioned.
func (s *ApprovalService) RevokeGrant(ctx context.Context, grantID, actor string) error {
	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		revoked, err := repos.Grants().Revoke(ctx, grantID)
		if err != nil {
			return err
		}
		if !revoked {
			return nil
		}

		grant, err := repos.Grants().GetByID(ctx, grantID)
		if err != nil {
			return err
		}

		request, err := repos.Approvals().GetByID(ctx, grant.ApprovalRequestID)
		if err != nil {
			return err
		}

		return repos.Audit().Append(ctx, &domain.AuditEntry{
			ID:         s.uuidGen.NewString(),
			Timestamp:  s.now(),
			OwnerScope: request.OwnerScope,
			Actor:      actor,
			Action:     domain.AuditGrantRevoked,
			SubjectID:  grantID,
			Details: map[string]string{
				"approval_request_id": grant.ApprovalRequestID,
			},
		})
	})
}

// CheckAccess reports whether a grant currently permits access: it must
// exist, be unrevoked, and be unexpired. An unknown grant is simply invalid.
func (s *ApprovalService) CheckAccess(ctx context.Context, grantID string) (bool, error) {
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, domain.ErrGrantNotFound) {
			return false, nil
		}
		return false, err
	}
	return grant.Active(s.now()), nil
}

// GetGrant returns one grant by ID.
func (s *ApprovalService) GetGrant(ctx context.Context, grantID string) (*domain.AccessGrant, error) {
	return s.grants.GetByID(ctx, grantID)
}
