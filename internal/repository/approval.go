package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalRepository handles persistence of approval requests. Status
// transitions use compare-and-set updates so two racing decisions can never
// both win.
type ApprovalRepository struct {
	db dbtx
}

func NewApprovalRepository(pool *pgxpool.Pool) *ApprovalRepository {
	return &ApprovalRepository{db: pool}
}

func NewApprovalRepositoryWithTx(tx pgx.Tx) *ApprovalRepository {
	return &ApprovalRepository{db: tx}
}

// Create inserts an approval request. Creation is idempotent on the
// originating request: if an approval for the same origin_request_id already
// exists, the existing row is returned and no duplicate is created.
func (r *ApprovalRepository) Create(ctx context.Context, a *domain.ApprovalRequest) (*domain.ApprovalRequest, error) {
	evaluation, err := json.Marshal(a.Evaluation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluation: %w", err)
	}
	sensitivity, err := json.Marshal(a.Sensitivity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sensitivity report: %w", err)
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO approval_requests
			(id, owner_scope, origin_request_id, response_text, evaluation, sensitivity, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (origin_request_id) DO NOTHING`,
		a.ID, a.OwnerScope, a.OriginRequestID, a.ResponseText, evaluation, sensitivity, a.Status, createdAt,
	)
	if err != nil {
		return nil, err
	}

	if tag.RowsAffected() == 0 {
		return r.GetByOriginRequestID(ctx, a.OriginRequestID)
	}

	created := *a
	created.CreatedAt = createdAt
	return &created, nil
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *ApprovalRepository) GetByOriginRequestID(ctx context.Context, originRequestID string) (*domain.ApprovalRequest, error) {
	return r.getOne(ctx, `WHERE origin_request_id = $1`, originRequestID)
}

// Decide transitions a request from pending to the given terminal status.
// The update is a compare-and-set on status: with two concurrent calls
// exactly one sees a row, the other gets ErrApprovalAlreadyDecided (or
// ErrApprovalNotFound if the id is unknown).
func (r *ApprovalRepository) Decide(ctx context.Context, id string, status domain.ApprovalStatus, actor, notes string, decidedAt time.Time) (*domain.ApprovalRequest, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE approval_requests
		 SET status = $2, decided_at = $3, decided_by = $4, decision_notes = $5
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+approvalColumns,
		id, status, decidedAt, actor, notes,
	)
	if err != nil {
		return nil, err
	}
	updated, err := pgx.CollectRows(rows, r.scanApproval)
	if err != nil {
		return nil, err
	}

	if len(updated) == 1 {
		return updated[0], nil
	}

	// Zero rows: disambiguate missing from already-decided.
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrApprovalAlreadyDecided
}

// ListPending returns pending requests for a scope, oldest first, enforcing
// first-in-first-out review.
func (r *ApprovalRepository) ListPending(ctx context.Context, ownerScope string) ([]*domain.ApprovalRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+approvalColumns+`
		 FROM approval_requests
		 WHERE owner_scope = $1 AND status = 'pending'
		 ORDER BY created_at ASC, id ASC`,
		ownerScope,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, r.scanApproval)
}

const approvalColumns = `id, owner_scope, origin_request_id, response_text, evaluation, sensitivity, status, created_at, decided_at, decided_by, decision_notes`

func (r *ApprovalRepository) getOne(ctx context.Context, where string, arg any) (*domain.ApprovalRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests `+where,
		arg,
	)
	if err != nil {
		return nil, err
	}
	results, err := pgx.CollectRows(rows, r.scanApproval)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, domain.ErrApprovalNotFound
	}
	return results[0], nil
}

func (r *ApprovalRepository) scanApproval(row pgx.CollectableRow) (*domain.ApprovalRequest, error) {
	var a domain.ApprovalRequest
	var evaluation, sensitivity []byte
	var decidedBy, notes *string

	if err := row.Scan(
		&a.ID, &a.OwnerScope, &a.OriginRequestID, &a.ResponseText,
		&evaluation, &sensitivity, &a.Status, &a.CreatedAt,
		&a.DecidedAt, &decidedBy, &notes,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(evaluation, &a.Evaluation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evaluation: %w", err)
	}
	if err := json.Unmarshal(sensitivity, &a.Sensitivity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sensitivity report: %w", err)
	}
	if decidedBy != nil {
		a.DecidedBy = *decidedBy
	}
	if notes != nil {
		a.DecisionNotes = *notes
	}

	return &a, nil
}
