package repository

import (
	"context"
	"errors"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantRepository handles persistence of access grants.
type GrantRepository struct {
	db dbtx
}

func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{db: pool}
}

func NewGrantRepositoryWithTx(tx pgx.Tx) *GrantRepository {
	return &GrantRepository{db: tx}
}

func (r *GrantRepository) Create(ctx context.Context, g *domain.AccessGrant) error {
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO access_grants (id, approval_request_id, grantee_id, expires_at, revoked, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.ApprovalRequestID, g.GranteeID, g.ExpiresAt, g.Revoked, createdAt,
	)
	return err
}

func (r *GrantRepository) GetByID(ctx context.Context, id string) (*domain.AccessGrant, error) {
	var g domain.AccessGrant
	err := r.db.QueryRow(ctx,
		`SELECT id, approval_request_id, grantee_id, expires_at, revoked, created_at
		 FROM access_grants WHERE id = $1`,
		id,
	).Scan(&g.ID, &g.ApprovalRequestID, &g.GranteeID, &g.ExpiresAt, &g.Revoked, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGrantNotFound
		}
		return nil, err
	}
	return &g, nil
}

// Revoke marks a grant revoked. The update only matches grants that are
// still active: repeated revocations and revocations of already-expired
// grants are no-ops. It returns whether this call performed the revocation.
func (r *GrantRepository) Revoke(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE access_grants SET revoked = true
		 WHERE id = $1 AND NOT revoked AND expires_at > now()`,
		id,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// No row updated: either the grant does not exist, or it was already
	// inert and this call is an idempotent no-op.
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
