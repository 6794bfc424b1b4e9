package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditPageResult is one page of audit entries.
type AuditPageResult struct {
	Items      []*domain.AuditEntry
	NextCursor string
	HasMore    bool
}

// AuditRepository appends and lists audit entries. The table is append-only:
// there are no update or delete operations here on purpose.
type AuditRepository struct {
	db dbtx
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: pool}
}

func NewAuditRepositoryWithTx(tx pgx.Tx) *AuditRepository {
	return &AuditRepository{db: tx}
}

func (r *AuditRepository) Append(ctx context.Context, e *domain.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	timestamp := e.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO audit_log (id, timestamp, owner_scope, actor, action, subject_id, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, timestamp, e.OwnerScope, e.Actor, e.Action, e.SubjectID, details,
	)
	return err
}

// ListByScope returns audit entries for a scope, newest first, with cursor
// pagination.
func (r *AuditRepository) ListByScope(ctx context.Context, ownerScope string, cursor *pagination.Cursor, limit int) (*AuditPageResult, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, timestamp, owner_scope, actor, action, subject_id, details
		FROM audit_log
		WHERE owner_scope = $1`
	args := []any{ownerScope}

	if cursor != nil {
		query += ` AND (timestamp, id) < ($2, $3)`
		args = append(args, cursor.Timestamp, cursor.LastID)
	}

	query += fmt.Sprintf(`
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.OwnerScope, &e.Actor, &e.Action, &e.SubjectID, &details); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
		}
		items = append(items, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	result := &AuditPageResult{Items: items, HasMore: hasMore}
	if hasMore {
		last := items[len(items)-1]
		result.NextCursor = pagination.EncodeCursor(last.ID, last.Timestamp)
	}
	return result, nil
}
