//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/pagination"
	"github.com/grantpilot/grantpilot/internal/testutil"
)

func seedAuditEntries(ctx context.Context, t *testing.T, repo *AuditRepository, scope string, n int) []*domain.AuditEntry {
	t.Helper()
	base := time.Now().UTC().Truncate(time.Microsecond)
	entries := make([]*domain.AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		e := &domain.AuditEntry{
			ID:         uuid.NewString(),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			OwnerScope: scope,
			Actor:      "writer-1",
			Action:     domain.AuditDecisionMade,
			SubjectID:  fmt.Sprintf("req-%d", i),
			Details:    map[string]string{"outcome": "accepted"},
		}
		require.NoError(t, repo.Append(ctx, e))
		entries = append(entries, e)
	}
	return entries
}

func TestAuditRepository_AppendAndList(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAuditRepository(pool)
	entries := seedAuditEntries(ctx, t, repo, "scope-a", 3)

	page, err := repo.ListByScope(ctx, "scope-a", nil, 10)
	require.NoError(t, err)

	require.Len(t, page.Items, 3)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)

	// Newest first.
	assert.Equal(t, entries[2].ID, page.Items[0].ID)
	assert.Equal(t, entries[0].ID, page.Items[2].ID)
	assert.Equal(t, domain.AuditDecisionMade, page.Items[0].Action)
	assert.Equal(t, "accepted", page.Items[0].Details["outcome"])
}

func TestAuditRepository_ListByScope_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAuditRepository(pool)
	seedAuditEntries(ctx, t, repo, "scope-a", 2)
	seedAuditEntries(ctx, t, repo, "scope-b", 1)

	page, err := repo.ListByScope(ctx, "scope-a", nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	for _, e := range page.Items {
		assert.Equal(t, "scope-a", e.OwnerScope)
	}
}

func TestAuditRepository_ListByScope_Pagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAuditRepository(pool)
	entries := seedAuditEntries(ctx, t, repo, "scope-a", 5)

	first, err := repo.ListByScope(ctx, "scope-a", nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, entries[4].ID, first.Items[0].ID)
	assert.Equal(t, entries[3].ID, first.Items[1].ID)

	cursor, err := pagination.DecodeCursor(first.NextCursor)
	require.NoError(t, err)

	second, err := repo.ListByScope(ctx, "scope-a", cursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.True(t, second.HasMore)
	assert.Equal(t, entries[2].ID, second.Items[0].ID)
	assert.Equal(t, entries[1].ID, second.Items[1].ID)

	cursor, err = pagination.DecodeCursor(second.NextCursor)
	require.NoError(t, err)

	last, err := repo.ListByScope(ctx, "scope-a", cursor, 2)
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.NextCursor)
	assert.Equal(t, entries[0].ID, last.Items[0].ID)
}
