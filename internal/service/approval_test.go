package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantpilot/grantpilot/internal/domain"
)

func newTestApprovalService(repos *fakeTxRepos) *ApprovalService {
	return NewApprovalService(
		newFakeTxRunner(repos),
		repos.approvals,
		repos.grants,
		&DefaultUUIDGenerator{},
		24*time.Hour,
	)
}

func testEscalation(origin string) EscalationInput {
	return EscalationInput{
		OriginRequestID: origin,
		OwnerScope:      "scope-a",
		Actor:           "writer-1",
		ResponseText:    "draft response under review",
		Evaluation:      domain.EvaluationResult{CognitiveScore: 0.4, CompetencyScore: 0.7},
		Sensitivity:     domain.SensitivityReport{},
		Reason:          domain.ReasonRegenerationsSpent,
	}
}

func TestApprovalService_CreateForEscalation(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending request with one audit entry", func(t *testing.T) {
		repos := newFakeTxRepos()
		svc := newTestApprovalService(repos)

		created, err := svc.CreateForEscalation(ctx, testEscalation("origin-1"))

		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalStatusPending, created.Status)
		assert.Equal(t, "origin-1", created.OriginRequestID)
		assert.Equal(t, 1, repos.audit.countAction(domain.AuditApprovalCreated))
	})

	t.Run("repeated escalation for the same origin is idempotent", func(t *testing.T) {
		repos := newFakeTxRepos()
		svc := newTestApprovalService(repos)

		first, err := svc.CreateForEscalation(ctx, testEscalation("origin-1"))
		require.NoError(t, err)

		second, err := svc.CreateForEscalation(ctx, testEscalation("origin-1"))
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, repos.audit.countAction(domain.AuditApprovalCreated))
	})

	t.Run("missing scope is rejected", func(t *testing.T) {
		svc := newTestApprovalService(newFakeTxRepos())

		input := testEscalation("origin-1")
		input.OwnerScope = ""

		_, err := svc.CreateForEscalation(ctx, input)

		assert.ErrorIs(t, err, domain.ErrScopeRequired)
	})
}

func TestApprovalService_Decide(t *testing.T) {
	ctx := context.Background()

	t.Run("approval issues a grant for the deciding actor", func(t *testing.T) {
		repos := newFakeTxRepos()
		svc := newTestApprovalService(repos)

		created, err := svc.CreateForEscalation(ctx, testEscalation("origin-1"))
		require.NoError(t, err)

		decided, err := svc.Decide(ctx, created.ID, domain.ApprovalStatusApproved, "reviewer-1", "looks good")
		require.NoError(t, err)

		assert.Equal(t, domain.ApprovalStatusApproved, decided.Status)
		assert.Equal(t, "reviewer-1", decided.DecidedBy)
		require.NotNil(t, decided.DecidedAt)

		require.Len(t, repos.grants.byID, 1)
		for _, grant := range repos.grants.byID {
			assert.Equal(t, decided.ID, grant.ApprovalRequestID)
			assert.Equal(t, "reviewer-1", grant.GranteeID)
			assert.Equal(t, decided.DecidedAt.Add(24*time.Hour), grant.ExpiresAt)
			assert.False(t, grant.Revoked)
		}

		assert.Equal(t, 1, repos.audit.countAction(domain.AuditApprovalDecided))
		assert.Equal(t, 1, repos.audit.countAction(domain.AuditGrantIssued))
	})

	t.Run("denial requires notes and issues no grant", func(t *testing.T) {
		repos := newFakeTxRepos()
		svc := newTestApprovalService(repos)

		created, err := svc.CreateForEscalation(ctx, testEscalation("origin-1"))
		require.NoError(t, err)

		_, err = svc.Decide(ctx, created.ID, domain.ApprovalStatusDenied, "reviewer-1", "")
		assert.ErrorIs(t, err, domain.ErrEmptyDenialNotes)

		decided, err := svc.Decide(ctx, created.ID, domain.ApprovalStatusDenied, "reviewer-1", "tone is off")
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalStatusDenied, decided.Status)
		assert.Empty(t, repos.grants.byID)
		assert.Equal(t, 0, repos.audit.countAction(domain.AuditGrantIssued))
	})

	t.Run("second decision on the same request conflicts", func(t *testing.T) {
		repos := newFakeTxRepos()
		svc := newTestApprovalService(repos)

		created, err := svc.CreateForEscalation(ctx, testEscalation("origin-1"))
		require.NoError(t, err)

		_, err = svc.Decide(ctx, created.ID, domain.ApprovalStatusApproved, "reviewer-1", "")
		require.NoError(t, err)

		_, err = svc.Decide(ctx, created.ID, domain.ApprovalStatusDenied, "reviewer-2", "changed my mind")
		assert.ErrorIs(t, err, domain.ErrApprovalAlreadyDecided)

		// The first decision stands.
		current, err := svc.GetRequest(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalStatusApproved, current.Status)
	})

	t.Run("unknown request is not found", func(t *testing.T) {
		svc := newTestApprovalService(newFakeTxRepos())

		_, err := svc.Decide(ctx, "missing", domain.ApprovalStatusApproved, "reviewer-1", "")

		assert.ErrorIs(t, err, domain.ErrApprovalNotFound)
	})
}

func TestApprovalService_ListPending(t *testing.T) {
	ctx := context.Background()
	repos := newFakeTxRepos()
	svc := newTestApprovalService(repos)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, origin := range []string{"origin-1", "origin-2", "origin-3"} {
		_, err := svc.CreateForEscalation(ctx, testEscalation(origin))
		require.NoError(t, err)
	}

	pending, err := svc.ListPending(ctx, "scope-a")
	require.NoError(t, err)
	require.Len(t, pending, 3)

	// Oldest submission first.
	assert.Equal(t, "origin-1", pending[0].OriginRequestID)
	assert.Equal(t, "origin-3", pending[2].OriginRequestID)

	other, err := svc.ListPending(ctx, "scope-b")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestApprovalService_Grants(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fakeTxRepos, *ApprovalService, *domain.AccessGrant) {
		repos := newFakeTxRepos()
		svc := newTestApprovalService(repos)

		created, err := svc.CreateForEscalation(ctx, testEscalation("origin-1"))
		require.NoError(t, err)
		_, err = svc.Decide(ctx, created.ID, domain.ApprovalStatusApproved, "reviewer-1", "")
		require.NoError(t, err)

		var grant *domain.AccessGrant
		for _, g := range repos.grants.byID {
			grant = g
		}
		require.NotNil(t, grant)
		return repos, svc, grant
	}

	t.Run("fresh grant permits access", func(t *testing.T) {
		_, svc, grant := setup(t)

		valid, err := svc.CheckAccess(ctx, grant.ID)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("expired grant denies access but is kept", func(t *testing.T) {
		_, svc, grant := setup(t)

		svc.now = func() time.Time { return grant.ExpiresAt.Add(time.Second) }

		valid, err := svc.CheckAccess(ctx, grant.ID)
		require.NoError(t, err)
		assert.False(t, valid)

		stored, err := svc.GetGrant(ctx, grant.ID)
		require.NoError(t, err)
		assert.False(t, stored.Revoked)
	})

	t.Run("revocation denies access and audits once", func(t *testing.T) {
		repos, svc, grant := setup(t)

		require.NoError(t, svc.RevokeGrant(ctx, grant.ID, "reviewer-1"))

		valid, err := svc.CheckAccess(ctx, grant.ID)
		require.NoError(t, err)
		assert.False(t, valid)
		assert.Equal(t, 1, repos.audit.countAction(domain.AuditGrantRevoked))

		// Revoking again is a no-op with no second audit entry.
		require.NoError(t, svc.RevokeGrant(ctx, grant.ID, "reviewer-1"))
		assert.Equal(t, 1, repos.audit.countAction(domain.AuditGrantRevoked))
	})

	t.Run("revoking an expired grant is a no-op", func(t *testing.T) {
		repos, svc, grant := setup(t)

		after := grant.ExpiresAt.Add(time.Second)
		repos.grants.now = func() time.Time { return after }

		require.NoError(t, svc.RevokeGrant(ctx, grant.ID, "reviewer-1"))

		// The grant was already inert; nothing transitioned and nothing
		// was audited.
		stored, err := svc.GetGrant(ctx, grant.ID)
		require.NoError(t, err)
		assert.False(t, stored.Revoked)
		assert.Equal(t, 0, repos.audit.countAction(domain.AuditGrantRevoked))
	})

	t.Run("unknown grant is invalid, not an error", func(t *testing.T) {
		svc := newTestApprovalService(newFakeTxRepos())

		valid, err := svc.CheckAccess(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("revoking an unknown grant errors", func(t *testing.T) {
		svc := newTestApprovalService(newFakeTxRepos())

		err := svc.RevokeGrant(ctx, "missing", "reviewer-1")
		assert.ErrorIs(t, err, domain.ErrGrantNotFound)
	})
}
