package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantpilot/grantpilot/internal/domain"
)

type pipelineFixture struct {
	repos     *fakeTxRepos
	audit     *memAuditRepo
	generator *stubGenerationClient
	search    *stubChunkSearchRepo
	svc       *PipelineService
}

func newPipelineFixture(t *testing.T, generator *stubGenerationClient) *pipelineFixture {
	t.Helper()

	repos := newFakeTxRepos()
	search := &stubChunkSearchRepo{
		semantic: []domain.RetrievedChunk{
			{
				Chunk: domain.KnowledgeChunk{
					ID:         "chunk-1",
					OwnerScope: "scope-a",
					Text:       "the youth center runs afterschool programs",
					CreatedAt:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
				},
				Similarity: 0.85,
			},
		},
	}

	retrieval := NewRetrievalEngine(search, &stubEmbeddingClient{embedding: []float32{0.1, 0.2}}, 5)
	approvals := NewApprovalService(newFakeTxRunner(repos), repos.approvals, repos.grants, &DefaultUUIDGenerator{}, 24*time.Hour)

	svc := NewPipelineService(
		retrieval,
		generator,
		newTestScanner(),
		newTestEvaluator(),
		newTestDecisionEngine(),
		approvals,
		repos.audit,
		&DefaultUUIDGenerator{},
		PipelineConfig{TopK: 5, GenerationRetries: 2, GenerationTimeout: 5 * time.Second},
	)

	return &pipelineFixture{
		repos:     repos,
		audit:     repos.audit,
		generator: generator,
		search:    search,
		svc:       svc,
	}
}

func TestPipelineService_AcceptedDraft(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, &stubGenerationClient{responses: []string{clearDraft}})

	result, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAccepted, result.State)
	assert.Equal(t, domain.ReasonThresholdsMet, result.Reason)
	assert.Equal(t, clearDraft, result.ResponseText)
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, result.ApprovalRequestID)
	assert.NotEmpty(t, result.RequestID)

	assert.Equal(t, []domain.AuditAction{
		domain.AuditRetrievalPerformed,
		domain.AuditEvaluationComputed,
		domain.AuditDecisionMade,
	}, f.audit.actions())
}

func TestPipelineService_RegenerationThenEscalation(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, &stubGenerationClient{responses: []string{jargonDraft, jargonDraft}})

	result, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionEscalated, result.State)
	assert.Equal(t, domain.ReasonRegenerationsSpent, result.Reason)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, f.generator.callCount())
	assert.NotEmpty(t, result.ApprovalRequestID)

	// The second generation request carried the evaluator's feedback.
	request, err := f.repos.approvals.GetByID(ctx, result.ApprovalRequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, request.Status)
	assert.Equal(t, result.RequestID, request.OriginRequestID)

	assert.Equal(t, 1, f.audit.countAction(domain.AuditRetrievalPerformed))
	assert.Equal(t, 2, f.audit.countAction(domain.AuditEvaluationComputed))
	assert.Equal(t, 2, f.audit.countAction(domain.AuditDecisionMade))
	assert.Equal(t, 1, f.audit.countAction(domain.AuditApprovalCreated))
}

func TestPipelineService_FeedbackReachesRegeneration(t *testing.T) {
	ctx := context.Background()

	var secondRequest GenerationRequest
	calls := 0
	generator := &stubGenerationClient{}
	generator.generate = func(ctx context.Context, req GenerationRequest) (string, error) {
		calls++
		if calls == 2 {
			secondRequest = req
		}
		return jargonDraft, nil
	}

	f := newPipelineFixture(t, generator)

	_, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")
	require.NoError(t, err)

	require.Equal(t, 2, calls)
	assert.NotEmpty(t, secondRequest.Feedback)
	assert.Len(t, secondRequest.Context, 1)
}

func TestPipelineService_SensitivityEscalatesImmediately(t *testing.T) {
	ctx := context.Background()

	flagged := clearDraft + "\n\nContact maria.lopez@example.org with questions."
	f := newPipelineFixture(t, &stubGenerationClient{responses: []string{flagged}})

	result, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionEscalated, result.State)
	assert.Equal(t, domain.ReasonSensitivityFlagged, result.Reason)
	assert.Equal(t, 1, result.Attempts)
	assert.True(t, result.Sensitivity.HasFlag(domain.FlagPII))
	assert.NotEmpty(t, result.ApprovalRequestID)
	assert.Equal(t, 1, f.generator.callCount())
}

func TestPipelineService_GenerationTimeout(t *testing.T) {
	ctx := context.Background()

	generator := &stubGenerationClient{}
	generator.generate = func(ctx context.Context, req GenerationRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	f := newPipelineFixture(t, generator)
	f.svc.cfg.GenerationTimeout = 20 * time.Millisecond

	result, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionEscalated, result.State)
	assert.Equal(t, domain.ReasonGenerationTimeout, result.Reason)
	assert.True(t, result.Sensitivity.HasFlag(domain.FlagGenerationTimeout))
	assert.NotEmpty(t, result.ApprovalRequestID)
	assert.Equal(t, 1, f.audit.countAction(domain.AuditApprovalCreated))
}

func TestPipelineService_RetryableGenerationFailures(t *testing.T) {
	ctx := context.Background()

	calls := 0
	generator := &stubGenerationClient{}
	generator.generate = func(ctx context.Context, req GenerationRequest) (string, error) {
		calls++
		if calls < 3 {
			return "", domain.ErrGenerationUnavailable
		}
		return clearDraft, nil
	}

	f := newPipelineFixture(t, generator)

	result, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAccepted, result.State)
	assert.Equal(t, 3, calls)
}

func TestPipelineService_NonRetryableGenerationFailure(t *testing.T) {
	ctx := context.Background()

	f := newPipelineFixture(t, &stubGenerationClient{
		err: domain.NewDomainError(domain.ErrCodeGenerationFailed, "bad prompt"),
	})

	_, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrCodeGenerationFailed, domainErr.Code)
	assert.Equal(t, 1, f.generator.callCount())
}

func TestPipelineService_ExhaustedRetriesFail(t *testing.T) {
	ctx := context.Background()

	f := newPipelineFixture(t, &stubGenerationClient{err: domain.ErrGenerationUnavailable})

	_, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")

	require.Error(t, err)
	// GenerationRetries 2 means three calls total before giving up.
	assert.Equal(t, 3, f.generator.callCount())
}

func TestPipelineService_CallerCancellationLeavesNoTrail(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	generator := &stubGenerationClient{}
	generator.generate = func(ctx context.Context, req GenerationRequest) (string, error) {
		return "", ctx.Err()
	}

	f := newPipelineFixture(t, generator)

	_, err := f.svc.SubmitQuery(cancelled, "scope-a", "writer-1", "describe our youth program")

	require.Error(t, err)
	assert.Empty(t, f.audit.actions())
	assert.Empty(t, f.repos.approvals.byID)
}

func TestPipelineService_InputValidation(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, &stubGenerationClient{responses: []string{clearDraft}})

	t.Run("empty scope", func(t *testing.T) {
		_, err := f.svc.SubmitQuery(ctx, "", "writer-1", "anything")
		assert.ErrorIs(t, err, domain.ErrScopeRequired)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "")
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	})
}

func TestPipelineService_EmptyStoreStillGenerates(t *testing.T) {
	ctx := context.Background()

	f := newPipelineFixture(t, &stubGenerationClient{responses: []string{clearDraft}})
	f.search.semantic = nil

	result, err := f.svc.SubmitQuery(ctx, "scope-a", "writer-1", "describe our youth program")

	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAccepted, result.State)
}
