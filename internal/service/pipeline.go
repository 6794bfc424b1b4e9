package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/telemetry"
)

// GenerationRequest is the prompt context handed to the external generation
// service: the user query, the retrieved chunks, and any evaluator feedback
// from a previous attempt.
type GenerationRequest struct {
	Query    string
	Context  []domain.RetrievedChunk
	Feedback []string
}

// GenerationClient is the opaque text-generation collaborator. It may fail
// with domain errors coded UNAVAILABLE or RATE_LIMITED, both retryable.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// PipelineConfig bounds the request lifecycle.
type PipelineConfig struct {
	TopK              int
	GenerationRetries int
	GenerationTimeout time.Duration
}

// QueryResult is the caller-visible outcome of submitQuery.
type QueryResult struct {
	RequestID         string
	ResponseText      string
	Evaluation        domain.EvaluationResult
	Sensitivity       domain.SensitivityReport
	State             domain.DecisionState
	Reason            domain.DecisionReason
	ApprovalRequestID string
	Attempts          int
}

// PipelineService orchestrates the retrieval-evaluation-approval pipeline
// for one query. Per-request state is local; concurrent requests share only
// the stores underneath.
type PipelineService struct {
	retrieval *RetrievalEngine
	generator GenerationClient
	scanner   *Scanner
	evaluator *Evaluator
	decisions *DecisionEngine
	approvals *ApprovalService
	audit     AuditRepositoryInterface
	uuidGen   UUIDGenerator
	cfg       PipelineConfig
	now       func() time.Time
}

func NewPipelineService(
	retrieval *RetrievalEngine,
	generator GenerationClient,
	scanner *Scanner,
	evaluator *Evaluator,
	decisions *DecisionEngine,
	approvals *ApprovalService,
	audit AuditRepositoryInterface,
	uuidGen UUIDGenerator,
	cfg PipelineConfig,
) *PipelineService {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	return &PipelineService{
		retrieval: retrieval,
		generator: generator,
		scanner:   scanner,
		evaluator: evaluator,
		decisions: decisions,
		approvals: approvals,
		audit:     audit,
		uuidGen:   uuidGen,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitQuery runs one query through retrieval, generation, scanning,
// evaluation, and the decision engine. It terminates within
// maxRegenerations+1 generation attempts. Caller cancellation aborts the
// request without audit side effects.
func (s *PipelineService) SubmitQuery(ctx context.Context, scope, actor, text string) (*QueryResult, error) {
	if scope == "" {
		return nil, domain.ErrScopeRequired
	}
	if text == "" {
		return nil, domain.ErrEmptyQuery
	}

	requestID := s.uuidGen.NewString()

	ctx, span := telemetry.StartSpan(ctx, "PipelineService.SubmitQuery", telemetry.SpanAttributes{
		Scope:     scope,
		RequestID: requestID,
		Operation: "query",
	})
	defer span.End()

	retrieved, err := s.retrieval.Retrieve(ctx, domain.RetrievalQuery{
		QueryText: text,
		Scope:     domain.RetrievalScope{OwnerScope: scope},
		TopK:      s.cfg.TopK,
	})
	if err != nil {
		return nil, err
	}

	s.auditRetrieval(ctx, scope, actor, requestID, retrieved)

	var feedback []string
	maxRegenerations := s.decisions.cfg.MaxRegenerations

	for attempt := 0; ; attempt++ {
		candidate, err := s.generateWithRetry(ctx, GenerationRequest{
			Query:    text,
			Context:  retrieved.Chunks,
			Feedback: feedback,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			var domainErr *domain.DomainError
			if errors.As(err, &domainErr) && domainErr.Code == domain.ErrCodeGenerationTimeout {
				return s.escalateTimeout(ctx, scope, actor, requestID, attempt+1)
			}
			return nil, err
		}

		report := s.scanner.Scan(candidate)
		evaluation := s.evaluator.Evaluate(candidate, scope)
		s.auditEvaluation(ctx, scope, actor, requestID, evaluation, attempt)

		decision := s.decisions.Decide(evaluation, report, attempt)
		s.auditDecision(ctx, scope, actor, requestID, decision, attempt)

		result := &QueryResult{
			RequestID:    requestID,
			ResponseText: candidate,
			Evaluation:   evaluation,
			Sensitivity:  report,
			State:        decision.State,
			Reason:       decision.Reason,
			Attempts:     attempt + 1,
		}

		switch decision.State {
		case domain.DecisionAccepted:
			return result, nil

		case domain.DecisionRegenerationRequested:
			feedback = decision.Feedback
			if attempt >= maxRegenerations {
				// Unreachable with a correct decision engine; the bound is
				// still enforced here so a policy bug cannot loop forever.
				return nil, domain.NewDomainError(domain.ErrCodeInternalError, "regeneration bound exceeded")
			}
			continue

		case domain.DecisionEscalated:
			request, err := s.approvals.CreateForEscalation(ctx, EscalationInput{
				OriginRequestID: requestID,
				OwnerScope:      scope,
				Actor:           actor,
				ResponseText:    candidate,
				Evaluation:      evaluation,
				Sensitivity:     report,
				Reason:          decision.Reason,
			})
			if err != nil {
				return nil, err
			}
			result.ApprovalRequestID = request.ID
			return result, nil

		default:
			return nil, domain.NewDomainError(domain.ErrCodeInternalError,
				fmt.Sprintf("unknown decision state %q", decision.State))
		}
	}
}

// generateWithRetry calls the generation service with a per-call timeout,
// retrying retryable failures up to the configured attempt budget.
func (s *PipelineService) generateWithRetry(ctx context.Context, req GenerationRequest) (string, error) {
	attempts := s.cfg.GenerationRetries + 1

	var lastErr error
	for i := 0; i < attempts; i++ {
		genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		text, err := s.generator.Generate(genCtx, req)
		cancel()

		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationTimeout,
				"generation service timed out", err)
		}
		if !domain.IsRetryableGeneration(err) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailed,
				"generation service failed", err)
		}

		log.Printf("pipeline: generation attempt %d/%d failed, retrying: %v", i+1, attempts, err)
	}

	return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailed,
		"generation service failed after retries", lastErr)
}

// escalateTimeout routes a timed-out generation to human review with a
// synthetic flag, so the request is visible rather than silently lost.
func (s *PipelineService) escalateTimeout(ctx context.Context, scope, actor, requestID string, attempts int) (*QueryResult, error) {
	report := domain.SensitivityReport{}.WithFlag(domain.FlagGenerationTimeout)

	request, err := s.approvals.CreateForEscalation(ctx, EscalationInput{
		OriginRequestID: requestID,
		OwnerScope:      scope,
		Actor:           actor,
		ResponseText:    "",
		Evaluation:      domain.EvaluationResult{Indicators: map[string]float64{}, Recommendations: []string{}},
		Sensitivity:     report,
		Reason:          domain.ReasonGenerationTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		RequestID:         requestID,
		Sensitivity:       report,
		State:             domain.DecisionEscalated,
		Reason:            domain.ReasonGenerationTimeout,
		ApprovalRequestID: request.ID,
		Attempts:          attempts,
	}, nil
}

func (s *PipelineService) auditRetrieval(ctx context.Context, scope, actor, requestID string, retrieved *RetrievalResult) {
	action := domain.AuditRetrievalPerformed
	if retrieved.Fallback {
		action = domain.AuditRetrievalFallback
	}
	s.appendAudit(ctx, &domain.AuditEntry{
		OwnerScope: scope,
		Actor:      actor,
		Action:     action,
		SubjectID:  requestID,
		Details: map[string]string{
			"chunks": strconv.Itoa(len(retrieved.Chunks)),
		},
	})
}

func (s *PipelineService) auditEvaluation(ctx context.Context, scope, actor, requestID string, evaluation domain.EvaluationResult, attempt int) {
	s.appendAudit(ctx, &domain.AuditEntry{
		OwnerScope: scope,
		Actor:      actor,
		Action:     domain.AuditEvaluationComputed,
		SubjectID:  requestID,
		Details: map[string]string{
			"cognitive_score":  strconv.FormatFloat(evaluation.CognitiveScore, 'f', 4, 64),
			"competency_score": strconv.FormatFloat(evaluation.CompetencyScore, 'f', 4, 64),
			"attempt":          strconv.Itoa(attempt + 1),
		},
	})
}

func (s *PipelineService) auditDecision(ctx context.Context, scope, actor, requestID string, decision domain.Decision, attempt int) {
	s.appendAudit(ctx, &domain.AuditEntry{
		OwnerScope: scope,
		Actor:      actor,
		Action:     domain.AuditDecisionMade,
		SubjectID:  requestID,
		Details: map[string]string{
			"state":   string(decision.State),
			"reason":  string(decision.Reason),
			"attempt": strconv.Itoa(attempt + 1),
		},
	})
}

// appendAudit writes one audit entry. Abandoned requests leave no partial
// trail: nothing is written once the caller has cancelled. Audit failures
// are logged, not propagated; losing an entry must not fail the request.
func (s *PipelineService) appendAudit(ctx context.Context, entry *domain.AuditEntry) {
	if ctx.Err() != nil {
		return
	}

	entry.ID = s.uuidGen.NewString()
	entry.Timestamp = s.now()

	if err := s.audit.Append(ctx, entry); err != nil {
		log.Printf("pipeline: failed to append audit entry %s: %v", entry.Action, err)
	}
}
