package service

import "github.com/grantpilot/grantpilot/internal/domain"

// DecisionConfig holds the quality thresholds and the regeneration bound.
type DecisionConfig struct {
	CognitiveThreshold  float64
	CompetencyThreshold float64
	MaxRegenerations    int
}

// DecisionEngine routes one candidate response out of the Generated state.
// Rules evaluate in order and the first match wins; with a deterministic
// evaluator the engine terminates within MaxRegenerations+1 generation
// attempts for any input.
type DecisionEngine struct {
	cfg DecisionConfig
}

func NewDecisionEngine(cfg DecisionConfig) *DecisionEngine {
	return &DecisionEngine{cfg: cfg}
}

// Decide applies the transition rules. regenerations is how many
// regeneration attempts have already been spent on this request.
//
// Sensitivity dominates: a flagged response is never auto-accepted, however
// high its scores.
func (e *DecisionEngine) Decide(eval domain.EvaluationResult, report domain.SensitivityReport, regenerations int) domain.Decision {
	if report.HasFlags() {
		return domain.Decision{
			State:  domain.DecisionEscalated,
			Reason: domain.ReasonSensitivityFlagged,
		}
	}

	belowThreshold := eval.CognitiveScore < e.cfg.CognitiveThreshold ||
		eval.CompetencyScore < e.cfg.CompetencyThreshold

	if belowThreshold && regenerations < e.cfg.MaxRegenerations {
		return domain.Decision{
			State:    domain.DecisionRegenerationRequested,
			Reason:   domain.ReasonBelowThreshold,
			Feedback: eval.Recommendations,
		}
	}

	if belowThreshold {
		return domain.Decision{
			State:  domain.DecisionEscalated,
			Reason: domain.ReasonRegenerationsSpent,
		}
	}

	return domain.Decision{
		State:  domain.DecisionAccepted,
		Reason: domain.ReasonThresholdsMet,
	}
}
