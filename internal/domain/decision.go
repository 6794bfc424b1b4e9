package domain

// DecisionState is the outcome of the decision engine for one candidate
// response. Accepted and Escalated are terminal for a request;
// RegenerationRequested loops back into a new generation attempt.
type DecisionState string

const (
	DecisionAccepted              DecisionState = "accepted"
	DecisionRegenerationRequested DecisionState = "regeneration_requested"
	DecisionEscalated             DecisionState = "escalated"
)

// DecisionReason explains which rule produced the state.
type DecisionReason string

const (
	ReasonSensitivityFlagged DecisionReason = "sensitivity_flagged"
	ReasonBelowThreshold     DecisionReason = "below_threshold"
	ReasonRegenerationsSpent DecisionReason = "regenerations_exhausted"
	ReasonThresholdsMet      DecisionReason = "thresholds_met"
	ReasonGenerationTimeout  DecisionReason = "generation_timeout"
)

// Decision is one evaluated transition out of the Generated state.
type Decision struct {
	State    DecisionState
	Reason   DecisionReason
	Feedback []string
}

// Terminal reports whether the decision ends the request.
func (d Decision) Terminal() bool {
	return d.State != DecisionRegenerationRequested
}
