package domain

// EvaluationResult holds the two independent quality scores for a candidate
// response. Produced once per candidate and immutable afterwards.
//
// CognitiveScore measures structure and readability; CompetencyScore measures
// alignment with context-appropriate framing indicators. Both are in [0,1].
type EvaluationResult struct {
	CognitiveScore  float64            `json:"cognitive_score"`
	CompetencyScore float64            `json:"competency_score"`
	Indicators      map[string]float64 `json:"indicators"`
	Recommendations []string           `json:"recommendations"`
}
