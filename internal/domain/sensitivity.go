package domain

// FlagKind classifies what the sensitivity scanner matched.
type FlagKind string

const (
	FlagPII             FlagKind = "pii"
	FlagCulturalDensity FlagKind = "cultural_density"
	FlagFinancialData   FlagKind = "financial_data"

	// FlagGenerationTimeout is synthetic: the pipeline attaches it when the
	// generation service times out so the request still reaches human review.
	FlagGenerationTimeout FlagKind = "generation_timeout"
)

// MatchedSpan records where in the text a flag matched.
type MatchedSpan struct {
	Kind  FlagKind `json:"kind"`
	Start int      `json:"start"`
	End   int      `json:"end"`
}

// SensitivityReport is the scanner's output for a candidate response.
// Flags is a set: each kind appears at most once.
type SensitivityReport struct {
	Flags        []FlagKind    `json:"flags"`
	MatchedSpans []MatchedSpan `json:"matched_spans"`
}

// HasFlags reports whether any flag fired.
func (r SensitivityReport) HasFlags() bool {
	return len(r.Flags) > 0
}

// HasFlag reports whether a specific kind fired.
func (r SensitivityReport) HasFlag(kind FlagKind) bool {
	for _, f := range r.Flags {
		if f == kind {
			return true
		}
	}
	return false
}

// WithFlag returns a copy of the report with the given flag added, preserving
// set semantics.
func (r SensitivityReport) WithFlag(kind FlagKind) SensitivityReport {
	if r.HasFlag(kind) {
		return r
	}
	out := SensitivityReport{
		Flags:        append(append([]FlagKind{}, r.Flags...), kind),
		MatchedSpans: append([]MatchedSpan{}, r.MatchedSpans...),
	}
	return out
}
