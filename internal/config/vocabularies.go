package config

// Default heuristic vocabularies and scoring policy. These are starting
// points, not fixed policy: every one of them can be replaced through the
// environment without touching the scanner or evaluator code.

// DefaultCulturalVocabulary returns the built-in list of cultural and
// identity terms counted by the sensitivity scanner.
func DefaultCulturalVocabulary() []string {
	return []string{
		"heritage", "ancestral", "indigenous", "tribal", "diaspora",
		"immigrant", "refugee", "bilingual", "multicultural", "intergenerational",
		"elders", "ethnicity", "faith-based", "congregation", "barbershop",
		"historically black", "first-generation", "native", "latinx", "afrocentric",
	}
}

// DefaultJargonVocabulary returns terms the cognitive scorer penalizes as
// grant-writing jargon.
func DefaultJargonVocabulary() []string {
	return []string{
		"synergy", "leverage", "paradigm", "stakeholder alignment", "holistic",
		"utilize", "operationalize", "incentivize", "impactful", "scalable",
		"wraparound", "capacity-building", "evidence-based", "best-in-class",
	}
}

// DefaultCognitiveWeights returns the combination weights for the cognitive
// sub-metrics.
func DefaultCognitiveWeights() map[string]float64 {
	return map[string]float64{
		"sentence_length": 0.4,
		"structure":       0.3,
		"jargon_density":  0.3,
	}
}

// DefaultMetricTargets returns per-metric targets below which the evaluator
// emits a recommendation.
func DefaultMetricTargets() map[string]float64 {
	return map[string]float64{
		"sentence_length":      0.6,
		"structure":            0.5,
		"jargon_density":       0.6,
		"inclusive_language":   0.5,
		"strength_based":       0.5,
		"stereotype_avoidance": 0.5,
	}
}

// DefaultCompetencyMarkers returns the indicator categories the competency
// score is measured against, each with its marker vocabulary. The
// stereotype_avoidance category is inverted: its markers are terms whose
// presence lowers the sub-score.
func DefaultCompetencyMarkers() map[string][]string {
	return map[string][]string{
		"inclusive_language": {
			"community", "together", "partnership", "collaborative", "shared",
			"accessible", "welcoming", "belonging", "every", "all",
		},
		"strength_based": {
			"strength", "asset", "resilient", "capable", "thriving",
			"leadership", "expertise", "wisdom", "success", "opportunity",
		},
		"stereotype_avoidance": {
			"at-risk", "underprivileged", "disadvantaged", "broken", "plagued",
			"needy", "helpless", "culture of poverty",
		},
	}
}
