package service

import (
	"sort"
	"strings"

	"github.com/grantpilot/grantpilot/internal/domain"
)

// Cognitive sub-metric names.
const (
	MetricSentenceLength = "sentence_length"
	MetricStructure      = "structure"
	MetricJargonDensity  = "jargon_density"
)

// EvaluatorConfig holds the injected scoring policy: combination weights for
// the cognitive sub-metrics, per-metric recommendation targets, the jargon
// vocabulary, and the competency marker categories. ScopeMarkers optionally
// adds scope-specific marker terms per category.
type EvaluatorConfig struct {
	Weights      map[string]float64
	Targets      map[string]float64
	Jargon       []string
	Markers      map[string][]string
	ScopeMarkers map[string]map[string][]string
}

// Evaluator computes the two independent quality scores for a candidate
// response. For a fixed text, context scope, and configuration the result is
// bit-identical across calls; the decision engine's termination bound
// depends on that.
type Evaluator struct {
	cfg    EvaluatorConfig
	jargon []string
}

func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	jargon := make([]string, 0, len(cfg.Jargon))
	for _, t := range cfg.Jargon {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			jargon = append(jargon, t)
		}
	}
	return &Evaluator{cfg: cfg, jargon: jargon}
}

// Evaluate scores text against the configured policy for a context scope.
func (e *Evaluator) Evaluate(text, contextScope string) domain.EvaluationResult {
	indicators := map[string]float64{
		MetricSentenceLength: sentenceLengthScore(text),
		MetricStructure:      structureScore(text),
		MetricJargonDensity:  e.jargonScore(text),
	}

	cognitive := e.combineCognitive(indicators)

	competency := e.competencyScore(text, contextScope, indicators)

	return domain.EvaluationResult{
		CognitiveScore:  cognitive,
		CompetencyScore: competency,
		Indicators:      indicators,
		Recommendations: e.recommendations(indicators),
	}
}

// combineCognitive is a weighted mean over the cognitive sub-metrics. Metrics
// without a configured weight contribute nothing.
func (e *Evaluator) combineCognitive(indicators map[string]float64) float64 {
	var sum, weightSum float64
	for _, metric := range []string{MetricSentenceLength, MetricStructure, MetricJargonDensity} {
		w := e.cfg.Weights[metric]
		if w <= 0 {
			continue
		}
		sum += w * indicators[metric]
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return clamp01(sum / weightSum)
}

// competencyScore measures alignment against the configured indicator
// categories. Each category contributes a sub-score (recorded in indicators)
// and the overall score is their mean. The stereotype_avoidance category is
// inverted: matches lower its sub-score.
func (e *Evaluator) competencyScore(text, contextScope string, indicators map[string]float64) float64 {
	lower := strings.ToLower(text)

	categories := make([]string, 0, len(e.cfg.Markers))
	for category := range e.cfg.Markers {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	if len(categories) == 0 {
		return 0
	}

	var total float64
	for _, category := range categories {
		markers := e.cfg.Markers[category]
		if scoped, ok := e.cfg.ScopeMarkers[contextScope]; ok {
			markers = append(append([]string{}, markers...), scoped[category]...)
		}

		hits := 0
		for _, marker := range markers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				hits++
			}
		}

		var score float64
		if category == "stereotype_avoidance" {
			score = clamp01(1 - float64(hits)/2)
		} else {
			score = clamp01(float64(hits) / 3)
		}
		indicators[category] = score
		total += score
	}

	return total / float64(len(categories))
}

// recommendations emits one entry per sub-metric below its configured
// target, worst first. Ties break on metric name so output is stable.
func (e *Evaluator) recommendations(indicators map[string]float64) []string {
	type lagging struct {
		metric string
		score  float64
	}

	var below []lagging
	for metric, score := range indicators {
		target, ok := e.cfg.Targets[metric]
		if !ok || score >= target {
			continue
		}
		below = append(below, lagging{metric: metric, score: score})
	}

	sort.Slice(below, func(i, j int) bool {
		if below[i].score != below[j].score {
			return below[i].score < below[j].score
		}
		return below[i].metric < below[j].metric
	})

	recs := make([]string, 0, len(below))
	for _, l := range below {
		recs = append(recs, recommendationFor(l.metric))
	}
	return recs
}

var metricRecommendations = map[string]string{
	MetricSentenceLength:   "Shorten long sentences; aim for under 25 words on average.",
	MetricStructure:        "Break the response into paragraphs or an enumerated list.",
	MetricJargonDensity:    "Replace grant-writing jargon with plain language.",
	"inclusive_language":   "Use more inclusive, community-centered language.",
	"strength_based":       "Frame the community in terms of strengths and assets, not deficits.",
	"stereotype_avoidance": "Remove deficit-framing terms that stereotype the community.",
}

func recommendationFor(metric string) string {
	if rec, ok := metricRecommendations[metric]; ok {
		return rec
	}
	return "Improve the " + metric + " sub-metric."
}

// sentenceLengthScore inverse-normalizes average sentence length: 1.0 at or
// below 15 words per sentence, declining linearly to 0 at 40.
func sentenceLengthScore(text string) float64 {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return 0
	}

	var words int
	for _, s := range sentences {
		words += len(strings.Fields(s))
	}
	avg := float64(words) / float64(len(sentences))

	return clamp01((40 - avg) / 25)
}

// structureScore rewards paragraph breaks and enumeration markers.
func structureScore(text string) float64 {
	var score float64

	if strings.Contains(text, "\n\n") {
		score += 0.5
	}

	bullets := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") || startsWithEnumeration(trimmed) {
			bullets++
		}
	}
	if bullets > 4 {
		bullets = 4
	}
	score += 0.5 * float64(bullets) / 4

	return clamp01(score)
}

func startsWithEnumeration(line string) bool {
	if len(line) < 2 {
		return false
	}
	if line[0] < '0' || line[0] > '9' {
		return false
	}
	rest := strings.TrimLeft(line, "0123456789")
	return strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, ")")
}

// jargonScore penalizes jargon density per total word count.
func (e *Evaluator) jargonScore(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, term := range e.jargon {
		hits += strings.Count(lower, term)
	}

	density := float64(hits) / float64(words)
	return clamp01(1 - density*20)
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
