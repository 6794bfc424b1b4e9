package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/grantpilot/grantpilot/internal/domain"
)

// PII and financial patterns. These are heuristics: false negatives are
// expected, false positives bias toward escalation.
var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern    = regexp.MustCompile(`\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]?\d{4}`)
	namePattern     = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)
	currencyPattern = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?`)
)

// ScannerConfig holds the injected heuristic vocabulary and thresholds.
type ScannerConfig struct {
	CulturalTerms           []string
	CulturalTermThreshold   int
	FinancialDigitThreshold int
}

// Scanner inspects generated text for PII, dense cultural references, and
// financial data. Scan is a pure function: no side effects, deterministic
// for a fixed configuration.
type Scanner struct {
	cfg           ScannerConfig
	culturalTerms []string
	digitRun      *regexp.Regexp
}

func NewScanner(cfg ScannerConfig) *Scanner {
	terms := make([]string, 0, len(cfg.CulturalTerms))
	for _, t := range cfg.CulturalTerms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}

	threshold := cfg.FinancialDigitThreshold
	if threshold <= 0 {
		threshold = 9
	}

	return &Scanner{
		cfg:           cfg,
		culturalTerms: terms,
		digitRun:      regexp.MustCompile(fmt.Sprintf(`\d{%d,}`, threshold)),
	}
}

// Scan produces a SensitivityReport for the given text.
func (s *Scanner) Scan(text string) domain.SensitivityReport {
	report := domain.SensitivityReport{
		Flags:        []domain.FlagKind{},
		MatchedSpans: []domain.MatchedSpan{},
	}

	piiSpans := s.scanPII(text)
	culturalSpans := s.scanCultural(text)
	financialSpans := s.scanFinancial(text)

	if len(piiSpans) > 0 {
		report.Flags = append(report.Flags, domain.FlagPII)
		report.MatchedSpans = append(report.MatchedSpans, piiSpans...)
	}
	if len(culturalSpans) >= s.culturalThreshold() {
		report.Flags = append(report.Flags, domain.FlagCulturalDensity)
		report.MatchedSpans = append(report.MatchedSpans, culturalSpans...)
	}
	if len(financialSpans) > 0 {
		report.Flags = append(report.Flags, domain.FlagFinancialData)
		report.MatchedSpans = append(report.MatchedSpans, financialSpans...)
	}

	return report
}

func (s *Scanner) culturalThreshold() int {
	if s.cfg.CulturalTermThreshold <= 0 {
		return 3
	}
	return s.cfg.CulturalTermThreshold
}

func (s *Scanner) scanPII(text string) []domain.MatchedSpan {
	spans := []domain.MatchedSpan{}
	for _, pattern := range []*regexp.Regexp{emailPattern, phonePattern, namePattern} {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, domain.MatchedSpan{Kind: domain.FlagPII, Start: loc[0], End: loc[1]})
		}
	}
	return spans
}

// scanCultural returns one span per distinct vocabulary term found; the
// cultural-density flag only fires when the distinct count reaches the
// threshold.
func (s *Scanner) scanCultural(text string) []domain.MatchedSpan {
	lower := strings.ToLower(text)
	spans := []domain.MatchedSpan{}
	for _, term := range s.culturalTerms {
		idx := strings.Index(lower, term)
		if idx < 0 {
			continue
		}
		spans = append(spans, domain.MatchedSpan{
			Kind:  domain.FlagCulturalDensity,
			Start: idx,
			End:   idx + len(term),
		})
	}
	return spans
}

func (s *Scanner) scanFinancial(text string) []domain.MatchedSpan {
	spans := []domain.MatchedSpan{}
	for _, pattern := range []*regexp.Regexp{currencyPattern, s.digitRun} {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			spans = append(spans, domain.MatchedSpan{Kind: domain.FlagFinancialData, Start: loc[0], End: loc[1]})
		}
	}
	return spans
}
