package verifier

import (
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/rules"
)

const (
	// Transport or malformed-response failure.
	FailureDOMRuleMin   = 0.80
	FailureHeuristicMin = 0.90

	// The verifier answered but confirmed nothing.
	EmptyDOMRuleMin = 0.75
)

// FailureFallback keeps structural patterns at or above 0.80 and any other
// pattern at or above 0.90. Carved-out text is never kept.
func FailureFallback(patterns []model.Pattern) []model.Pattern {
	var out []model.Pattern
	for _, p := range patterns {
		if rules.Exemption(p.Snippet, contextOf(p)) != "" {
			continue
		}
		min := FailureHeuristicMin
		if p.IsDOMRule() {
			min = FailureDOMRuleMin
		}
		if p.Confidence >= min {
			out = append(out, p)
		}
	}
	return out
}

// EmptyFallback keeps only structural patterns at or above 0.75 that are
// not transparent free-trial disclosures.
func EmptyFallback(patterns []model.Pattern) []model.Pattern {
	var out []model.Pattern
	for _, p := range patterns {
		if !p.IsDOMRule() || p.Confidence < EmptyDOMRuleMin {
			continue
		}
		if rules.IsTransparentFreeTrial(p.Snippet, contextOf(p)) {
			continue
		}
		out = append(out, p)
	}
	return out
}
