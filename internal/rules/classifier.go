package rules

import (
	"fmt"
	"math"

	"github.com/raysh454/darkscan/internal/extractor"
	"github.com/raysh454/darkscan/internal/model"
)

// DefaultThreshold is the minimum category score the classifier reports.
const DefaultThreshold = 0.6

// Classifier is the scored pass: every matching row scores its category,
// rows of one category combine by maximum, and categories at or above
// Threshold become proposals.
type Classifier struct {
	Threshold float64
}

func (Classifier) Name() string { return string(model.SourceClassifier) }

func (c Classifier) Evaluate(ext extractor.Extraction) []model.Pattern {
	if !textEligible(ext) {
		return nil
	}
	scores, fired := Score(ext.Text)

	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var out []model.Pattern
	for _, cat := range model.Categories {
		score, ok := scores[cat]
		if !ok || score < threshold {
			continue
		}
		out = append(out, model.Pattern{
			ID:         model.StableID("classifier", string(cat), ext.Selector, ext.Text),
			Category:   cat,
			Confidence: score,
			Snippet:    ext.Text,
			Reason:     CategoryReason(cat, ext.Text),
			Details: fmt.Sprintf("The text %q shows characteristics of %s patterns with %d%% confidence.",
				ext.Text, cat.Lower(), int(math.Round(score*100))),
			Selector: ext.Selector,
			Meta: model.Meta{
				Source:      model.SourceClassifier,
				PatternType: "classifier",
				Rule:        fired[cat],
			},
		})
	}
	return out
}

// Score runs the scored table over text and returns the best score per
// category together with the name of the row that produced it.
func Score(text string) (map[model.Category]float64, map[model.Category]string) {
	scores := make(map[model.Category]float64)
	fired := make(map[model.Category]string)
	for _, row := range ScoredRules {
		if !row.Match(text) {
			continue
		}
		if row.Score > scores[row.Category] {
			scores[row.Category] = row.Score
			fired[row.Category] = row.Name
		}
	}
	return scores, fired
}

// CategoryReason is the short reason line used for classifier proposals and
// as the last-resort description during enrichment.
func CategoryReason(cat model.Category, text string) string {
	text = extractor.Truncate(text, 60)
	switch cat {
	case model.Scarcity:
		return "Scarcity indicator detected: " + text
	case model.ForcedAction:
		return "Forced action pattern detected: " + text
	case model.SocialProof:
		return "Social proof pattern detected: " + text
	default:
		return string(cat) + " pattern detected: " + text
	}
}
