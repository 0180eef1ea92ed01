package rules

import (
	"fmt"
	"strings"

	"github.com/raysh454/darkscan/internal/extractor"
	"github.com/raysh454/darkscan/internal/model"
)

// HeuristicConfidence is the fixed confidence of keyword proposals.
const HeuristicConfidence = 0.8

// Heuristic is the keyword pass. Each category contributes at most one
// proposal, for the first keyword found in the text.
type Heuristic struct{}

func (Heuristic) Name() string { return string(model.SourceHeuristic) }

func (Heuristic) Evaluate(ext extractor.Extraction) []model.Pattern {
	if !textEligible(ext) {
		return nil
	}
	lower := strings.ToLower(ext.Text)

	var out []model.Pattern
	for _, row := range Keywords {
		for _, kw := range row.Words {
			if !strings.Contains(lower, kw) {
				continue
			}
			out = append(out, model.Pattern{
				ID:         model.StableID("heuristic", string(row.Category), ext.Selector, ext.Text),
				Category:   row.Category,
				Confidence: HeuristicConfidence,
				Snippet:    ext.Text,
				Reason:     fmt.Sprintf("Contains %q - common %s indicator", kw, row.Category.Lower()),
				Details:    fmt.Sprintf("The text %q contains language typically used in %s patterns.", ext.Text, row.Category.Lower()),
				Selector:   ext.Selector,
				Meta: model.Meta{
					Source:      model.SourceHeuristic,
					PatternType: "keyword",
					Rule:        kw,
				},
			})
			break
		}
	}
	return out
}

// textEligible gates the text passes: invisible elements and very short
// text never produce text proposals.
func textEligible(ext extractor.Extraction) bool {
	return ext.Visible && len([]rune(ext.Text)) >= 3
}
