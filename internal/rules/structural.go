package rules

import (
	"fmt"

	"github.com/raysh454/darkscan/internal/extractor"
	"github.com/raysh454/darkscan/internal/model"
)

// StructuralRule inspects element state rather than text.
type StructuralRule struct {
	Name       string
	Category   model.Category
	Confidence float64
	Reason     string
	Applies    func(ext extractor.Extraction) bool
	Details    func(ext extractor.Extraction) string
}

// StructuralRules drives the UI-state pass.
var StructuralRules = []StructuralRule{
	{
		Name:       "pre-checked-checkbox",
		Category:   model.Sneaking,
		Confidence: 0.9,
		Reason:     "Checkbox is pre-selected without user interaction",
		Applies: func(ext extractor.Extraction) bool {
			return ext.Tag == "input" && ext.InputType == "checkbox" && ext.Checked
		},
		Details: func(ext extractor.Extraction) string {
			return fmt.Sprintf("The checkbox at %s is checked before the user has interacted with it.", locate(ext))
		},
	},
	{
		Name:       "pre-selected-radio",
		Category:   model.Misdirection,
		Confidence: 0.85,
		Reason:     "Radio button is pre-selected",
		Applies: func(ext extractor.Extraction) bool {
			return ext.Tag == "input" && ext.InputType == "radio" && ext.Checked
		},
		Details: func(ext extractor.Extraction) string {
			return fmt.Sprintf("The radio option at %s is selected by default, steering the user toward it.", locate(ext))
		},
	},
	{
		Name:       "hidden-input-field",
		Category:   model.Sneaking,
		Confidence: 0.85,
		Reason:     "Hidden input field detected",
		Applies: func(ext extractor.Extraction) bool {
			return ext.Tag == "input" && ext.InputType == "hidden" &&
				(suspiciousHiddenField.MatchString(ext.Name) || suspiciousHiddenField.MatchString(ext.Value))
		},
		Details: func(ext extractor.Extraction) string {
			return fmt.Sprintf("Hidden input field %q with value %q is being submitted without user knowledge.", ext.Name, ext.Value)
		},
	},
	{
		Name:       "hidden-form-element",
		Category:   model.Sneaking,
		Confidence: 0.7,
		Reason:     "Form element is hidden from view",
		Applies: func(ext extractor.Extraction) bool {
			if ext.Tag != "input" && ext.Tag != "select" {
				return false
			}
			return ext.InputType != "hidden" && !ext.Visible
		},
		Details: func(ext extractor.Extraction) string {
			return fmt.Sprintf("The %s element at %s is present in the form but not visible to the user.", ext.Tag, locate(ext))
		},
	},
}

// Structural is the UI-state pass. Visibility does not gate it: a hidden
// control is itself the signal.
type Structural struct{}

func (Structural) Name() string { return string(model.SourceUIState) }

func (Structural) Evaluate(ext extractor.Extraction) []model.Pattern {
	var out []model.Pattern
	for _, rule := range StructuralRules {
		if !rule.Applies(ext) {
			continue
		}
		var attrs map[string]string
		if ext.Name != "" || ext.Value != "" {
			attrs = map[string]string{"name": ext.Name, "value": ext.Value}
		}
		out = append(out, model.Pattern{
			ID:         model.StableID("ui", rule.Name, ext.Selector, ext.Snippet),
			Category:   rule.Category,
			Confidence: rule.Confidence,
			Snippet:    ext.Snippet,
			Reason:     rule.Reason,
			Details:    rule.Details(ext),
			Selector:   ext.Selector,
			Meta: model.Meta{
				Source:      model.SourceUIState,
				PatternType: "ui-state",
				Rule:        rule.Name,
				Attributes:  attrs,
			},
		})
	}
	return out
}

func locate(ext extractor.Extraction) string {
	if ext.Selector == "" {
		return "this location"
	}
	return ext.Selector
}
