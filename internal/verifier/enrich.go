package verifier

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/relay"
	"github.com/raysh454/darkscan/internal/rules"
	"github.com/raysh454/darkscan/internal/tracker"
)

//go:embed descriptions.json
var descriptionsJSON []byte

type categoryDescription struct {
	Detailed string `json:"detailed"`
}

var (
	descriptionsOnce sync.Once
	descriptions     map[string]categoryDescription
)

var unavailable = regexp.MustCompile(`(?i)^explanation unavailable\.?$`)

// maxPromptText caps the snippet sent for description generation.
const maxPromptText = 250

// DetailedDescription returns the long-form description of category.
func DetailedDescription(category model.Category) string {
	descriptionsOnce.Do(func() {
		if err := json.Unmarshal(descriptionsJSON, &descriptions); err != nil {
			descriptions = map[string]categoryDescription{}
		}
	})
	if d, ok := descriptions[string(category)]; ok && d.Detailed != "" {
		return d.Detailed
	}
	return fmt.Sprintf("This pattern falls under the %s category of dark patterns.", category)
}

// FallbackReason is the short description used when generation is disabled
// or fails: the existing reason, then the rule reason, then a template.
func FallbackReason(p model.Pattern) string {
	if p.Reason != "" {
		return p.Reason
	}
	if meta, ok := tracker.RuleMetadata[p.Meta.DOMRule]; ok && meta.Reason != "" {
		return meta.Reason
	}
	if snippet := strings.TrimSpace(p.Snippet); snippet != "" {
		return rules.CategoryReason(p.Category, snippet)
	}
	return fmt.Sprintf("Detected %s pattern", p.Category.Lower())
}

// Enrich drops transparent free-trial disclosures and fills reason and
// details on the rest. Generated descriptions replace the reason when the
// relay answers with something usable.
func (v *Verifier) Enrich(ctx context.Context, patterns []model.Pattern) []model.Pattern {
	var kept []model.Pattern
	for _, p := range patterns {
		if rules.IsTransparentFreeTrial(p.Snippet, contextOf(p)) {
			v.logger.Debug("transparent free trial dropped before enrichment",
				logging.Field{Key: "snippet", Value: p.Snippet})
			continue
		}
		kept = append(kept, p.Clone())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.EnrichWorkers)
	for i := range kept {
		g.Go(func() error {
			p := &kept[i]
			p.Reason = v.describe(gctx, *p)
			p.Details = detailsFor(*p)
			return nil
		})
	}
	_ = g.Wait()
	return kept
}

func (v *Verifier) describe(ctx context.Context, p model.Pattern) string {
	fallback := FallbackReason(p)
	if !v.cfg.Describe || v.relay == nil {
		return fallback
	}

	text := strings.TrimSpace(p.Snippet)
	if len([]rune(text)) < 3 {
		text = strings.TrimSpace(p.Details)
	}
	if len([]rune(text)) < 3 {
		return fallback
	}
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}

	desc, err := v.relay.Describe(ctx, relay.DescribeRequest{
		Category:    string(p.Category),
		Text:        text,
		Reason:      p.Reason,
		PatternType: patternType(p),
	})
	if err != nil {
		v.logger.Warn("description generation failed",
			logging.Field{Key: "category", Value: string(p.Category)},
			logging.Field{Key: "error", Value: err.Error()})
		return fallback
	}
	if desc == "" || unavailable.MatchString(desc) {
		return fallback
	}
	return desc
}

func detailsFor(p model.Pattern) string {
	detailed := DetailedDescription(p.Category)
	if p.Meta.DOMRule == "" {
		return detailed
	}
	rule := tracker.RuleDetails(p.Meta.DOMRule, tracker.Candidate{
		Snippet:    p.Snippet,
		Selector:   p.Selector,
		Matches:    p.Meta.Matches,
		Attributes: p.Meta.Attributes,
	})
	if rule == "" {
		return detailed
	}
	return rule + " " + detailed
}
