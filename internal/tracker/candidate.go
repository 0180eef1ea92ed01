package tracker

import (
	"strings"
	"time"

	"github.com/raysh454/darkscan/internal/dom"
	"github.com/raysh454/darkscan/internal/extractor"
	"github.com/raysh454/darkscan/internal/model"
)

// Candidate is a DOM element carrying structural or textual signals.
type Candidate struct {
	// Fingerprint is tag|css path prefix|snippet prefix.
	Fingerprint   string            `json:"fingerprint"`
	Tag           string            `json:"tag"`
	Selector      string            `json:"selector"`
	Snippet       string            `json:"snippet"`
	PriorityTypes []string          `json:"priorityTypes"`
	Matches       []model.Match     `json:"matches"`
	Priority      bool              `json:"priority"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	OuterHTML     string            `json:"outerHTML,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func (c Candidate) match(group string) (model.Match, bool) {
	for _, m := range c.Matches {
		if m.Category == group {
			return m, true
		}
	}
	return model.Match{}, false
}

func (c Candidate) clone() Candidate {
	out := c
	out.PriorityTypes = append([]string(nil), c.PriorityTypes...)
	out.Matches = append([]model.Match(nil), c.Matches...)
	if c.Attributes != nil {
		out.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Fingerprint keys a candidate by tag, the first 120 characters of its CSS
// path and the first 80 characters of its snippet.
func Fingerprint(tag, selector, snippet string) string {
	return tag + "|" + extractor.Truncate(selector, 120) + "|" + dom.CollapseSpace(extractor.Truncate(snippet, 80))
}

// Merge folds incoming into existing without losing signals: structural
// flags and (group, text) matches are unioned and the longer snippet is
// kept.
func Merge(existing, incoming Candidate) Candidate {
	out := existing.clone()
	if len([]rune(incoming.Snippet)) > len([]rune(existing.Snippet)) {
		out.Snippet = incoming.Snippet
	}
	if out.Selector == "" {
		out.Selector = incoming.Selector
	}
	if out.Tag == "" {
		out.Tag = incoming.Tag
	}
	for _, t := range incoming.PriorityTypes {
		if !contains(out.PriorityTypes, t) {
			out.PriorityTypes = append(out.PriorityTypes, t)
		}
	}
	for _, m := range incoming.Matches {
		if !hasMatch(out.Matches, m) {
			out.Matches = append(out.Matches, m)
		}
	}
	for k, v := range incoming.Attributes {
		if out.Attributes == nil {
			out.Attributes = make(map[string]string)
		}
		if _, ok := out.Attributes[k]; !ok {
			out.Attributes[k] = v
		}
	}
	out.Priority = existing.Priority || incoming.Priority
	if out.OuterHTML == "" {
		out.OuterHTML = incoming.OuterHTML
	}
	if incoming.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = incoming.UpdatedAt
	}
	return out
}

// ToPatterns maps every structural flag and matched group of c to its
// canonical record, one pattern per rule type. Auto-selected options and
// radios that look like language pickers are skipped.
func ToPatterns(c Candidate) []model.Pattern {
	types := make([]string, 0, len(c.PriorityTypes)+len(c.Matches))
	for _, t := range c.PriorityTypes {
		if !contains(types, t) {
			types = append(types, t)
		}
	}
	for _, m := range c.Matches {
		if t := "suspicious-" + m.Category; !contains(types, t) {
			types = append(types, t)
		}
	}

	var out []model.Pattern
	for _, t := range types {
		meta, ok := RuleMetadata[t]
		if !ok {
			continue
		}
		if (t == TypeAutoSelectedOption || t == TypeAutoSelectedRadio) && IsLikelyLanguageSelector(c.Snippet) {
			continue
		}
		icon, color := meta.Icon, meta.Color
		if icon == "" || color == "" {
			info := meta.Category.Info()
			icon, color = info.Icon, info.Color
		}
		out = append(out, model.Pattern{
			ID:         model.StableID("dom", c.Fingerprint) + "-" + t,
			Category:   meta.Category,
			Confidence: meta.Confidence,
			Snippet:    c.Snippet,
			Reason:     meta.Reason,
			Details:    meta.Details(c),
			Selector:   c.Selector,
			Icon:       icon,
			Color:      color,
			Timestamp:  c.UpdatedAt,
			Meta: model.Meta{
				Source:     model.SourceDOMRule,
				DOMRule:    t,
				Matches:    append([]model.Match(nil), c.Matches...),
				Attributes: copyAttrs(c.Attributes),
			},
		})
	}
	return out
}

// RuleDetails returns the detail text for rule type t of c, or "".
func RuleDetails(t string, c Candidate) string {
	if meta, ok := RuleMetadata[t]; ok {
		return meta.Details(c)
	}
	return ""
}

// SuspiciousMatches runs the suspicious-text table over text.
func SuspiciousMatches(text string) []model.Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []model.Match
	for _, g := range SuspiciousGroups {
		for _, re := range g.Patterns {
			if hit := re.FindString(text); hit != "" {
				out = append(out, model.Match{Category: g.Name, Text: hit})
				break
			}
		}
	}
	lower := strings.ToLower(text)
	for _, fb := range fallbackMatches {
		if hasGroup(out, fb.Group) {
			continue
		}
		if hit := fb.Pattern.FindString(lower); hit != "" {
			out = append(out, model.Match{Category: fb.Group, Text: hit})
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasMatch(list []model.Match, m model.Match) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}

func hasGroup(list []model.Match, group string) bool {
	for _, v := range list {
		if v.Category == group {
			return true
		}
	}
	return false
}

func copyAttrs(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
