package verifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/raysh454/darkscan/internal/dedupe"
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/relay"
	"github.com/raysh454/darkscan/internal/rules"
	"github.com/raysh454/darkscan/internal/tracker"
)

// chromeBlacklist holds UI chrome strings rejected on exact match only.
var chromeBlacklist = map[string]bool{
	"skip to content": true, "open image": true, "open image in full screen": true,
	"privacy policy": true, "terms of service": true, "contact information": true,
	"customer care": true, "shipping policy": true, "refund policy": true,
	"search": true, "most recent": true, "close dialog": true,
	"product information": true, "other links": true, "add to cart": true,
	"buy it now": true, "shop search": true, "contact us": true, "connect": true,
	"primary": true, "close": true, "menu": true, "header": true, "footer": true,
}

var (
	darkPatternIndicators = regexp.MustCompile(`(?i)opt.*in.*default|by.*not.*checking|working.*harder|manipulative|deceptive|agree.*to.*be.*opted`)
	darkPatternKeywords   = regexp.MustCompile(`(?i)opt.*in.*default|by.*not.*checking|working.*harder|manipulative|deceptive`)
	institutionalNav      = regexp.MustCompile(`(?i)academic|calendar|campus|events|ranking|report|careers|faculty|scholarships|feedback|disclosures|achievements|openings|corner|downloads|centre|depository|development|goal`)
)

// Rejection names why the prefilter dropped a pattern.
type Rejection string

const (
	RejectTooShort Rejection = "too-short"
	RejectNoisyUI  Rejection = "noisy-ui"
)

// LooksLikeNoisyUI reports navigation and page-chrome fragments.
func LooksLikeNoisyUI(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if utf8.RuneCountInString(t) < 4 || !hasLetter(t) {
		return true
	}
	if darkPatternIndicators.MatchString(t) {
		return false
	}
	if strings.HasPrefix(t, "other links") {
		return true
	}

	words := strings.Fields(text)
	if len(words) > 5 {
		capitalized := 0
		for _, w := range words {
			r, _ := utf8.DecodeRuneInString(w)
			if utf8.RuneCountInString(w) > 2 && r >= 'A' && r <= 'Z' {
				capitalized++
			}
		}
		if float64(capitalized)/float64(len(words)) > 0.6 && institutionalNav.MatchString(t) {
			return true
		}
	}

	if len(strings.Fields(t)) <= 3 && chromeBlacklist[strings.Join(strings.Fields(t), " ")] {
		return true
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Screen applies the local prefilter to one pattern and returns the reason
// it was rejected, or "" when it may be verified.
func Screen(p model.Pattern) string {
	text := strings.TrimSpace(p.Snippet)
	if utf8.RuneCountInString(text) < dedupe.MinLen {
		return string(RejectTooShort)
	}
	if name := rules.Exemption(text, contextOf(p)); name != "" {
		return name
	}
	if !p.IsDOMRule() && !darkPatternKeywords.MatchString(text) && LooksLikeNoisyUI(text) {
		return string(RejectNoisyUI)
	}
	return ""
}

// Prepare runs the prefilter and the pre-deduplication and returns the
// request items in input order.
func Prepare(patterns []model.Pattern) []relay.Item {
	var passed []model.Pattern
	for _, p := range patterns {
		if Screen(p) == "" {
			passed = append(passed, p)
		}
	}
	passed = dedupe.PreDedupe(passed)

	items := make([]relay.Item, 0, len(passed))
	for _, p := range passed {
		items = append(items, toItem(p))
	}
	return items
}

func toItem(p model.Pattern) relay.Item {
	category := p.Category
	if category == "" {
		category = model.Misdirection
	}
	confidence := p.Confidence
	if confidence == 0 {
		confidence = 0.7
	}
	reason := p.Reason
	if reason == "" && p.Meta.DOMRule != "" {
		reason = tracker.RuleMetadata[p.Meta.DOMRule].Reason
	}
	return relay.Item{
		Text:        strings.TrimSpace(p.Snippet),
		Category:    string(category),
		Confidence:  confidence,
		Reason:      reason,
		PatternType: patternType(p),
	}
}

func patternType(p model.Pattern) string {
	if p.Meta.DOMRule != "" {
		return p.Meta.DOMRule
	}
	return p.Meta.PatternType
}

// contextOf is the text appended to short snippets by the carve-outs.
func contextOf(p model.Pattern) string {
	if p.Details != "" {
		return p.Details
	}
	return p.Reason
}
