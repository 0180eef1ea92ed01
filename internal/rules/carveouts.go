package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CarveOut suppresses detection for text known to be legitimate.
type CarveOut struct {
	Name    string
	Applies func(in CarveOutInput) bool
}

// CarveOutInput is the text under test plus the derived forms the
// carve-outs share.
type CarveOutInput struct {
	// Text is the snippet itself.
	Text string
	// Full is Text with short-snippet context appended.
	Full  string
	Lower string
	Words int
}

// NewCarveOutInput builds the input for text. context (a pattern's details
// or reason) is appended to snippets shorter than 200 characters, capped at
// 500 characters.
func NewCarveOutInput(text, context string) CarveOutInput {
	text = strings.TrimSpace(text)
	full := text
	if context = strings.TrimSpace(context); context != "" && utf8.RuneCountInString(text) < 200 {
		if r := []rune(context); len(r) > 500 {
			context = string(r[:500])
		}
		full = text + " " + context
	}
	return CarveOutInput{
		Text:  text,
		Full:  full,
		Lower: strings.ToLower(full),
		Words: len(strings.Fields(text)),
	}
}

// CarveOuts are evaluated in order; the first that applies wins.
var CarveOuts = []CarveOut{
	{Name: "regulatory-disclosure", Applies: isRegulatoryDisclosure},
	{Name: "navigation", Applies: isNavigation},
	{Name: "travel-requirement", Applies: isTravelRequirement},
	{Name: "transparent-free-trial", Applies: isTransparentFreeTrial},
}

// Exemption returns the name of the carve-out covering text, or "" when
// none applies.
func Exemption(text, context string) string {
	in := NewCarveOutInput(text, context)
	if in.Text == "" {
		return ""
	}
	for _, c := range CarveOuts {
		if c.Applies(in) {
			return c.Name
		}
	}
	return ""
}

// IsTransparentFreeTrial is exported on its own because verified results
// and enrichment re-apply it.
func IsTransparentFreeTrial(text, context string) bool {
	return isTransparentFreeTrial(NewCarveOutInput(text, context))
}

func isRegulatoryDisclosure(in CarveOutInput) bool {
	return in.Words <= 5 && regulatoryDisclosure.MatchString(in.Lower)
}

func isNavigation(in CarveOutInput) bool {
	if strings.Contains(in.Lower, "other links") {
		return true
	}
	if in.Words > 5 && countMatches(institutionalTerms, in.Lower) >= 3 {
		return true
	}
	return looksLikeNavigationList(in.Text)
}

// looksLikeNavigationList catches menus rendered as one run of capitalized
// entries, such as "Academic Calendar Campus Events NIRF Ranking Report".
func looksLikeNavigationList(text string) bool {
	words := strings.Fields(text)
	if len(words) <= 5 {
		return false
	}
	capitalized := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if utf8.RuneCountInString(w) > 2 && unicode.IsUpper(r) {
			capitalized++
		}
	}
	if float64(capitalized)/float64(len(words)) <= 0.6 {
		return false
	}
	return institutionalVocabulary.MatchString(text)
}

func isTravelRequirement(in CarveOutInput) bool {
	s := in.Lower
	if travelRequirement.MatchString(s) {
		return true
	}
	if !travelMandatory.MatchString(s) {
		return false
	}
	if travelAccess.MatchString(s) {
		return true
	}
	return travelPassenger.MatchString(s) && travelContact.MatchString(s)
}

func isTransparentFreeTrial(in CarveOutInput) bool {
	if !freeTrial.MatchString(in.Lower) {
		return false
	}
	if utf8.RuneCountInString(in.Full) <= 100 && utf8.RuneCountInString(in.Text) <= 100 {
		return false
	}
	return countMatches(transparencyIndicators, in.Lower) >= 2
}
