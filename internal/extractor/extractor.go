// Package extractor turns DOM elements into the normalized text and state
// records the detectors consume.
package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/raysh454/darkscan/internal/dom"
)

// MaxSnippet is the default snippet length in characters.
const MaxSnippet = 300

// TextSelector matches the text-bearing elements of a full scan.
const TextSelector = "p, div, span, h1, h2, h3, h4, h5, h6, a, button, label"

// FormSelector matches the form controls of a full scan.
const FormSelector = "input, select, textarea"

// IgnoredTags never produce observations.
var IgnoredTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "link": true, "meta": true,
	"svg": true, "iframe": true, "img": true, "video": true, "audio": true,
}

// Extraction is everything the rule passes need to know about an element.
type Extraction struct {
	Tag       string
	InputType string

	// Text is the rendered text, possibly empty.
	Text string

	// Snippet is Text or, when empty, the attribute/tag fallback.
	Snippet string

	Selector    string
	Visible     bool
	StyleHidden bool
	Opacity     float64
	Checked     bool
	Selected    bool
	Name        string
	Value       string
}

// Extractor produces snippets truncated to MaxLen characters.
type Extractor struct {
	MaxLen int
}

// New returns an Extractor with the default snippet length.
func New() *Extractor {
	return &Extractor{MaxLen: MaxSnippet}
}

// Text returns the element's whitespace-collapsed rendered text, truncated.
func (x *Extractor) Text(el *dom.Element) string {
	if el == nil {
		return ""
	}
	return Truncate(el.Text(), x.maxLen())
}

// Snippet is Text with a fallback to aria-label, value, name, id and
// finally the tag name.
func (x *Extractor) Snippet(el *dom.Element) string {
	if el == nil {
		return ""
	}
	if text := x.Text(el); text != "" {
		return text
	}
	for _, attr := range []string{"aria-label", "value", "name", "id"} {
		if v := el.AttrTrimmed(attr); v != "" {
			return Truncate(dom.CollapseSpace(v), x.maxLen())
		}
	}
	return el.Tag()
}

// Extract builds the full record for el.
func (x *Extractor) Extract(el *dom.Element) Extraction {
	text := x.Text(el)
	snippet := text
	if snippet == "" {
		snippet = x.Snippet(el)
	}
	return Extraction{
		Tag:         el.Tag(),
		InputType:   el.InputType(),
		Text:        text,
		Snippet:     snippet,
		Selector:    el.CSSPath(),
		Visible:     el.Visible(),
		StyleHidden: el.StyleHidden(),
		Opacity:     el.Opacity(),
		Checked:     el.Checked(),
		Selected:    el.Selected(),
		Name:        el.AttrTrimmed("name"),
		Value:       el.AttrTrimmed("value"),
	}
}

// Ignored reports whether el belongs to a tag that is never scanned.
func Ignored(el *dom.Element) bool {
	return el == nil || IgnoredTags[el.Tag()]
}

func (x *Extractor) maxLen() int {
	if x == nil || x.MaxLen <= 0 {
		return MaxSnippet
	}
	return x.MaxLen
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
