// Package tracker keeps the per-session map of DOM candidates: elements
// whose structure or text carries a dark-pattern signal. Observations are
// merged monotonically, so repeated sweeps and mutation updates only ever
// add signals.
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/raysh454/darkscan/internal/dom"
	"github.com/raysh454/darkscan/internal/extractor"
	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/model"
)

const outerHTMLLimit = 800

// Tracker owns the candidate map of one detection session.
type Tracker struct {
	x      *extractor.Extractor
	logger logging.Logger
	now    func() time.Time

	mu         sync.RWMutex
	candidates map[string]Candidate
	order      []string
	swept      bool
}

// New creates an empty tracker. A nil extractor uses the default snippet
// length.
func New(x *extractor.Extractor, logger logging.Logger) *Tracker {
	if x == nil {
		x = extractor.New()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Tracker{
		x:          x,
		logger:     logger.With(logging.Field{Key: "component", Value: "tracker"}),
		now:        time.Now,
		candidates: make(map[string]Candidate),
	}
}

// Evaluate inspects el without touching the map. ok is false when el is
// outside the scan tag set or carries no signal.
func (t *Tracker) Evaluate(el *dom.Element) (c Candidate, ok bool) {
	if el == nil || !scanTagSet[el.Tag()] || extractor.Ignored(el) {
		return Candidate{}, false
	}
	ext := t.x.Extract(el)

	types := priorityTypes(ext)
	matches := SuspiciousMatches(ext.Snippet)
	if ext.Tag == "label" && len([]rune(ext.Snippet)) > 20 && labelOptIn.MatchString(ext.Snippet) &&
		!hasGroup(matches, GroupSubscriptionTrap) {
		matches = append(matches, model.Match{Category: GroupSubscriptionTrap, Text: "opt-in by default language"})
	}
	if len(types) == 0 && len(matches) == 0 {
		return Candidate{}, false
	}

	var attrs map[string]string
	if ext.Tag == "input" && ext.Name != "" {
		attrs = map[string]string{"name": ext.Name, "value": ext.Value}
	}
	return Candidate{
		Fingerprint:   Fingerprint(ext.Tag, ext.Selector, ext.Snippet),
		Tag:           ext.Tag,
		Selector:      ext.Selector,
		Snippet:       ext.Snippet,
		PriorityTypes: types,
		Matches:       matches,
		Priority:      len(types) > 0,
		Attributes:    attrs,
		OuterHTML:     el.OuterHTML(outerHTMLLimit),
		UpdatedAt:     t.now(),
	}, true
}

func priorityTypes(ext extractor.Extraction) []string {
	var types []string
	add := func(t string) {
		if !contains(types, t) {
			types = append(types, t)
		}
	}

	if ext.Tag == "input" {
		switch {
		case ext.InputType == "hidden":
			if suspiciousField.MatchString(ext.Name) || (ext.Value != "" && suspiciousField.MatchString(ext.Value)) {
				add(TypeHiddenInputField)
			}
		case ext.InputType == "checkbox" && ext.Checked:
			add(TypeAutoTickedCheckbox)
		case ext.InputType == "radio" && ext.Checked:
			add(TypeAutoSelectedRadio)
		}
	}
	if ext.Tag == "option" && ext.Selected {
		add(TypeAutoSelectedOption)
	}
	if (ext.Tag == "input" || ext.Tag == "option") && (ext.Checked || ext.Selected) &&
		!IsLikelyLanguageSelector(ext.Text) && !ext.Visible {
		add(TypeHiddenActiveControl)
	}
	if len([]rune(ext.Text)) > 10 {
		hidden := ext.StyleHidden || ext.Opacity < 0.1
		faint := ext.Opacity > 0 && ext.Opacity < 0.3
		if (hidden || faint) && manipulativeHidden.MatchString(ext.Text) {
			add(TypeHiddenActiveControl)
		}
	}
	return types
}

// Observe evaluates el and merges the result into the map. It reports
// whether el qualified. A panic on an unexpected element shape is logged and
// the element is skipped.
func (t *Tracker) Observe(el *dom.Element) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("candidate evaluation failed", logging.Field{Key: "error", Value: fmt.Sprint(r)})
			ok = false
		}
	}()

	c, ok := t.Evaluate(el)
	if !ok {
		return false
	}
	t.upsert(c)
	return true
}

func (t *Tracker) upsert(c Candidate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, found := t.candidates[c.Fingerprint]; found {
		t.candidates[c.Fingerprint] = Merge(existing, c)
		return
	}
	t.candidates[c.Fingerprint] = c
	t.order = append(t.order, c.Fingerprint)
}

// Sweep evaluates every element of the scan tag set in doc and returns the
// number that qualified.
func (t *Tracker) Sweep(doc *dom.Document) int {
	if doc == nil {
		return 0
	}
	n := 0
	for _, el := range doc.Select(ScanSelector) {
		if t.Observe(el) {
			n++
		}
	}
	t.mu.Lock()
	t.swept = true
	t.mu.Unlock()
	t.logger.Debug("dom sweep complete",
		logging.Field{Key: "qualified", Value: n},
		logging.Field{Key: "candidates", Value: t.Len()})
	return n
}

// Apply re-evaluates the elements touched by muts. Inserted subtrees are
// walked for scan-tag descendants; attribute changes re-evaluate the target
// only.
func (t *Tracker) Apply(muts []dom.Mutation) int {
	n := 0
	for _, m := range muts {
		if m.Target == nil {
			continue
		}
		if t.Observe(m.Target) {
			n++
		}
		if m.Kind != dom.ChildList {
			continue
		}
		for _, el := range m.Target.Find(ScanSelector) {
			if t.Observe(el) {
				n++
			}
		}
	}
	return n
}

// Swept reports whether a full sweep has run.
func (t *Tracker) Swept() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.swept
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.candidates)
}

// Get returns a copy of the candidate with the given fingerprint.
func (t *Tracker) Get(fingerprint string) (Candidate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.candidates[fingerprint]
	if !ok {
		return Candidate{}, false
	}
	return c.clone(), true
}

// Candidates returns copies of all candidates in first-seen order.
func (t *Tracker) Candidates() []Candidate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Candidate, 0, len(t.order))
	for _, fp := range t.order {
		out = append(out, t.candidates[fp].clone())
	}
	return out
}

// Patterns converts every candidate to its DOM-rule patterns.
func (t *Tracker) Patterns() []model.Pattern {
	var out []model.Pattern
	for _, c := range t.Candidates() {
		out = append(out, ToPatterns(c)...)
	}
	return out
}
