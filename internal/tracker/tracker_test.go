package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/darkscan/internal/dom"
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/testutil"
	"github.com/raysh454/darkscan/internal/tracker"
)

func parse(t *testing.T, body string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString("<html><body>"+body+"</body></html>", "https://shop.example/")
	require.NoError(t, err)
	return doc
}

func TestMerge_IsMonotonic(t *testing.T) {
	t.Parallel()

	first := tracker.Candidate{
		Fingerprint:   "span|body > span|Hurry",
		Snippet:       "Hurry",
		PriorityTypes: []string{tracker.TypeHiddenActiveControl},
		Matches:       []model.Match{{Category: tracker.GroupScarcityUrgency, Text: "Hurry"}},
	}
	second := tracker.Candidate{
		Fingerprint: first.Fingerprint,
		Snippet:     "Hurry, offer ends in 05:00",
		Matches: []model.Match{
			{Category: tracker.GroupCountdown, Text: "offer ends in"},
			{Category: tracker.GroupScarcityUrgency, Text: "Hurry"},
		},
	}

	merged := tracker.Merge(first, second)
	assert.Equal(t, []string{tracker.TypeHiddenActiveControl}, merged.PriorityTypes)
	assert.ElementsMatch(t, []model.Match{
		{Category: tracker.GroupScarcityUrgency, Text: "Hurry"},
		{Category: tracker.GroupCountdown, Text: "offer ends in"},
	}, merged.Matches)
	assert.Equal(t, "Hurry, offer ends in 05:00", merged.Snippet)

	again := tracker.Merge(merged, first)
	assert.Len(t, again.Matches, 2)
	assert.Equal(t, "Hurry, offer ends in 05:00", again.Snippet)
	assert.Equal(t, []string{tracker.TypeHiddenActiveControl}, again.PriorityTypes)
}

func TestSweep_PreCheckedCheckbox(t *testing.T) {
	t.Parallel()

	tr := tracker.New(nil, &testutil.DummyLogger{})
	assert.Equal(t, 1, tr.Sweep(parse(t, `<form><input type="checkbox" checked></form>`)))
	assert.True(t, tr.Swept())

	ps := tr.Patterns()
	require.Len(t, ps, 1)
	assert.Equal(t, model.Sneaking, ps[0].Category)
	assert.InDelta(t, 0.9, ps[0].Confidence, 1e-9)
	assert.Contains(t, ps[0].Reason, "pre-selected")
	assert.Equal(t, tracker.TypeAutoTickedCheckbox, ps[0].Meta.DOMRule)
	assert.Equal(t, model.SourceDOMRule, ps[0].Meta.Source)
	assert.Equal(t, "The checkbox at body > form > input is checked automatically before user consent.", ps[0].Details)
}

func TestSweep_RepeatedObservationKeepsOneCandidate(t *testing.T) {
	t.Parallel()

	tr := tracker.New(nil, nil)
	doc := parse(t, `<p>Only 3 left in stock</p>`)
	tr.Sweep(doc)
	first := tr.Patterns()
	tr.Sweep(doc)

	assert.Equal(t, 1, tr.Len())
	require.Len(t, first, 1)
	second := tr.Patterns()
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, model.Urgency, first[0].Category)
	assert.Equal(t, `Detected urgency/scarcity language "Only 3 left" within "Only 3 left in stock".`, first[0].Details)
}

func TestToPatterns_SuppressesLanguageSelectors(t *testing.T) {
	t.Parallel()

	tr := tracker.New(nil, nil)
	tr.Sweep(parse(t, `<select name="lang"><option>Deutsch</option><option selected>English</option></select>`))

	require.Equal(t, 1, tr.Len())
	c := tr.Candidates()[0]
	assert.Contains(t, c.PriorityTypes, tracker.TypeAutoSelectedOption)
	assert.Empty(t, tracker.ToPatterns(c))
}

func TestSweep_HiddenInputField(t *testing.T) {
	t.Parallel()

	tr := tracker.New(nil, nil)
	tr.Sweep(parse(t, `<form><input type="hidden" name="marketing_opt_in" value="yes"><input type="hidden" name="csrf" value="x1"></form>`))

	ps := tr.Patterns()
	require.Len(t, ps, 1)
	assert.Equal(t, tracker.TypeHiddenInputField, ps[0].Meta.DOMRule)
	assert.Equal(t, `Hidden input field "marketing_opt_in" with value "yes" is being submitted without user knowledge.`, ps[0].Details)
}

func TestApply_InsertedNodes(t *testing.T) {
	t.Parallel()

	obs := dom.NewObserver(dom.NewQueue())
	tr := tracker.New(nil, nil)

	before := parse(t, `<div id="toast"></div>`)
	assert.Empty(t, obs.Observe(before))
	tr.Sweep(before)
	assert.Equal(t, 0, tr.Len())

	after := parse(t, `<div id="toast"><span>Jane from Ohio purchased this 5 minutes ago</span></div>`)
	obs.Observe(after)
	assert.Positive(t, tr.Apply(obs.Queue().Drain()))

	var social []model.Pattern
	for _, p := range tr.Patterns() {
		if p.Category == model.SocialProof {
			social = append(social, p)
		}
	}
	require.NotEmpty(t, social)
	assert.Contains(t, social[0].Details, "Fake social proof notification detected")
}

func TestHiddenManipulativeText(t *testing.T) {
	t.Parallel()

	tr := tracker.New(nil, nil)
	tr.Sweep(parse(t, `<button style="opacity:0.2">No thanks, I like working harder</button>`))

	cands := tr.Candidates()
	require.Len(t, cands, 1)
	assert.Contains(t, cands[0].PriorityTypes, tracker.TypeHiddenActiveControl)
	assert.Contains(t, cands[0].Matches, model.Match{Category: tracker.GroupDeceptiveOptOut, Text: "No thanks"})
}

func TestIsLikelyLanguageSelector(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"English", "Español", " EN ", "Choose language menu"} {
		assert.True(t, tracker.IsLikelyLanguageSelector(s), s)
	}
	for _, s := range []string{"", "Only 2 left", "Subscribe to our weekly newsletter today"} {
		assert.False(t, tracker.IsLikelyLanguageSelector(s), s)
	}
}

func TestSuspiciousMatches_FallbacksAddMissingGroups(t *testing.T) {
	t.Parallel()

	got := tracker.SuspiciousMatches("You are opted in by default unless you untick")
	assert.Contains(t, got, model.Match{Category: tracker.GroupSubscriptionTrap, Text: "opted in by default"})
	assert.Empty(t, tracker.SuspiciousMatches("   "))
}
