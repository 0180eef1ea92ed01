package dedupe_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/darkscan/internal/dedupe"
	"github.com/raysh454/darkscan/internal/model"
)

func pat(cat model.Category, conf float64, snippet string) model.Pattern {
	return model.Pattern{Category: cat, Confidence: conf, Snippet: snippet}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "only 2 left hurry", dedupe.Normalize("  Only 2 left!\n\tHurry!!  "))
	assert.Equal(t, "", dedupe.Normalize("!!! ..."))
	assert.Len(t, []rune(dedupe.Normalize(strings.Repeat("abc ", 100))), dedupe.NormalizedLen)
}

func TestMerge_SubstringCollapsesToLonger(t *testing.T) {
	t.Parallel()

	in := []model.Pattern{
		pat(model.Scarcity, 0.95, "Only 2 left"),
		pat(model.Urgency, 0.85, "Only 2 left! Hurry, offer ends in 5 minutes"),
	}
	out := dedupe.Merge(in)
	require.Len(t, out, 1)
	assert.Equal(t, "Only 2 left! Hurry, offer ends in 5 minutes", out[0].Snippet)
}

func TestMerge_SameTextPrefersVerifiedThenConfidence(t *testing.T) {
	t.Parallel()

	verified := pat(model.Scarcity, 0.8, "Only 2 left!")
	verified.Verified = true
	in := []model.Pattern{
		pat(model.Urgency, 0.95, "only 2 left"),
		verified,
		pat(model.Scarcity, 0.9, "Only 2 LEFT"),
	}
	out := dedupe.Merge(in)
	require.Len(t, out, 1)
	assert.True(t, out[0].Verified)
	assert.Equal(t, model.Scarcity, out[0].Category)

	out = dedupe.Merge([]model.Pattern{
		pat(model.Urgency, 0.7, "Deal ends soon"),
		pat(model.Scarcity, 0.9, "deal ends soon."),
	})
	require.Len(t, out, 1)
	assert.InDelta(t, 0.9, out[0].Confidence, 1e-9)
}

func TestMerge_DropsShortAndKeepsDistinct(t *testing.T) {
	t.Parallel()

	out := dedupe.Merge([]model.Pattern{
		pat(model.Sneaking, 0.9, "ok"),
		pat(model.Sneaking, 0.9, "Auto-renews monthly"),
		pat(model.Urgency, 0.9, "Sale ends tonight"),
	})
	assert.Len(t, out, 2)
}

func TestMerge_InvariantAndIdempotence(t *testing.T) {
	t.Parallel()

	in := []model.Pattern{
		pat(model.Urgency, 0.9, "Hurry"),
		pat(model.Urgency, 0.7, "Hurry up, sale ends tonight"),
		pat(model.Scarcity, 0.8, "sale ends tonight"),
		pat(model.SocialProof, 0.88, "12 people are viewing this"),
		pat(model.SocialProof, 0.85, "12 people are viewing this item right now"),
		pat(model.Sneaking, 0.9, "Subscription renews automatically"),
		pat(model.Misdirection, 0.85, "No thanks"),
	}
	out := dedupe.Merge(in)

	for i := range out {
		for j := range out {
			if i == j {
				continue
			}
			a, b := dedupe.Normalize(out[i].Snippet), dedupe.Normalize(out[j].Snippet)
			assert.False(t, strings.Contains(a, b), "%q contains %q", a, b)
		}
	}
	assert.Equal(t, out, dedupe.Merge(out))
}

func TestCollapseByCategory(t *testing.T) {
	t.Parallel()

	out := dedupe.CollapseByCategory([]model.Pattern{
		pat(model.Urgency, 0.8, "Hurry!"),
		pat(model.Scarcity, 0.8, "Hurry!"),
		pat(model.Urgency, 0.95, "HURRY!"),
	}, 150)
	require.Len(t, out, 2)
	assert.Equal(t, model.Urgency, out[0].Category)
	assert.InDelta(t, 0.95, out[0].Confidence, 1e-9)
}

func TestPreDedupe_KeepsHighestConfidence(t *testing.T) {
	t.Parallel()

	out := dedupe.PreDedupe([]model.Pattern{
		pat(model.Urgency, 0.8, "Ends  soon"),
		pat(model.Scarcity, 0.9, "ends soon"),
		pat(model.Scarcity, 0.9, "ends soon!"),
	})
	require.Len(t, out, 2)
	assert.Equal(t, model.Scarcity, out[0].Category)
}

func TestNewSince(t *testing.T) {
	t.Parallel()

	baseline := []model.Pattern{pat(model.Urgency, 0.9, "Sale ends tonight")}
	current := []model.Pattern{
		pat(model.Urgency, 0.8, "sale ends tonight"),
		pat(model.Scarcity, 0.9, "Sale ends tonight"),
		pat(model.Sneaking, 0.9, "Pre-checked newsletter"),
		pat(model.Sneaking, 0.9, "Pre-checked newsletter"),
	}
	fresh := dedupe.NewSince(baseline, current)
	require.Len(t, fresh, 2)
	assert.Equal(t, model.Scarcity, fresh[0].Category)
	assert.Equal(t, model.Sneaking, fresh[1].Category)
}
