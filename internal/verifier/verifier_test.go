package verifier_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/relay"
	"github.com/raysh454/darkscan/internal/tracker"
	"github.com/raysh454/darkscan/internal/verifier"
)

type fakeRelay struct {
	mu sync.Mutex

	verify      func([]relay.Item) ([]relay.Verified, error)
	describe    func(relay.DescribeRequest) (string, error)
	verifyCalls [][]relay.Item
	bestEffort  [][]relay.Item
	dataset     [][]relay.DatasetItem
}

func (f *fakeRelay) Verify(_ context.Context, items []relay.Item) ([]relay.Verified, error) {
	f.mu.Lock()
	f.verifyCalls = append(f.verifyCalls, items)
	f.mu.Unlock()
	if f.verify == nil {
		return nil, nil
	}
	return f.verify(items)
}

func (f *fakeRelay) VerifyBestEffort(_ context.Context, items []relay.Item) ([]relay.Verified, error) {
	f.mu.Lock()
	f.bestEffort = append(f.bestEffort, items)
	f.mu.Unlock()
	if f.verify == nil {
		return nil, nil
	}
	return f.verify(items)
}

func (f *fakeRelay) Describe(_ context.Context, req relay.DescribeRequest) (string, error) {
	if f.describe == nil {
		return "", nil
	}
	return f.describe(req)
}

func (f *fakeRelay) UpdateDataset(_ context.Context, items []relay.DatasetItem) (relay.DatasetResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataset = append(f.dataset, items)
	return relay.DatasetResult{Added: len(items)}, nil
}

func structural(snippet string, confidence float64) model.Pattern {
	return model.Pattern{
		ID:         "dom-" + snippet,
		Category:   model.Sneaking,
		Confidence: confidence,
		Snippet:    snippet,
		Reason:     "Checkbox is pre-selected without user interaction",
		Meta:       model.Meta{Source: model.SourceDOMRule, DOMRule: tracker.TypeAutoTickedCheckbox},
	}
}

func heuristic(snippet string, category model.Category, confidence float64) model.Pattern {
	return model.Pattern{
		ID:         "heuristic-" + snippet,
		Category:   category,
		Confidence: confidence,
		Snippet:    snippet,
		Reason:     "keyword",
		Meta:       model.Meta{Source: model.SourceHeuristic, PatternType: "keyword"},
	}
}

func TestVerify_TransportFailureKeepsStrongStructuralOnly(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{verify: func([]relay.Item) ([]relay.Verified, error) {
		return nil, fmt.Errorf("%w: verify: context deadline exceeded", relay.ErrRelayCall)
	}}
	v := verifier.New(verifier.DefaultConfig(), r, nil)

	in := []model.Pattern{
		structural("Send me partner offers", 0.85),
		heuristic("Only a few left in stock today", model.Scarcity, 0.85),
		heuristic("Hurry, sale ends tonight", model.Urgency, 0.92),
	}
	res := v.Verify(context.Background(), in)

	assert.Equal(t, verifier.OutcomeFailure, res.Outcome)
	require.Len(t, res.Patterns, 2)
	assert.Equal(t, "dom-Send me partner offers", res.Patterns[0].ID)
	assert.Equal(t, "heuristic-Hurry, sale ends tonight", res.Patterns[1].ID)
}

func TestVerify_NilRelayUsesFailurePolicy(t *testing.T) {
	t.Parallel()

	res := verifier.New(verifier.DefaultConfig(), nil, nil).Verify(context.Background(), []model.Pattern{
		structural("Send me partner offers", 0.85),
		heuristic("Only a few left in stock today", model.Scarcity, 0.85),
	})
	assert.Equal(t, verifier.OutcomeFailure, res.Outcome)
	require.Len(t, res.Patterns, 1)
	assert.True(t, res.Patterns[0].IsDOMRule())
}

func TestVerify_EmptyAnswerKeepsStructuralOnly(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{verify: func([]relay.Item) ([]relay.Verified, error) { return []relay.Verified{}, nil }}
	res := verifier.New(verifier.DefaultConfig(), r, nil).Verify(context.Background(), []model.Pattern{
		structural("Send me partner offers", 0.78),
		structural("Weekly newsletter", 0.7),
		heuristic("Only a few left in stock today", model.Scarcity, 0.99),
	})

	assert.Equal(t, verifier.OutcomeEmpty, res.Outcome)
	require.Len(t, res.Patterns, 1)
	assert.Equal(t, "dom-Send me partner offers", res.Patterns[0].ID)
}

func TestVerify_MapsSubstringAnswerOntoOriginal(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{verify: func([]relay.Item) ([]relay.Verified, error) {
		return []relay.Verified{{Text: "Only 2 left", Category: "Scarcity", Confidence: 0.95, Explanation: "Claims low stock"}}, nil
	}}
	orig := heuristic("Only 2 left! Hurry, offer ends in 5 minutes", model.Urgency, 0.9)
	res := verifier.New(verifier.DefaultConfig(), r, nil).Verify(context.Background(), []model.Pattern{orig})

	assert.Equal(t, verifier.OutcomeVerified, res.Outcome)
	require.Len(t, res.Patterns, 1)
	got := res.Patterns[0]
	assert.Equal(t, orig.ID, got.ID)
	assert.True(t, got.Verified)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)
	assert.Equal(t, model.Scarcity, got.Category)
	assert.Equal(t, "Only 2 left", got.Snippet)
	assert.Equal(t, "Claims low stock", got.Reason)
	assert.InDelta(t, verifier.ScoreSubstring, got.Meta.VerificationScore, 1e-9)
	assert.Equal(t, model.Scarcity.Info().Icon, got.Icon)
}

func TestVerify_MandatoryDisclosuresNeverSent(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{}
	res := verifier.New(verifier.DefaultConfig(), r, nil).Verify(context.Background(), []model.Pattern{
		heuristic("Mandatory Disclosures", model.Sneaking, 0.95),
	})
	assert.Equal(t, verifier.OutcomeNothingToVerify, res.Outcome)
	assert.Empty(t, res.Patterns)
	assert.Empty(t, r.verifyCalls)
}

func TestVerify_PreDedupeSendsEachTextOnce(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{}
	verifier.New(verifier.DefaultConfig(), r, nil).Verify(context.Background(), []model.Pattern{
		heuristic("Only 3 left in stock", model.Scarcity, 0.8),
		heuristic("only 3   left in stock", model.Urgency, 0.9),
		heuristic("Skip to content", model.Misdirection, 0.9),
	})
	require.Len(t, r.verifyCalls, 1)
	require.Len(t, r.verifyCalls[0], 1)
	assert.Equal(t, "Urgency", r.verifyCalls[0][0].Category)
	assert.InDelta(t, 0.9, r.verifyCalls[0][0].Confidence, 1e-9)
}

func TestMapVerified_OriginalsConsumedOnce(t *testing.T) {
	t.Parallel()

	orig := heuristic("Only 2 left", model.Scarcity, 0.7)
	out := verifier.MapVerified([]model.Pattern{orig}, []relay.Verified{
		{Text: "Only 2 left", Category: "Scarcity", Confidence: 0.6},
		{Text: "Only 2 left", Category: "Urgency"},
		{Text: "Sign up", Category: "None", Rejected: true},
		{Text: "Free shipping", Category: "Not Dark Pattern"},
	}, orig.Timestamp)

	require.Len(t, out, 2)
	assert.Equal(t, orig.ID, out[0].ID)
	assert.InDelta(t, 0.8, out[0].Confidence, 1e-9)
	assert.Equal(t, model.SourceVerification, out[1].Meta.Source)
	assert.Equal(t, model.Urgency, out[1].Category)
	assert.InDelta(t, 0.85, out[1].Confidence, 1e-9)
	assert.Equal(t, "Detected urgency pattern", out[1].Reason)
}

func TestMapVerified_DropsTransparentFreeTrial(t *testing.T) {
	t.Parallel()

	text := "Start your 30-day free trial today. You will be charged $9.99 per month until you cancel. See full offer terms for details."
	out := verifier.MapVerified(nil, []relay.Verified{{Text: text, Category: "Sneaking", Confidence: 0.9}}, time.Now())
	assert.Empty(t, out)
}

func TestMatchScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		original, verified string
		want               float64
	}{
		{"Only 2 left", "only  2 LEFT", 100},
		{"Only 2 left! Hurry", "Only 2 left", 80},
		{"Hurry", "Hurry, offer ends soon", 80},
		{"limited stock available today", "stock available now", 30},
		{"", "anything", 0},
		{"a b", "c d", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, verifier.MatchScore(tt.original, tt.verified), 1e-9, tt.original)
	}
}

func TestLooksLikeNoisyUI(t *testing.T) {
	t.Parallel()

	noisy := []string{"", "ab", "12345", "Skip to content", "Add to cart", "MENU", "Other links and resources",
		"Academic Calendar Campus Events Ranking Report Careers"}
	for _, s := range noisy {
		assert.True(t, verifier.LooksLikeNoisyUI(s), s)
	}
	clean := []string{"Add to cart now and save 20% today", "No thanks, I like working harder", "Only 2 left in stock"}
	for _, s := range clean {
		assert.False(t, verifier.LooksLikeNoisyUI(s), s)
	}
}

func TestScreen_StructuralBypassesNoiseFilter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", verifier.Screen(structural("Menu", 0.9)))
	assert.Equal(t, string(verifier.RejectNoisyUI), verifier.Screen(heuristic("Menu", model.Misdirection, 0.9)))
	assert.Equal(t, string(verifier.RejectTooShort), verifier.Screen(structural("ok", 0.9)))
	assert.Equal(t, "regulatory-disclosure", verifier.Screen(heuristic("Mandatory Disclosures", model.Sneaking, 0.9)))
}

func TestNLPCandidates(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{verify: func(items []relay.Item) ([]relay.Verified, error) {
		return []relay.Verified{
			{Text: "Hurry, 2 left", Category: "scarcity", Confidence: 0.9, Explanation: "stock pressure"},
			{Text: "Home", Category: "None"},
		}, nil
	}}
	var cands []tracker.Candidate
	cands = append(cands,
		tracker.Candidate{Snippet: "Hurry, 2 left", Selector: "body > p"},
		tracker.Candidate{Snippet: "HURRY, 2 LEFT", Selector: "body > span"},
		tracker.Candidate{Snippet: "ok"},
	)
	for i := 0; i < 70; i++ {
		cands = append(cands, tracker.Candidate{Snippet: fmt.Sprintf("candidate number %d", i)})
	}

	out := verifier.New(verifier.DefaultConfig(), r, nil).NLPCandidates(context.Background(), cands)
	require.Len(t, r.bestEffort, 1)
	assert.Len(t, r.bestEffort[0], 60)
	assert.Equal(t, "Misdirection", r.bestEffort[0][0].Category)
	assert.InDelta(t, 0.7, r.bestEffort[0][0].Confidence, 1e-9)

	require.Len(t, out, 1)
	assert.Equal(t, model.Scarcity, out[0].Category)
	assert.Equal(t, model.SourceNLP, out[0].Meta.Source)
	assert.Equal(t, "body > p", out[0].Selector)
	assert.Equal(t, `Detected "Scarcity" pattern with 90% confidence.`, out[0].Details)
}

func TestNLPCandidates_FailureIsEmpty(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{verify: func([]relay.Item) ([]relay.Verified, error) { return nil, errors.New("down") }}
	out := verifier.New(verifier.DefaultConfig(), r, nil).NLPCandidates(context.Background(),
		[]tracker.Candidate{{Snippet: "Hurry, 2 left"}})
	assert.Nil(t, out)
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{describe: func(req relay.DescribeRequest) (string, error) {
		switch {
		case strings.HasPrefix(req.Text, "Only"):
			return "Creates artificial scarcity.", nil
		case strings.HasPrefix(req.Text, "Hurry"):
			return "Explanation unavailable.", nil
		default:
			return "", errors.New("timeout")
		}
	}}
	v := verifier.New(verifier.DefaultConfig(), r, nil)

	box := structural("Send me partner offers", 0.9)
	box.Selector = "body > form > input"
	trial := heuristic("Start your 30-day free trial today. You will be charged $9.99 per month until you cancel. See full offer terms for details.", model.Sneaking, 0.9)

	out := v.Enrich(context.Background(), []model.Pattern{
		heuristic("Only 2 left", model.Scarcity, 0.9),
		{Category: model.Urgency, Snippet: "Hurry up", Confidence: 0.9},
		box,
		trial,
	})
	require.Len(t, out, 3)

	assert.Equal(t, "Creates artificial scarcity.", out[0].Reason)
	assert.Equal(t, verifier.DetailedDescription(model.Scarcity), out[0].Details)

	assert.Equal(t, "Urgency pattern detected: Hurry up", out[1].Reason)

	assert.Equal(t, "Checkbox is pre-selected without user interaction", out[2].Reason)
	assert.True(t, strings.HasPrefix(out[2].Details, "The checkbox at body > form > input is checked automatically"))
	assert.True(t, strings.HasSuffix(out[2].Details, verifier.DetailedDescription(model.Sneaking)))
}

func TestDetailedDescription_UnknownCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "This pattern falls under the Confirmshaming category of dark patterns.",
		verifier.DetailedDescription(model.Category("Confirmshaming")))
	assert.NotContains(t, verifier.DetailedDescription(model.Urgency), "falls under")
}

func TestUpdateDataset(t *testing.T) {
	t.Parallel()

	r := &fakeRelay{}
	v := verifier.New(verifier.DefaultConfig(), r, nil)
	v.UpdateDataset(context.Background(), []model.Pattern{
		heuristic("Only 2 left", model.Scarcity, 0),
		heuristic("ok", model.Scarcity, 0.9),
		{Snippet: "no category here"},
	})
	require.Len(t, r.dataset, 1)
	require.Len(t, r.dataset[0], 1)
	assert.Equal(t, relay.DatasetItem{Text: "Only 2 left", Category: "Scarcity", Label: 1, Confidence: 0.5}, r.dataset[0][0])
}
