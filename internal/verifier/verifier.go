// Package verifier restores precision to the over-inclusive local detectors
// by consulting the remote verifier through the relay. It never fails: when
// the relay is unreachable or answers nonsense, a conservative local policy
// decides what survives.
package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/relay"
	"github.com/raysh454/darkscan/internal/tracker"
)

// Relay is the subset of relay.Client the verifier depends on.
type Relay interface {
	Verify(ctx context.Context, items []relay.Item) ([]relay.Verified, error)
	VerifyBestEffort(ctx context.Context, items []relay.Item) ([]relay.Verified, error)
	Describe(ctx context.Context, req relay.DescribeRequest) (string, error)
	UpdateDataset(ctx context.Context, items []relay.DatasetItem) (relay.DatasetResult, error)
}

type Config struct {
	// NLPCandidates caps the DOM snippets offered to the best-effort tier.
	NLPCandidates int `mapstructure:"nlp_candidates"`
	// Describe enables remote description generation.
	Describe bool `mapstructure:"describe"`
	// EnrichWorkers bounds concurrent description calls.
	EnrichWorkers int `mapstructure:"enrich_workers"`
}

func DefaultConfig() Config {
	return Config{
		NLPCandidates: 60,
		Describe:      true,
		EnrichWorkers: 8,
	}
}

// Outcome records which path Verify took.
type Outcome string

const (
	OutcomeVerified        Outcome = "verified"
	OutcomeNothingToVerify Outcome = "nothing-to-verify"
	OutcomeFailure         Outcome = "fallback-failure"
	OutcomeEmpty           Outcome = "fallback-empty"
)

type Result struct {
	Patterns []model.Pattern
	Outcome  Outcome
	Sent     int
}

type Verifier struct {
	cfg    Config
	relay  Relay
	logger logging.Logger
	now    func() time.Time
}

// New builds a verifier. A nil relay behaves as a permanently unreachable
// service.
func New(cfg Config, r Relay, logger logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.Nop{}
	}
	def := DefaultConfig()
	if cfg.NLPCandidates <= 0 {
		cfg.NLPCandidates = def.NLPCandidates
	}
	if cfg.EnrichWorkers <= 0 {
		cfg.EnrichWorkers = def.EnrichWorkers
	}
	return &Verifier{
		cfg:    cfg,
		relay:  r,
		logger: logger.With(logging.Field{Key: "component", Value: "verifier"}),
		now:    time.Now,
	}
}

// Verify prefilters, pre-deduplicates and submits patterns, then maps the
// answers back onto them. Failures select a fallback policy.
func (v *Verifier) Verify(ctx context.Context, patterns []model.Pattern) Result {
	if len(patterns) == 0 {
		return Result{Outcome: OutcomeNothingToVerify}
	}
	items := Prepare(patterns)
	if len(items) == 0 {
		v.logger.Debug("nothing left to verify after prefilter",
			logging.Field{Key: "input", Value: len(patterns)})
		return Result{Outcome: OutcomeNothingToVerify}
	}

	answers, err := v.call(ctx, items)
	if err != nil {
		kept := FailureFallback(patterns)
		v.logger.Warn("verification unavailable, using fallback",
			logging.Field{Key: "error", Value: err.Error()},
			logging.Field{Key: "input", Value: len(patterns)},
			logging.Field{Key: "kept", Value: len(kept)})
		return Result{Patterns: kept, Outcome: OutcomeFailure, Sent: len(items)}
	}
	if len(answers) == 0 {
		kept := EmptyFallback(patterns)
		v.logger.Info("verifier confirmed nothing, keeping structural patterns only",
			logging.Field{Key: "sent", Value: len(items)},
			logging.Field{Key: "kept", Value: len(kept)})
		return Result{Patterns: kept, Outcome: OutcomeEmpty, Sent: len(items)}
	}

	mapped := MapVerified(patterns, answers, v.now())
	v.logger.Debug("verification mapped",
		logging.Field{Key: "answers", Value: len(answers)},
		logging.Field{Key: "patterns", Value: len(mapped)})
	return Result{Patterns: mapped, Outcome: OutcomeVerified, Sent: len(items)}
}

func (v *Verifier) call(ctx context.Context, items []relay.Item) ([]relay.Verified, error) {
	if v.relay == nil {
		return nil, relay.ErrRelayCall
	}
	return v.relay.Verify(ctx, items)
}

// NLPCandidates offers up to NLPCandidates unique candidate snippets to the
// best-effort tier and turns confirmed answers into nlp patterns. Any
// failure yields nil.
func (v *Verifier) NLPCandidates(ctx context.Context, cands []tracker.Candidate) []model.Pattern {
	if v.relay == nil || len(cands) == 0 {
		return nil
	}

	seen := map[string]bool{}
	selectors := map[string]string{}
	var items []relay.Item
	for _, c := range cands {
		snippet := strings.TrimSpace(c.Snippet)
		if len([]rune(snippet)) < 3 {
			continue
		}
		key := strings.ToLower(snippet)
		if r := []rune(key); len(r) > 200 {
			key = string(r[:200])
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		selectors[normalizeForMatch(snippet)] = c.Selector
		items = append(items, relay.Item{Text: snippet, Category: string(model.Misdirection), Confidence: 0.7})
		if len(items) >= v.cfg.NLPCandidates {
			break
		}
	}
	if len(items) == 0 {
		return nil
	}

	answers, err := v.relay.VerifyBestEffort(ctx, items)
	if err != nil {
		v.logger.Warn("nlp candidate tier failed",
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}

	now := v.now()
	var out []model.Pattern
	for _, a := range answers {
		category, ok := model.ParseCategory(a.Category)
		text := strings.TrimSpace(a.Text)
		if a.Rejected || !ok || category == model.NotDarkPattern || text == "" {
			continue
		}
		confidence := a.Confidence
		if confidence == 0 {
			confidence = 0.7
		}
		reason := a.Explanation
		if reason == "" {
			reason = fmt.Sprintf("Detected %s pattern", category.Lower())
		}
		info := category.Info()
		out = append(out, model.Pattern{
			ID:         model.StableID("nlp", normalizeForMatch(text), string(category)),
			Category:   category,
			Confidence: confidence,
			Snippet:    text,
			Reason:     reason,
			Details:    fmt.Sprintf("Detected %q pattern with %d%% confidence.", string(category), int(confidence*100+0.5)),
			Selector:   selectors[normalizeForMatch(text)],
			Icon:       info.Icon,
			Color:      info.Color,
			Timestamp:  now,
			Meta: model.Meta{
				Source:     model.SourceNLP,
				VerifiedBy: verifierName,
			},
		})
	}
	v.logger.Debug("nlp candidate tier answered",
		logging.Field{Key: "sent", Value: len(items)},
		logging.Field{Key: "patterns", Value: len(out)})
	return out
}
