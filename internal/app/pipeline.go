package app

import (
	"context"
	"fmt"
	"time"

	"github.com/raysh454/darkscan/internal/dedupe"
	"github.com/raysh454/darkscan/internal/dom"
	"github.com/raysh454/darkscan/internal/extractor"
	"github.com/raysh454/darkscan/internal/history"
	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/metrics"
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/rules"
)

// Trigger names what started a scan or cycle.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
	TriggerCoarse Trigger = "coarse"
	TriggerFine   Trigger = "fine"
)

const scanSelector = extractor.TextSelector + ", " + extractor.FormSelector

// scan runs the full pipeline on s: text passes and DOM sweep, NLP tier,
// verification, enrichment, deduplication. Only the unscannable-page class
// of error and snapshot failures are returned.
func (o *Orchestrator) scan(ctx context.Context, s *Session, trigger Trigger) (model.ScanResult, error) {
	started := time.Now().UTC()
	result := model.ScanResult{SessionID: s.id, URL: s.URL(), StartedAt: started}

	if err := CheckURL(s.URL()); err != nil {
		metrics.ScansTotal.WithLabelValues(string(trigger), "rejected").Inc()
		return result, err
	}
	if !s.begin() {
		metrics.ScansTotal.WithLabelValues(string(trigger), "skipped").Inc()
		s.logger.Debug("scan already in progress, skipping", logging.Field{Key: "trigger", Value: string(trigger)})
		result.Patterns = s.Patterns()
		result.Skipped = true
		result.FinishedAt = time.Now().UTC()
		return result, nil
	}
	defer s.end()

	if trigger == TriggerManual {
		s.resetMonitoring()
	}
	s.setState(StateScanning)

	doc, err := s.snapshot(ctx)
	if err != nil {
		metrics.ScansTotal.WithLabelValues(string(trigger), "error").Inc()
		s.logger.Warn("page snapshot failed", logging.Field{Key: "error", Value: err.Error()})
		return result, fmt.Errorf("snapshot %s: %w", s.URL(), err)
	}
	settings := o.Settings(ctx)

	s.observer.Observe(doc)
	s.observer.Queue().Drain()
	s.tracker.Sweep(doc)

	base := o.textPasses(s, doc, settings.ConfidenceThreshold)
	structural := s.tracker.Patterns()
	nlp := o.verifier.NLPCandidates(ctx, s.tracker.Candidates())

	all := make([]model.Pattern, 0, len(base)+len(structural)+len(nlp))
	all = append(all, base...)
	all = append(all, structural...)
	all = append(all, nlp...)

	s.setState(StateVerifying)
	verified := o.verifier.Verify(ctx, all)

	s.setState(StateEnriching)
	enriched := o.verifier.Enrich(ctx, verified.Patterns)
	merged := dedupe.Merge(enriched)
	s.setPatterns(merged)

	s.logger.Info("scan complete",
		logging.Field{Key: "trigger", Value: string(trigger)},
		logging.Field{Key: "proposals", Value: len(all)},
		logging.Field{Key: "verification", Value: string(verified.Outcome)},
		logging.Field{Key: "patterns", Value: len(merged)})

	o.record(ctx, s, trigger, merged)
	metrics.ScansTotal.WithLabelValues(string(trigger), "ok").Inc()

	if s.markInitial(merged) && o.cfg.Monitor.Enabled {
		o.armMonitoring(s)
	}

	result.Patterns = model.ClonePatterns(merged)
	result.FinishedAt = time.Now().UTC()
	s.emit(Event{Type: EventScanComplete, Count: len(merged), Patterns: result.Patterns})
	return result, nil
}

// textPasses runs the heuristic, UI-state and classification passes over
// every text-bearing and form element, then collapses per category across
// elements.
func (o *Orchestrator) textPasses(s *Session, doc *dom.Document, threshold float64) []model.Pattern {
	m := rules.NewMatcher(rules.Config{Threshold: threshold}, s.logger)
	var out []model.Pattern
	for _, el := range doc.Select(scanSelector) {
		if extractor.Ignored(el) {
			continue
		}
		out = append(out, m.Match(s.x.Extract(el))...)
	}
	return dedupe.CollapseByCategory(out, rules.CollapseLen)
}

// record publishes a finalized pattern set to metrics, history and the
// dataset endpoint. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, s *Session, trigger Trigger, ps []model.Pattern) {
	for _, p := range ps {
		metrics.PatternsTotal.WithLabelValues(string(p.Category), string(p.Meta.Source)).Inc()
	}

	if o.history != nil {
		if _, err := o.history.Append(ctx, history.Entry{
			SessionID: s.id,
			URL:       s.URL(),
			Trigger:   string(trigger),
			Patterns:  ps,
		}); err != nil {
			s.logger.Warn("history append failed", logging.Field{Key: "error", Value: err.Error()})
		}
	}

	if len(ps) == 0 {
		return
	}
	snapshot := model.ClonePatterns(ps)
	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.verifier.UpdateDataset(bg, snapshot)
	}()
}
