package app

import (
	"context"
	"time"

	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/metrics"
	"github.com/raysh454/darkscan/internal/model"
)

// markInitial snapshots ps as the monitoring baseline the first time a full
// scan completes. It reports whether this was that first time.
func (s *Session) markInitial(ps []model.Pattern) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialDone || s.stopped {
		return false
	}
	s.initialDone = true
	s.baseline = model.ClonePatterns(ps)
	s.reported = map[string]bool{}
	s.fineSeen = map[string]bool{}
	return true
}

// armMonitoring starts monitoring after the settle delay.
func (o *Orchestrator) armMonitoring(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.settleTimer != nil {
		s.settleTimer.Stop()
	}
	gen := s.generation
	s.settleTimer = time.AfterFunc(o.cfg.Monitor.Settle, func() {
		o.startMonitoring(s, gen)
	})
	s.logger.Info("monitoring armed", logging.Field{Key: "settle", Value: o.cfg.Monitor.Settle.String()})
}

func (o *Orchestrator) startMonitoring(s *Session, gen uint64) {
	coarse := o.cfg.Monitor.Coarse
	fine := o.fineInterval(o.ctx)

	s.mu.Lock()
	if s.stopped || s.monitoring || s.generation != gen || o.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(o.ctx)
	s.monitoring = true
	s.stopMonitor = cancel
	s.mu.Unlock()

	s.logger.Info("monitoring started",
		logging.Field{Key: "coarse", Value: coarse.String()},
		logging.Field{Key: "fine", Value: fine.String()})
	s.emit(Event{Type: EventMonitoring, Monitoring: true})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.monitor(ctx, s, coarse, fine)
	}()
}

// stopMonitoring cancels the settle timer and both intervals. In-flight
// cycles finish on their own.
func (s *Session) stopMonitoring() {
	s.mu.Lock()
	s.generation++
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
	if s.stopMonitor != nil {
		s.stopMonitor()
		s.stopMonitor = nil
	}
	was := s.monitoring
	s.monitoring = false
	s.mu.Unlock()

	if was {
		s.logger.Info("monitoring stopped")
		s.emit(Event{Type: EventMonitoring, Monitoring: false})
	}
}

// resetMonitoring tears monitoring down and forgets the baseline so the
// next full scan becomes the initial one again.
func (s *Session) resetMonitoring() {
	s.stopMonitoring()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialDone = false
	s.baseline = nil
	s.reported = map[string]bool{}
	s.fineSeen = map[string]bool{}
}

// monitor drives both intervals from one goroutine. When both are due the
// fine cycle runs first, so the coarse cycle diffs against the baseline the
// fine cycle just updated.
func (o *Orchestrator) monitor(ctx context.Context, s *Session, coarse, fine time.Duration) {
	ct := time.NewTicker(coarse)
	defer ct.Stop()
	ft := time.NewTicker(fine)
	defer ft.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ft.C:
			o.fineCycle(ctx, s)
		case <-ct.C:
			select {
			case <-ft.C:
				o.fineCycle(ctx, s)
			default:
			}
			o.coarseCycle(ctx, s)
		}
	}
}

// fineCycle re-evaluates only the structural candidates touched since the
// last snapshot and reports new DOM-rule findings after verification.
func (o *Orchestrator) fineCycle(ctx context.Context, s *Session) {
	if !s.begin() {
		metrics.MonitorCyclesTotal.WithLabelValues(string(TriggerFine), "skipped").Inc()
		return
	}
	defer s.end()

	if !o.refresh(ctx, s, TriggerFine) {
		return
	}

	var fresh []model.Pattern
	for _, p := range s.unseenByFine(s.tracker.Patterns()) {
		if p.IsDOMRule() {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		metrics.MonitorCyclesTotal.WithLabelValues(string(TriggerFine), "quiet").Inc()
		return
	}
	s.markFineSeen(fresh)

	s.setState(StateVerifying)
	verified := o.verifier.Verify(ctx, fresh)
	s.setState(StateEnriching)
	o.report(ctx, s, TriggerFine, o.verifier.Enrich(ctx, verified.Patterns))
}

// coarseCycle re-runs the DOM-only scan with verification and reports
// findings whose diff key is not in the baseline.
func (o *Orchestrator) coarseCycle(ctx context.Context, s *Session) {
	if !s.begin() {
		metrics.MonitorCyclesTotal.WithLabelValues(string(TriggerCoarse), "skipped").Inc()
		return
	}
	defer s.end()

	if !o.refresh(ctx, s, TriggerCoarse) {
		return
	}

	s.setState(StateVerifying)
	verified := o.verifier.Verify(ctx, s.tracker.Patterns())
	s.setState(StateEnriching)
	enriched := o.verifier.Enrich(ctx, verified.Patterns)

	o.report(ctx, s, TriggerCoarse, s.unseen(enriched))
}

// refresh snapshots the page and feeds the resulting mutations to the
// candidate map.
func (o *Orchestrator) refresh(ctx context.Context, s *Session, trigger Trigger) bool {
	s.setState(StateScanning)
	doc, err := s.snapshot(ctx)
	if err != nil {
		metrics.MonitorCyclesTotal.WithLabelValues(string(trigger), "error").Inc()
		s.logger.Warn("monitoring snapshot failed",
			logging.Field{Key: "interval", Value: string(trigger)},
			logging.Field{Key: "error", Value: err.Error()})
		return false
	}
	s.observer.Observe(doc)
	s.tracker.Apply(s.observer.Queue().Drain())
	return true
}

// report appends fresh findings to the live set, refreshes the baseline
// and notifies subscribers.
func (o *Orchestrator) report(ctx context.Context, s *Session, trigger Trigger, fresh []model.Pattern) {
	added := s.appendNew(fresh)
	s.markReported(added)
	if len(added) == 0 {
		metrics.MonitorCyclesTotal.WithLabelValues(string(trigger), "quiet").Inc()
		return
	}
	metrics.MonitorCyclesTotal.WithLabelValues(string(trigger), "reported").Inc()
	s.logger.Info("new patterns detected",
		logging.Field{Key: "interval", Value: string(trigger)},
		logging.Field{Key: "count", Value: len(added)})

	o.record(ctx, s, trigger, added)
	if o.history != nil {
		if _, err := o.history.AddBadge(ctx, len(added)); err != nil {
			s.logger.Warn("badge update failed", logging.Field{Key: "error", Value: err.Error()})
		}
	}
	if o.Settings(ctx).ShowNotifications {
		s.emit(Event{Type: EventNewPatterns, Count: len(added), Patterns: model.ClonePatterns(added)})
	}
}
