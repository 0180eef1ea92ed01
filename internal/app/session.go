package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raysh454/darkscan/internal/dedupe"
	"github.com/raysh454/darkscan/internal/dom"
	"github.com/raysh454/darkscan/internal/extractor"
	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/metrics"
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/tracker"
	"github.com/raysh454/darkscan/internal/webclient"
)

// State is the scan pipeline stage of a session.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StateVerifying State = "verifying"
	StateEnriching State = "enriching"
)

// Session is the detection state of one page: the candidate map, the
// mutation queue, the current pattern set, the monitoring baseline and the
// monitoring timers. It is created per page and torn down on Close.
type Session struct {
	id        string
	backend   string
	createdAt time.Time

	page     webclient.PageSource
	x        *extractor.Extractor
	tracker  *tracker.Tracker
	observer *dom.Observer
	logger   logging.Logger

	// scanning is the re-entrancy guard: at most one pipeline per session.
	scanning atomic.Bool

	mu          sync.Mutex
	state       State
	patterns    []model.Pattern
	baseline    []model.Pattern
	reported    map[string]bool
	fineSeen    map[string]bool
	initialDone bool
	lastScan    time.Time
	monitoring  bool
	settleTimer *time.Timer
	stopMonitor context.CancelFunc
	generation  uint64
	stopped     bool

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

func newSession(id, backend string, page webclient.PageSource, snippetMax int, logger logging.Logger) *Session {
	x := extractor.New()
	if snippetMax > 0 {
		x.MaxLen = snippetMax
	}
	l := logger.With(logging.Field{Key: "session", Value: id})
	return &Session{
		id:        id,
		backend:   backend,
		createdAt: time.Now().UTC(),
		page:      page,
		x:         x,
		tracker:   tracker.New(x, l),
		observer:  dom.NewObserver(dom.NewQueue()),
		logger:    l,
		state:     StateIdle,
		reported:  map[string]bool{},
		fineSeen:  map[string]bool{},
		subs:      map[int]chan Event{},
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) URL() string {
	if s.page == nil {
		return ""
	}
	return s.page.URL()
}

// Info summarizes a session for listings.
type Info struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Backend    string    `json:"backend"`
	State      State     `json:"state"`
	Monitoring bool      `json:"monitoring"`
	Patterns   int       `json:"patterns"`
	CreatedAt  time.Time `json:"createdAt"`
	LastScan   time.Time `json:"lastScan,omitempty"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.id,
		URL:        s.URL(),
		Backend:    s.backend,
		State:      s.state,
		Monitoring: s.monitoring,
		Patterns:   len(s.patterns),
		CreatedAt:  s.createdAt,
		LastScan:   s.lastScan,
	}
}

// View answers the "get current patterns" query.
type View struct {
	Patterns   []model.Pattern `json:"patterns"`
	IsScanning bool            `json:"isScanning"`
	State      State           `json:"state"`
	Monitoring bool            `json:"monitoring"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	patterns := model.ClonePatterns(s.patterns)
	if patterns == nil {
		patterns = []model.Pattern{}
	}
	return View{
		Patterns:   patterns,
		IsScanning: s.scanning.Load(),
		State:      s.state,
		Monitoring: s.monitoring,
	}
}

// Patterns returns a copy of the current pattern set.
func (s *Session) Patterns() []model.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.ClonePatterns(s.patterns)
}

func (s *Session) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()
	if changed {
		s.emit(Event{Type: EventState, State: st})
	}
}

// begin claims the re-entrancy guard.
func (s *Session) begin() bool { return s.scanning.CompareAndSwap(false, true) }

func (s *Session) end() {
	s.setState(StateIdle)
	s.scanning.Store(false)
}

// snapshot captures the page and records DOM mutations since the previous
// capture.
func (s *Session) snapshot(ctx context.Context) (*dom.Document, error) {
	if err := CheckURL(s.URL()); err != nil {
		return nil, err
	}
	return s.page.Snapshot(ctx)
}

// setPatterns replaces the current set after a full scan.
func (s *Session) setPatterns(ps []model.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = model.ClonePatterns(ps)
	s.lastScan = time.Now().UTC()
}

// appendNew adds monitoring findings not already present in the live set,
// refreshes the baseline and returns what was added.
func (s *Session) appendNew(ps []model.Pattern) []model.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := dedupe.NewSince(s.patterns, ps)
	s.patterns = append(s.patterns, model.ClonePatterns(added)...)
	s.baseline = model.ClonePatterns(s.patterns)
	s.lastScan = time.Now().UTC()
	return added
}

// unseen returns the patterns whose diff key is neither in the baseline nor
// already reported.
func (s *Session) unseen(ps []model.Pattern) []model.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseenLocked(ps, nil)
}

// unseenByFine is unseen that also skips candidates an earlier fine cycle
// already submitted. Coarse cycles ignore that set, so a candidate the fine
// cycle lost to a failed verification is picked up again.
func (s *Session) unseenByFine(ps []model.Pattern) []model.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseenLocked(ps, s.fineSeen)
}

func (s *Session) unseenLocked(ps []model.Pattern, skip map[string]bool) []model.Pattern {
	var out []model.Pattern
	for _, p := range dedupe.NewSince(s.baseline, ps) {
		key := dedupe.DiffKey(p)
		if !s.reported[key] && !skip[key] {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) markReported(ps []model.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ps {
		s.reported[dedupe.DiffKey(p)] = true
	}
}

func (s *Session) markFineSeen(ps []model.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ps {
		s.fineSeen[dedupe.DiffKey(p)] = true
	}
}

// Close stops monitoring, releases the page and closes subscribers.
func (s *Session) Close() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.stopMonitoring()
	s.emit(Event{Type: EventClosed})
	s.closeSubscribers()
	metrics.ActiveSessions.Dec()
	if s.page == nil {
		return nil
	}
	return s.page.Close()
}
