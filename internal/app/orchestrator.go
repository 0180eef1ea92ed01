package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/darkscan/internal/history"
	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/metrics"
	"github.com/raysh454/darkscan/internal/model"
	"github.com/raysh454/darkscan/internal/verifier"
	"github.com/raysh454/darkscan/internal/webclient"
)

// PageFactory opens the page source of a new session. backend may be empty
// for the configured default.
type PageFactory func(ctx context.Context, url, backend string) (webclient.PageSource, error)

// NewPageFactory returns a factory building a LivePage on a fresh WebClient
// per session.
func NewPageFactory(cfg webclient.Config, logger logging.Logger) PageFactory {
	return func(ctx context.Context, url, backend string) (webclient.PageSource, error) {
		c := cfg
		if backend = strings.ToLower(strings.TrimSpace(backend)); backend != "" {
			if !slices.Contains(webclient.ListBackends(), backend) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
			}
			c.Client = webclient.Client(backend)
		}
		wc, err := webclient.NewWebClient(c, logger)
		if err != nil {
			return nil, err
		}
		return webclient.NewLivePage(wc, url), nil
	}
}

// Orchestrator owns the detection sessions and runs their scan pipelines
// and monitors.
type Orchestrator struct {
	cfg      *Config
	verifier *verifier.Verifier
	history  *history.Store
	pages    PageFactory
	logger   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session

	// settings is used when no history store is configured.
	settingsMu sync.Mutex
	settings   history.Settings
}

// NewOrchestrator ties together config, verifier, history store and page
// factory. store may be nil, in which case settings live in memory and no
// history is kept.
func NewOrchestrator(cfg *Config, v *verifier.Verifier, store *history.Store, pages PageFactory, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if v == nil {
		v = verifier.New(cfg.Verifier, nil, logger)
	}
	if pages == nil {
		pages = NewPageFactory(cfg.WebClient, logger)
	}

	settings := history.DefaultSettings()
	if cfg.Rules.Threshold > 0 {
		settings.ConfidenceThreshold = cfg.Rules.Threshold
	}
	if cfg.Monitor.Fine > 0 {
		settings.ScanInterval = int(cfg.Monitor.Fine / time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		verifier: v,
		history:  store,
		pages:    pages,
		logger:   logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
		settings: settings,
	}
}

// CreateSession opens a page and registers a session for it. When the
// autoScan setting is on, a full scan starts in the background.
func (o *Orchestrator) CreateSession(ctx context.Context, url, backend string) (*Session, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrNoActiveTab
	}
	page, err := o.pages(ctx, url, backend)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if backend == "" {
		backend = string(o.cfg.WebClient.Client)
	}
	s, err := o.AddSession(ctx, page, backend)
	if err != nil {
		page.Close()
		return nil, err
	}

	if o.Settings(ctx).AutoScan {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if _, err := o.scan(o.ctx, s, TriggerAuto); err != nil {
				s.logger.Warn("automatic scan failed", logging.Field{Key: "error", Value: err.Error()})
			}
		}()
	}
	return s, nil
}

// AddSession registers a session over an already opened page. No scan is
// started.
func (o *Orchestrator) AddSession(ctx context.Context, page webclient.PageSource, backend string) (*Session, error) {
	if o.ctx.Err() != nil {
		return nil, ErrOrchestratorDown
	}
	s := newSession(uuid.New().String(), backend, page, o.cfg.Scan.SnippetMax, o.logger)

	o.mu.Lock()
	o.sessions[s.id] = s
	o.mu.Unlock()
	metrics.ActiveSessions.Inc()

	s.logger.Info("session created",
		logging.Field{Key: "url", Value: page.URL()},
		logging.Field{Key: "backend", Value: backend})
	return s, nil
}

// Session returns the session with the given id.
func (o *Orchestrator) Session(id string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Sessions lists every open session, oldest first.
func (o *Orchestrator) Sessions() []Info {
	o.mu.Lock()
	list := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		list = append(list, s)
	}
	o.mu.Unlock()

	out := make([]Info, 0, len(list))
	for _, s := range list {
		out = append(out, s.Info())
	}
	slices.SortFunc(out, func(a, b Info) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// DeleteSession tears a session down: monitoring stops, the page is
// released and subscribers are closed.
func (o *Orchestrator) DeleteSession(id string) error {
	o.mu.Lock()
	s, ok := o.sessions[id]
	delete(o.sessions, id)
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.logger.Info("session closed")
	return s.Close()
}

// RunCompleteScan performs a manual full scan. Monitoring is torn down
// and re-armed once the scan completes.
func (o *Orchestrator) RunCompleteScan(ctx context.Context, id string) (model.ScanResult, error) {
	s, err := o.Session(id)
	if err != nil {
		return model.ScanResult{}, err
	}
	return o.scan(ctx, s, TriggerManual)
}

// GetPatterns returns the current pattern set and scan status.
func (o *Orchestrator) GetPatterns(id string) (View, error) {
	s, err := o.Session(id)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// InjectUI exists for parity with the page overlay request. There is no
// in-page UI to inject, so it only checks the session exists.
func (o *Orchestrator) InjectUI(id string) error {
	_, err := o.Session(id)
	return err
}

// Subscribe registers a listener for a session's events.
func (o *Orchestrator) Subscribe(id string) (<-chan Event, func(), error) {
	s, err := o.Session(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.Subscribe()
	return ch, cancel, nil
}

// Settings returns the stored settings, or the in-memory defaults when no
// store is configured or it cannot be read.
func (o *Orchestrator) Settings(ctx context.Context) history.Settings {
	if o.history != nil {
		st, err := o.history.Settings(ctx)
		if err == nil {
			return st
		}
		o.logger.Warn("read settings failed", logging.Field{Key: "error", Value: err.Error()})
	}
	o.settingsMu.Lock()
	defer o.settingsMu.Unlock()
	return o.settings
}

// SetSetting validates and stores one setting.
func (o *Orchestrator) SetSetting(ctx context.Context, key, value string) (history.Settings, error) {
	if o.history != nil {
		return o.history.SetSetting(ctx, key, value)
	}
	o.settingsMu.Lock()
	defer o.settingsMu.Unlock()
	st := o.settings
	if err := st.Set(key, value); err != nil {
		return o.settings, err
	}
	o.settings = st
	return st, nil
}

// History lists past detections, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if o.history == nil {
		return []history.Entry{}, nil
	}
	return o.history.List(ctx, limit)
}

// HistoryEntry returns one stored detection record. Without a store every
// id is unknown.
func (o *Orchestrator) HistoryEntry(ctx context.Context, id int64) (history.Entry, error) {
	if o.history == nil {
		return history.Entry{}, history.ErrNotFound
	}
	return o.history.Get(ctx, id)
}

func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	if o.history == nil {
		return nil
	}
	return o.history.Clear(ctx)
}

// Badge returns the count of patterns reported by monitoring since the
// last reset.
func (o *Orchestrator) Badge(ctx context.Context) (int, error) {
	if o.history == nil {
		return 0, nil
	}
	return o.history.Badge(ctx)
}

func (o *Orchestrator) ResetBadge(ctx context.Context) error {
	if o.history == nil {
		return nil
	}
	return o.history.ResetBadge(ctx)
}

func (o *Orchestrator) fineInterval(ctx context.Context) time.Duration {
	if d := o.Settings(ctx).Interval(); d > 0 {
		return d
	}
	return o.cfg.Monitor.Fine
}

// Shutdown closes every session and waits for background work, bounded
// by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	o.mu.Lock()
	list := make([]*Session, 0, len(o.sessions))
	for id, s := range o.sessions {
		list = append(list, s)
		delete(o.sessions, id)
	}
	o.mu.Unlock()

	var errs []error
	for _, s := range list {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for background work: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}
