package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/darkscan/internal/history"
	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/relay"
	"github.com/raysh454/darkscan/internal/verifier"
)

// Application is the global runtime state container. It holds config and
// the core services shared across entry points (orchestrator, history
// store, relay client, logger). Pass Application into modules that need
// access to the global state rather than using package-level variables.
type Application struct {
	Config *Config

	Logger  logging.Logger
	Relay   *relay.Client
	History *history.Store
	Orch    *Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApplication builds every service from cfg. An empty History.Path
// disables the persistent store.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop{}
	}

	rc, err := relay.New(cfg.Relay, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("relay client: %w", err)
	}

	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History, logger)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
	}

	v := verifier.New(cfg.Verifier, rc, logger)
	orch := NewOrchestrator(cfg, v, store, NewPageFactory(cfg.WebClient, logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		Config:  cfg,
		Logger:  logger,
		Relay:   rc,
		History: store,
		Orch:    orch,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Context is cancelled on Shutdown.
func (a *Application) Context() context.Context { return a.ctx }

func (a *Application) Start() error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application starting",
		logging.Field{Key: "relay", Value: a.Config.Relay.BaseURL},
		logging.Field{Key: "backend", Value: string(a.Config.WebClient.Client)},
		logging.Field{Key: "monitoring", Value: a.Config.Monitor.Enabled})
	return nil
}

// Shutdown stops the orchestrator first with a bounded timeout, then
// closes the history store.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var errs []error
	if a.Orch != nil {
		if err := a.Orch.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("orchestrator shutdown returned error", logging.Field{Key: "error", Value: err.Error()})
			errs = append(errs, err)
		}
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}

	a.cancel()
	return errors.Join(errs...)
}
