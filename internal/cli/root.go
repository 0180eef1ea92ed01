// Package cli implements the darkscan command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raysh454/darkscan/internal/app"
	"github.com/raysh454/darkscan/internal/config"
	"github.com/raysh454/darkscan/internal/logging"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the darkscan command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "darkscan",
		Short: "Detect dark patterns on web pages",
		Long: `darkscan finds manipulative UI patterns (fake urgency, pre-checked
consent boxes, confirmshaming, hidden costs) on web pages, confirms them
against the verification relay and keeps watching the page for new ones.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: ./darkscan.yaml or ./config/darkscan.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	root.AddCommand(
		newScanCommand(opts),
		newWatchCommand(opts),
		newServeCommand(opts),
		newHistoryCommand(opts),
		newSettingsCommand(opts),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig resolves the config and applies flag overrides.
func (o *options) loadConfig() (*app.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// bootstrap builds the application with logs on the command's stderr.
func (o *options) bootstrap(cmd *cobra.Command, tweak func(*app.Config)) (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if tweak != nil {
		tweak(cfg)
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), "darkscan", cfg.Log.Level)
	a, err := app.NewApplication(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Start(); err != nil {
		return nil, err
	}
	return a, nil
}

func shutdown(a *app.Application) {
	_ = a.Shutdown(context.Background())
}
