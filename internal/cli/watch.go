package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/darkscan/internal/app"
)

func newWatchCommand(opts *options) *cobra.Command {
	var (
		url     string
		backend string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan a page, then monitor it for new dark patterns",
		Long: `Run a full scan, then keep monitoring the page: a coarse re-scan every
minute and a fine pass over changed elements at the configured scan
interval. New findings are printed until interrupted.`,
		Example: `  darkscan watch --url https://shop.example/checkout --backend chromedp`,

		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				return fmt.Errorf("--url is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := opts.bootstrap(cmd, func(cfg *app.Config) { cfg.Monitor.Enabled = true })
			if err != nil {
				return err
			}
			defer shutdown(a)

			page, err := openPage(cmd, a, url, "", backend)
			if err != nil {
				return err
			}
			sess, err := a.Orch.AddSession(ctx, page, backendName(a, "", backend))
			if err != nil {
				page.Close()
				return err
			}
			events, cancel := sess.Subscribe()
			defer cancel()

			out := newPrinter(cmd.OutOrStdout())
			res, err := a.Orch.RunCompleteScan(ctx, sess.ID())
			if err != nil {
				return err
			}
			out.patterns(res.URL, res.Patterns)
			fmt.Fprintf(cmd.OutOrStdout(), "Monitoring starts in %s. Press Ctrl+C to stop.\n", a.Config.Monitor.Settle)

			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					switch ev.Type {
					case app.EventMonitoring:
						state := "stopped"
						if ev.Monitoring {
							state = "started"
						}
						fmt.Fprintf(cmd.OutOrStdout(), "[%s] monitoring %s\n", ev.At.Local().Format(time.TimeOnly), state)
					case app.EventNewPatterns:
						fmt.Fprintf(cmd.OutOrStdout(), "[%s] %d new dark pattern(s) detected\n", ev.At.Local().Format(time.TimeOnly), ev.Count)
						for i, p := range ev.Patterns {
							out.pattern(i+1, p)
						}
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Page URL to watch")
	cmd.Flags().StringVar(&backend, "backend", "", "Page backend: nethttp|chromedp (default from config)")
	return cmd
}
