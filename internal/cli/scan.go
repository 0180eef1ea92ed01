package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raysh454/darkscan/internal/app"
	"github.com/raysh454/darkscan/internal/webclient"
)

func newScanCommand(opts *options) *cobra.Command {
	var (
		url      string
		file     string
		backend  string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one full scan of a page",
		Example: `  # Scan a live page with the headless browser
  darkscan scan --url https://shop.example/checkout --backend chromedp

  # Scan saved markup and print JSON
  darkscan scan --file checkout.html --json`,

		RunE: func(cmd *cobra.Command, args []string) error {
			if (url == "") == (file == "") {
				return fmt.Errorf("exactly one of --url or --file is required")
			}

			a, err := opts.bootstrap(cmd, func(cfg *app.Config) { cfg.Monitor.Enabled = false })
			if err != nil {
				return err
			}
			defer shutdown(a)

			page, err := openPage(cmd, a, url, file, backend)
			if err != nil {
				return err
			}
			sess, err := a.Orch.AddSession(cmd.Context(), page, backendName(a, file, backend))
			if err != nil {
				page.Close()
				return err
			}

			res, err := a.Orch.RunCompleteScan(cmd.Context(), sess.ID())
			if err != nil {
				return err
			}

			if jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"success":  true,
					"count":    res.Count(),
					"patterns": res.Patterns,
				})
			}
			newPrinter(cmd.OutOrStdout()).patterns(res.URL, res.Patterns)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Page URL to scan")
	cmd.Flags().StringVar(&file, "file", "", "HTML file to scan instead of a URL")
	cmd.Flags().StringVar(&backend, "backend", "", "Page backend: nethttp|chromedp (default from config)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print the result as JSON")
	return cmd
}

// openPage builds the page source for --url or --file.
func openPage(cmd *cobra.Command, a *app.Application, url, file, backend string) (webclient.PageSource, error) {
	if file == "" {
		return app.NewPageFactory(a.Config.WebClient, a.Logger)(cmd.Context(), url, backend)
	}
	markup, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		abs = file
	}
	return webclient.NewStaticPage("file://"+filepath.ToSlash(abs), string(markup)), nil
}

func backendName(a *app.Application, file, backend string) string {
	switch {
	case file != "":
		return "file"
	case backend != "":
		return backend
	default:
		return string(a.Config.WebClient.Client)
	}
}
