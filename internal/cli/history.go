package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/darkscan/internal/app"
)

func newHistoryCommand(opts *options) *cobra.Command {
	var (
		limit    int
		clearAll bool
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear past detections",
		Example: `  darkscan history --limit 10
  darkscan history --clear`,

		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.bootstrap(cmd, func(cfg *app.Config) { cfg.Monitor.Enabled = false })
			if err != nil {
				return err
			}
			defer shutdown(a)

			if clearAll {
				if err := a.Orch.ClearHistory(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
				return nil
			}

			entries, err := a.Orch.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonMode {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No detections recorded.")
				return nil
			}
			p := newPrinter(cmd.OutOrStdout())
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %3d  %s\n",
					e.CreatedAt.Local().Format(time.DateTime), e.Trigger, e.Count, p.fit(e.URL, 40))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show (0 = all)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all entries")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print entries as JSON")
	return cmd
}
