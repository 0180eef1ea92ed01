package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raysh454/darkscan/internal/app"
	"github.com/raysh454/darkscan/internal/history"
)

func newSettingsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change stored settings",
		Example: `  darkscan settings get
  darkscan settings set scanInterval 3000`,
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.bootstrap(cmd, func(cfg *app.Config) { cfg.Monitor.Enabled = false })
			if err != nil {
				return err
			}
			defer shutdown(a)

			printSettings(cmd, a.Orch.Settings(cmd.Context()))
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.bootstrap(cmd, func(cfg *app.Config) { cfg.Monitor.Enabled = false })
			if err != nil {
				return err
			}
			defer shutdown(a)

			st, err := a.Orch.SetSetting(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printSettings(cmd, st)
			return nil
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func printSettings(cmd *cobra.Command, st history.Settings) {
	values := map[string]string{
		"autoScan":            strconv.FormatBool(st.AutoScan),
		"showNotifications":   strconv.FormatBool(st.ShowNotifications),
		"scanInterval":        strconv.Itoa(st.ScanInterval),
		"confidenceThreshold": strconv.FormatFloat(st.ConfidenceThreshold, 'f', -1, 64),
	}
	for _, key := range history.SettingKeys {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", key, values[key])
	}
}
