package cli

import (
	"github.com/spf13/cobra"
)

var (
	baseDryRun bool
	addDryRun  bool
)

var baseCheckCmd = &cobra.Command{
	Use:   "basecheck",
	Short: "Evaluate and execute recurring base purchases",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().BaseCheck(cmd.Context(), baseDryRun)
	},
}

var addCheckCmd = &cobra.Command{
	Use:   "addcheck",
	Short: "Evaluate and execute signal-gated add purchases",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddCheck(cmd.Context(), addDryRun)
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Run the balance and sudden-drop watchdogs once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunAlerts(cmd.Context())
	},
}

func init() {
	baseCheckCmd.Flags().BoolVar(&baseDryRun, "dry-run", false, "Report the would-be order without contacting the exchange")
	addCheckCmd.Flags().BoolVar(&addDryRun, "dry-run", false, "Report the would-be order without contacting the exchange")
}
