package cli

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sample short-term prices on an interval and watch for sudden drops",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Watch(cmd.Context())
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run all scheduled jobs in one process by cron spec",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Daemon(cmd.Context())
	},
}
