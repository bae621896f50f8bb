package cli

import (
	"github.com/spf13/cobra"

	"crypto-dca-bot/internal/app"
)

var (
	backfillSymbol string
	backfillForce  bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill daily price history from the exchange's klines",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.BackfillOptions{
			Symbol: backfillSymbol,
			Force:  backfillForce,
		}
		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillSymbol, "symbol", "", "Backfill a single symbol (default: all configured)")
	backfillCmd.Flags().BoolVar(&backfillForce, "force", false, "Refetch even when enough history exists")
}
