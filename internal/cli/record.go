package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crypto-dca-bot/internal/app"
)

var (
	recordSymbols []string
	recordDate    string
)

var recordPriceCmd = &cobra.Command{
	Use:   "record-price",
	Short: "Record today's closing price per configured symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RecordOptions{Symbols: recordSymbols}

		if recordDate != "" {
			date, err := time.Parse("2006-01-02", recordDate)
			if err != nil {
				return fmt.Errorf("invalid --date value: %w", err)
			}
			opts.Date = date
		}

		return getApp().RecordDailyPrice(cmd.Context(), opts)
	},
}

var recordTickCmd = &cobra.Command{
	Use:   "record-tick",
	Short: "Record a short-term price sample per monitored symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RecordTick(cmd.Context())
	},
}

func init() {
	recordPriceCmd.Flags().StringSliceVar(&recordSymbols, "symbol", nil, "Restrict to specific symbols (default: all configured)")
	recordPriceCmd.Flags().StringVar(&recordDate, "date", "", "Record under this date (YYYY-MM-DD, default today)")
}
