package cli

import (
	"github.com/spf13/cobra"

	"crypto-dca-bot/internal/app"
)

var (
	exportSymbol    string
	exportCSVPath   string
	exportPNGPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a symbol's daily price history as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Symbol:    exportSymbol,
			CSVPath:   exportCSVPath,
			PNGPath:   exportPNGPath,
			MaxPoints: exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSymbol, "symbol", "", "Symbol to export")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Write CSV to this path")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Write PNG chart to this path")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Cap exported points (default from config)")
}
