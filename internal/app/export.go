package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"crypto-dca-bot/internal/indicator"
	"crypto-dca-bot/internal/storage"
)

// Export renders a symbol's daily price history as CSV and/or PNG. The PNG
// overlays the 30-day moving average used by the purchase signals.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Symbol == "" {
		return errors.New("--symbol must be provided")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	prices := history.DailyHistory(ctx, opts.Symbol, opts.MaxPoints)
	if len(prices) == 0 {
		a.Logger.Info().Str("symbol", opts.Symbol).Msg("no price history to export")
		return nil
	}

	downsampled := downsamplePrices(prices, opts.MaxPoints)
	a.Logger.Info().
		Str("symbol", opts.Symbol).
		Int("total", len(prices)).
		Int("exported", len(downsampled)).
		Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writePricesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writePricesPNG(opts.PNGPath, opts.Symbol, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func downsamplePrices(prices []storage.DailyPrice, max int) []storage.DailyPrice {
	if max <= 0 || len(prices) <= max {
		return prices
	}

	result := make([]storage.DailyPrice, 0, max)
	step := float64(len(prices)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(prices) {
			idx = len(prices) - 1
		}
		result = append(result, prices[idx])
	}
	return result
}

func writePricesCSV(path string, prices []storage.DailyPrice) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "symbol", "price_jpy"}); err != nil {
		return err
	}
	for _, row := range prices {
		record := []string{
			row.Date.Format("2006-01-02"),
			row.Symbol,
			row.Price.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writePricesPNG(path, symbol string, prices []storage.DailyPrice) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(prices))
	closes := make([]float64, len(prices))
	sma := make([]float64, len(prices))

	window := make([]storage.DailyPrice, 0, len(prices))
	for i, row := range prices {
		x[i] = row.Date
		closes[i] = row.Price.InexactFloat64()

		window = append(window, row)
		values := window
		if len(values) > indicator.SMAWindow {
			values = values[len(values)-indicator.SMAWindow:]
		}
		sum := 0.0
		for _, v := range values {
			sum += v.Price.InexactFloat64()
		}
		sma[i] = sum / float64(len(values))
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (JPY)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    symbol,
				XValues: x,
				YValues: closes,
			},
			chart.TimeSeries{
				Name:    "SMA30",
				XValues: x,
				YValues: sma,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
