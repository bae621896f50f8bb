package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"crypto-dca-bot/internal/storage"
)

// Show prints recent purchase ledger rows, newest first.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	symbols := a.purchaseSymbols()
	if opts.Symbol != "" {
		symbols = []string{opts.Symbol}
	}

	var records []storage.PurchaseRecord
	for _, symbol := range symbols {
		records = append(records, history.PurchaseHistory(ctx, symbol, opts.Limit, nil, storage.PurchaseAny)...)
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no purchases found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time\tSymbol\tType\tJPY\tAmount\tQuoted\tExecuted\tExecuted At")

	for _, rec := range records {
		executedPrice := "-"
		if rec.ExecutedPrice != nil {
			executedPrice = rec.ExecutedPrice.StringFixed(2)
		}
		executedTime := "-"
		if rec.ExecutedTime != nil {
			executedTime = rec.ExecutedTime.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Symbol,
			strings.ToUpper(string(rec.Type)),
			rec.JPYAmount.StringFixed(0),
			rec.CryptoAmount.String(),
			rec.QuotedPrice.StringFixed(2),
			executedPrice,
			executedTime,
		)
	}

	writer.Flush()
	return nil
}
