package app

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"crypto-dca-bot/internal/alert"
	"crypto-dca-bot/internal/config"
	"crypto-dca-bot/internal/exchange"
	"crypto-dca-bot/internal/notify"
	"crypto-dca-bot/internal/purchase"
	"crypto-dca-bot/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// RecordOptions configure the daily price recording operation.
type RecordOptions struct {
	Symbols []string
	Date    time.Time
}

// BackfillOptions configure the historical backfill.
type BackfillOptions struct {
	Symbol string
	Force  bool
}

// ShowOptions configure the ledger listing.
type ShowOptions struct {
	Symbol string
	Limit  int
}

// ExportOptions hold parameters for exporting daily price history.
type ExportOptions struct {
	Symbol    string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

func (a *App) newExchange() *exchange.Client {
	return exchange.NewClient(exchange.Options{
		PublicBaseURL:  a.Config.Exchange.PublicBaseURL,
		PrivateBaseURL: a.Config.Exchange.PrivateBaseURL,
		APIKey:         a.Config.Exchange.APIKey,
		APISecret:      a.Config.Exchange.APISecret,
		Timeout:        a.Config.Exchange.RequestTimeout,
		UserAgent:      a.Config.Exchange.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() *notify.Broadcaster {
	var channels []notify.Notifier
	if a.Config.Notify.Slack.Enabled {
		channels = append(channels, notify.NewSlackNotifier(
			a.Config.Notify.Slack.WebhookURL,
			a.Config.Exchange.RequestTimeout,
			a.Logger,
		))
	}
	if a.Config.Notify.Mail.Enabled {
		channels = append(channels, notify.NewMailNotifier(a.Config.Notify.Mail, a.Logger))
	}
	return notify.NewBroadcaster(a.Logger, channels...)
}

func (a *App) openHistory(ctx context.Context) (*storage.History, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	history := storage.NewHistory(store, a.Logger)
	return history, store.Close, nil
}

// purchaseSymbols is the union of base and add symbols, sorted.
func (a *App) purchaseSymbols() []string {
	seen := make(map[string]struct{})
	var out []string
	for symbol := range a.Config.BasePurchase.Settings {
		if _, ok := seen[symbol]; !ok {
			seen[symbol] = struct{}{}
			out = append(out, symbol)
		}
	}
	for symbol := range a.Config.AddPurchase.Settings {
		if _, ok := seen[symbol]; !ok {
			seen[symbol] = struct{}{}
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}

// RecordDailyPrice fetches current prices and upserts one daily row per
// symbol. Symbols with no fetched price are skipped; the run continues.
func (a *App) RecordDailyPrice(ctx context.Context, opts RecordOptions) error {
	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = a.purchaseSymbols()
	}

	prices := a.newExchange().CurrentPrices(ctx, symbols)
	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok {
			a.Logger.Warn().Str("symbol", symbol).Msg("price unavailable, daily row not recorded")
			continue
		}
		history.RecordDailyPrice(ctx, symbol, price, opts.Date)
		a.Logger.Info().Str("symbol", symbol).Str("price", price.String()).Msg("daily price recorded")
	}
	return nil
}

// RecordTick samples current prices for the drop-monitored symbols.
func (a *App) RecordTick(ctx context.Context) error {
	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return a.recordTick(ctx, history)
}

func (a *App) recordTick(ctx context.Context, history *storage.History) error {
	symbols := a.Config.Alerts.SuddenDrop.Symbols
	if len(symbols) == 0 {
		symbols = a.purchaseSymbols()
	}

	prices := a.newExchange().CurrentPrices(ctx, symbols)
	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		history.RecordShortTermPrice(ctx, symbol, price, time.Time{})
	}
	return nil
}

// BaseCheck runs the balance watchdog (best effort) and then the recurring
// base purchases.
func (a *App) BaseCheck(ctx context.Context, dryRun bool) error {
	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ex := a.newExchange()
	notifier := a.newNotifier()

	alert.NewMonitor(a.Config.Alerts, ex, history, notifier, a.Logger).CheckBalance(ctx)

	executor := purchase.NewExecutor(ex, history, notifier, dryRun, a.Logger)
	sched := purchase.NewBaseScheduler(a.Config.BasePurchase.Settings, history, executor, a.Logger)

	prices := ex.CurrentPrices(ctx, a.purchaseSymbols())
	sched.Run(ctx, prices)
	return nil
}

// AddCheck runs the balance watchdog (best effort) and then the conditional
// purchases.
func (a *App) AddCheck(ctx context.Context, dryRun bool) error {
	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ex := a.newExchange()
	notifier := a.newNotifier()

	alert.NewMonitor(a.Config.Alerts, ex, history, notifier, a.Logger).CheckBalance(ctx)

	executor := purchase.NewExecutor(ex, history, notifier, dryRun, a.Logger)
	evaluator := purchase.NewAddEvaluator(a.Config.AddPurchase, history, executor, a.Logger)

	prices := ex.CurrentPrices(ctx, a.purchaseSymbols())
	evaluator.Run(ctx, prices)
	return nil
}

// RunAlerts executes both watchdogs once.
func (a *App) RunAlerts(ctx context.Context) error {
	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	monitor := alert.NewMonitor(a.Config.Alerts, a.newExchange(), history, a.newNotifier(), a.Logger)
	monitor.Run(ctx)
	return nil
}

