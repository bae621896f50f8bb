package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"crypto-dca-bot/internal/logging"
)

// Config materialises application configuration. It is loaded once per
// invocation, validated in full, and passed into components read-only.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Exchange     ExchangeConfig     `mapstructure:"exchange"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	BasePurchase BasePurchaseConfig `mapstructure:"base_purchase"`
	AddPurchase  AddPurchaseConfig  `mapstructure:"add_purchase"`
	Alerts       AlertsConfig       `mapstructure:"alerts"`
	Backfill     BackfillConfig     `mapstructure:"backfill"`
	Watch        WatchConfig        `mapstructure:"watch"`
	Daemon       DaemonConfig       `mapstructure:"daemon"`
	Export       ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExchangeConfig covers GMO Coin API access.
type ExchangeConfig struct {
	PublicBaseURL  string        `mapstructure:"public_base_url"`
	PrivateBaseURL string        `mapstructure:"private_base_url"`
	APIKey         string        `mapstructure:"api_key"`
	APISecret      string        `mapstructure:"api_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// NotifyConfig routes outbound notifications.
type NotifyConfig struct {
	Slack SlackConfig `mapstructure:"slack"`
	Mail  MailConfig  `mapstructure:"mail"`
}

// SlackConfig describes the incoming-webhook channel.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// MailConfig describes the SMTP channel.
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	To       string `mapstructure:"to"`
}

// BaseSymbolConfig holds per-symbol settings for recurring purchases.
type BaseSymbolConfig struct {
	JPY            decimal.Decimal `mapstructure:"jpy"`
	IntervalDays   int             `mapstructure:"interval_days"`
	MinOrderAmount decimal.Decimal `mapstructure:"min_order_amount"`
}

// AddSymbolConfig holds per-symbol settings for conditional purchases.
type AddSymbolConfig struct {
	JPY              decimal.Decimal `mapstructure:"jpy"`
	MinOrderAmount   decimal.Decimal `mapstructure:"min_order_amount"`
	MinScore         int             `mapstructure:"min_score"`
	PriceDropPercent decimal.Decimal `mapstructure:"price_drop_percent"`
	SMADeviation     decimal.Decimal `mapstructure:"sma_deviation"`
	RSIThreshold     decimal.Decimal `mapstructure:"rsi_threshold"`
}

// BasePurchaseConfig maps symbols to recurring purchase settings.
type BasePurchaseConfig struct {
	Settings map[string]BaseSymbolConfig `mapstructure:"settings"`
}

// AddPurchaseConfig maps symbols to conditional purchase settings.
type AddPurchaseConfig struct {
	Enabled  bool                       `mapstructure:"enabled"`
	Settings map[string]AddSymbolConfig `mapstructure:"settings"`
}

// AlertsConfig defines watchdog thresholds.
type AlertsConfig struct {
	BalanceThresholdJPY decimal.Decimal  `mapstructure:"balance_threshold_jpy"`
	SuddenDrop          SuddenDropConfig `mapstructure:"sudden_drop"`
}

// SuddenDropConfig governs the short-term drop watchdog.
type SuddenDropConfig struct {
	Enabled      bool            `mapstructure:"enabled"`
	ThresholdPct decimal.Decimal `mapstructure:"threshold_pct"`
	Symbols      []string        `mapstructure:"symbols"`
}

// BackfillConfig paces the historical price backfill.
type BackfillConfig struct {
	RequiredDays int           `mapstructure:"required_days"`
	MinDelay     time.Duration `mapstructure:"min_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// WatchConfig governs the short-term sampling loop.
type WatchConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// DaemonConfig holds cron specs for the scheduled jobs.
type DaemonConfig struct {
	RecordPriceSpec string `mapstructure:"record_price_spec"`
	BaseCheckSpec   string `mapstructure:"basecheck_spec"`
	AddCheckSpec    string `mapstructure:"addcheck_spec"`
	AlertsSpec      string `mapstructure:"alerts_spec"`
	RecordTickSpec  string `mapstructure:"record_tick_spec"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DCABOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applySymbolDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dcabot")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("exchange.public_base_url", "https://api.coin.z.com/public/v1")
	v.SetDefault("exchange.private_base_url", "https://api.coin.z.com/private/v1")
	v.SetDefault("exchange.request_timeout", "5s")
	v.SetDefault("exchange.user_agent", "dcabot/1.0")

	v.SetDefault("add_purchase.enabled", false)

	v.SetDefault("alerts.balance_threshold_jpy", 0)
	v.SetDefault("alerts.sudden_drop.enabled", false)
	v.SetDefault("alerts.sudden_drop.threshold_pct", -5)

	v.SetDefault("backfill.required_days", 40)
	v.SetDefault("backfill.min_delay", "12s")
	v.SetDefault("backfill.max_delay", "15s")

	v.SetDefault("watch.interval", "5m")
	v.SetDefault("watch.align_to_bucket", true)
	v.SetDefault("watch.startup_delay", "0s")

	v.SetDefault("daemon.record_price_spec", "5 0 * * *")
	v.SetDefault("daemon.basecheck_spec", "15 0 * * *")
	v.SetDefault("daemon.addcheck_spec", "30 0 * * *")
	v.SetDefault("daemon.alerts_spec", "0 * * * *")
	v.SetDefault("daemon.record_tick_spec", "*/5 * * * *")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			decimalHookFunc(),
		)
	}
}

// decimalHookFunc decodes strings and numbers into decimal.Decimal so currency
// values never pass through binary floats on their way in from YAML strings.
func decimalHookFunc() mapstructure.DecodeHookFuncType {
	decimalType := reflect.TypeOf(decimal.Decimal{})
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(v)
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		default:
			return data, nil
		}
	}
}

// applySymbolDefaults fills per-symbol thresholds left unset. Zero values for
// the percentage thresholds are not meaningful settings for this strategy, so
// zero is treated as unset.
func (c *Config) applySymbolDefaults() {
	for symbol, conf := range c.BasePurchase.Settings {
		if conf.IntervalDays == 0 {
			conf.IntervalDays = 2
		}
		c.BasePurchase.Settings[symbol] = conf
	}
	for symbol, conf := range c.AddPurchase.Settings {
		if conf.MinScore == 0 {
			conf.MinScore = 2
		}
		if conf.PriceDropPercent.IsZero() {
			conf.PriceDropPercent = decimal.NewFromInt(-3)
		}
		if conf.SMADeviation.IsZero() {
			conf.SMADeviation = decimal.NewFromInt(-5)
		}
		if conf.RSIThreshold.IsZero() {
			conf.RSIThreshold = decimal.NewFromInt(30)
		}
		c.AddPurchase.Settings[symbol] = conf
	}
}

// Validate performs sanity checks on the configuration values. It runs before
// any component is constructed; a failure here aborts the process.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("exchange.request_timeout must be greater than zero")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Backfill.RequiredDays <= 0 {
		return fmt.Errorf("backfill.required_days must be greater than zero")
	}
	if c.Backfill.MinDelay <= 0 || c.Backfill.MaxDelay < c.Backfill.MinDelay {
		return fmt.Errorf("backfill delays must satisfy 0 < min_delay <= max_delay")
	}

	for symbol, conf := range c.BasePurchase.Settings {
		if conf.JPY.IsNegative() {
			return fmt.Errorf("base_purchase.settings.%s.jpy cannot be negative", symbol)
		}
		if conf.IntervalDays <= 0 {
			return fmt.Errorf("base_purchase.settings.%s.interval_days must be greater than zero", symbol)
		}
		if conf.JPY.IsPositive() && !conf.MinOrderAmount.IsPositive() {
			return fmt.Errorf("base_purchase.settings.%s.min_order_amount must be greater than zero", symbol)
		}
	}

	for symbol, conf := range c.AddPurchase.Settings {
		if conf.JPY.IsNegative() {
			return fmt.Errorf("add_purchase.settings.%s.jpy cannot be negative", symbol)
		}
		if conf.JPY.IsPositive() && !conf.MinOrderAmount.IsPositive() {
			return fmt.Errorf("add_purchase.settings.%s.min_order_amount must be greater than zero", symbol)
		}
		if conf.RSIThreshold.IsNegative() {
			return fmt.Errorf("add_purchase.settings.%s.rsi_threshold cannot be negative", symbol)
		}
	}

	if c.requiresPrivateAPI() {
		if c.Exchange.APIKey == "" {
			return fmt.Errorf("exchange.api_key is required when purchases or balance alerts are configured")
		}
		if c.Exchange.APISecret == "" {
			return fmt.Errorf("exchange.api_secret is required when purchases or balance alerts are configured")
		}
	}

	if c.Alerts.SuddenDrop.Enabled && !c.Alerts.SuddenDrop.ThresholdPct.IsNegative() {
		return fmt.Errorf("alerts.sudden_drop.threshold_pct must be negative")
	}

	if c.Notify.Slack.Enabled && c.Notify.Slack.WebhookURL == "" {
		return fmt.Errorf("notify.slack.webhook_url is required when slack is enabled")
	}
	if c.Notify.Mail.Enabled {
		if c.Notify.Mail.Host == "" || c.Notify.Mail.Port == 0 {
			return fmt.Errorf("notify.mail.host and notify.mail.port are required when mail is enabled")
		}
		if c.Notify.Mail.Username == "" || c.Notify.Mail.To == "" {
			return fmt.Errorf("notify.mail.username and notify.mail.to are required when mail is enabled")
		}
	}

	return nil
}

func (c *Config) requiresPrivateAPI() bool {
	if c.Alerts.BalanceThresholdJPY.IsPositive() {
		return true
	}
	for _, conf := range c.BasePurchase.Settings {
		if conf.JPY.IsPositive() {
			return true
		}
	}
	if c.AddPurchase.Enabled {
		for _, conf := range c.AddPurchase.Settings {
			if conf.JPY.IsPositive() {
				return true
			}
		}
	}
	return false
}

// Symbols returns the union of configured symbols in deterministic order.
func (c *Config) Symbols() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(c.BasePurchase.Settings)+len(c.AddPurchase.Settings))
	appendUnique := func(symbol string) {
		if _, ok := seen[symbol]; ok {
			return
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	for _, symbol := range sortedKeysBase(c.BasePurchase.Settings) {
		appendUnique(symbol)
	}
	for _, symbol := range sortedKeysAdd(c.AddPurchase.Settings) {
		appendUnique(symbol)
	}
	for _, symbol := range c.Alerts.SuddenDrop.Symbols {
		appendUnique(symbol)
	}
	return out
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

func sortedKeysBase(m map[string]BaseSymbolConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysAdd(m map[string]AddSymbolConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
