package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/calculator/internal/domain"
)

const (
	defaultExchange               = "simulate"
	defaultRefreshInterval        = time.Minute
	defaultBalanceRefreshInterval = 5 * time.Minute
	defaultSettingsPath           = "./settings.json"
	defaultJournalDir             = "./wal/journal"
	defaultEnvFile                = ".env"
	defaultLogLevel               = "info"
	defaultLogMaxSizeMB           = 100
	defaultLogMaxBackups          = 5
	defaultLogMaxAgeDays          = 30
	defaultHyperliquidURL         = "https://api.hyperliquid.xyz"
)

var defaultSimulatedWallet = domain.Balances{domain.BTC: decimal.NewFromInt(1)}

// Config runtime configuration of the calculator.
type Config struct {
	Exchange                string
	FiatCurrencies          domain.FiatPair
	CheckpointBasis         domain.CheckpointBasis
	TradingWithConfirmation bool
	// SpendPercent share of the BTC balance spent by buy-best and buy-worst.
	SpendPercent           decimal.Decimal
	RefreshInterval        time.Duration
	BalanceRefreshInterval time.Duration
	SettingsPath           string
	JournalDir             string
	EnvFile                string
	Log                    LogConfig
	Simulate               SimulateConfig
	HyperliquidURL         string
	Strategies             []StrategyConfig
}

// LogConfig logger settings. An empty File logs to stderr only.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SimulateConfig starting wallet and optional fixed prices of the paper exchange.
type SimulateConfig struct {
	Wallet domain.Balances
	// Ticker BTC prices per symbol; empty means live public market data.
	Ticker domain.Ticker
}

// StrategyConfig a strategy run on a cron schedule.
type StrategyConfig struct {
	Name     string
	Schedule string
	// Amount fiat profit for sell-profit.
	Amount decimal.Decimal
	// Percent threshold in percent for sell-investors and buy-dip.
	Percent decimal.Decimal
	// Rate investment rate threshold for buy-dip and buy-investors.
	Rate decimal.Decimal
}

// ConfigTmp is the YAML representation of Config; decimals are strings.
type ConfigTmp struct {
	Exchange                string            `yaml:"exchange,omitempty"`
	FiatCurrencies          []string          `yaml:"fiat_currencies,omitempty"`
	CheckpointBasis         string            `yaml:"checkpoint_basis,omitempty"`
	TradingWithConfirmation bool              `yaml:"trading_with_confirmation,omitempty"`
	SpendPercent            string            `yaml:"spend_percent,omitempty"`
	RefreshInterval         time.Duration     `yaml:"refresh_interval,omitempty"`
	BalanceRefreshInterval  time.Duration     `yaml:"balance_refresh_interval,omitempty"`
	SettingsPath            string            `yaml:"settings_path,omitempty"`
	JournalDir              string            `yaml:"journal_dir,omitempty"`
	EnvFile                 string            `yaml:"env_file,omitempty"`
	Log                     LogConfigTmp      `yaml:"log,omitempty"`
	Simulate                SimulateConfigTmp `yaml:"simulate,omitempty"`
	HyperliquidURL          string            `yaml:"hyperliquid_url,omitempty"`
	Strategies              []StrategyTmp     `yaml:"strategies,omitempty"`
}

type LogConfigTmp struct {
	Level      string `yaml:"level,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

type SimulateConfigTmp struct {
	Wallet map[string]string `yaml:"wallet,omitempty"`
	Ticker map[string]string `yaml:"ticker,omitempty"`
}

type StrategyTmp struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	Amount   string `yaml:"amount,omitempty"`
	Percent  string `yaml:"percent,omitempty"`
	Rate     string `yaml:"rate,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Exchange:               defaultExchange,
		FiatCurrencies:         domain.DefaultFiatPair,
		CheckpointBasis:        domain.CheckpointBasisFiat,
		SpendPercent:           decimal.NewFromInt(100),
		RefreshInterval:        defaultRefreshInterval,
		BalanceRefreshInterval: defaultBalanceRefreshInterval,
		SettingsPath:           defaultSettingsPath,
		JournalDir:             defaultJournalDir,
		EnvFile:                defaultEnvFile,
		Log: LogConfig{
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
		Simulate:       SimulateConfig{Wallet: defaultSimulatedWallet.Clone()},
		HyperliquidURL: defaultHyperliquidURL,
	}
}

// Get parses the global flags from args, loads the YAML file given with
// --config and applies the flag overrides. The remaining arguments, the
// command and its parameters, are returned.
func Get(fs *flag.FlagSet, args []string) (Config, []string, error) {
	path := fs.String("config", "", "path to yaml config")
	exchange := fs.String("exchange", "", "exchange: binance, bybit, hyperliquid or simulate")
	fiat := fs.String("fiat", "", "fiat currencies, primary first, example: EUR,USD")
	confirm := fs.Bool("confirm", false, "ask for confirmation before every order")
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	conf := Default()
	if *path != "" {
		var err error
		if conf, err = Load(*path); err != nil {
			return Config{}, nil, err
		}
	}

	if *exchange != "" {
		conf.Exchange = strings.ToLower(*exchange)
	}
	if *fiat != "" {
		pair, err := parseFiat(strings.Split(*fiat, ","))
		if err != nil {
			return Config{}, nil, fmt.Errorf("invalid --fiat provided, --fiat=%s: %w", *fiat, err)
		}
		conf.FiatCurrencies = pair
	}
	if *confirm {
		conf.TradingWithConfirmation = true
	}

	return conf, fs.Args(), nil
}

// Load reads a YAML config file.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}
	return Parse(tmp)
}

// Parse converts the YAML representation, filling in defaults for missing values.
func Parse(c ConfigTmp) (Config, error) {
	conf := Default()

	if c.Exchange != "" {
		conf.Exchange = strings.ToLower(c.Exchange)
	}
	if len(c.FiatCurrencies) > 0 {
		pair, err := parseFiat(c.FiatCurrencies)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'fiat_currencies' param in yaml config: %w", err)
		}
		conf.FiatCurrencies = pair
	}

	basis, err := domain.ParseCheckpointBasis(c.CheckpointBasis)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'checkpoint_basis' param in yaml config: %w", err)
	}
	conf.CheckpointBasis = basis
	conf.TradingWithConfirmation = c.TradingWithConfirmation

	if c.SpendPercent != "" {
		spend, err := decimal.NewFromString(c.SpendPercent)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'spend_percent' param in yaml config (must be a decimal), error: %w", err)
		}
		if !spend.IsPositive() || spend.GreaterThan(decimal.NewFromInt(100)) {
			return Config{}, fmt.Errorf("incorrect 'spend_percent' param in yaml config (must be in (0, 100]), got %s", spend.String())
		}
		conf.SpendPercent = spend
	}

	if c.RefreshInterval != 0 {
		conf.RefreshInterval = c.RefreshInterval
	}
	if c.BalanceRefreshInterval != 0 {
		conf.BalanceRefreshInterval = c.BalanceRefreshInterval
	}
	if conf.RefreshInterval < 0 || conf.BalanceRefreshInterval < 0 {
		return Config{}, fmt.Errorf("refresh intervals must not be negative")
	}

	setString(&conf.SettingsPath, c.SettingsPath)
	setString(&conf.JournalDir, c.JournalDir)
	setString(&conf.EnvFile, c.EnvFile)
	setString(&conf.HyperliquidURL, c.HyperliquidURL)

	setString(&conf.Log.Level, c.Log.Level)
	conf.Log.File = c.Log.File
	setInt(&conf.Log.MaxSizeMB, c.Log.MaxSizeMB)
	setInt(&conf.Log.MaxBackups, c.Log.MaxBackups)
	setInt(&conf.Log.MaxAgeDays, c.Log.MaxAgeDays)

	if len(c.Simulate.Wallet) > 0 {
		wallet := make(domain.Balances, len(c.Simulate.Wallet))
		for asset, s := range c.Simulate.Wallet {
			amount, err := decimal.NewFromString(s)
			if err != nil || amount.IsNegative() {
				return Config{}, fmt.Errorf("incorrect 'simulate.wallet.%s' param in yaml config: %q", asset, s)
			}
			wallet[domain.NormalizeSymbol(asset)] = amount
		}
		conf.Simulate.Wallet = wallet
	}
	if len(c.Simulate.Ticker) > 0 {
		ticker := make(domain.Ticker, len(c.Simulate.Ticker))
		for asset, s := range c.Simulate.Ticker {
			price, err := decimal.NewFromString(s)
			if err != nil || !price.IsPositive() {
				return Config{}, fmt.Errorf("incorrect 'simulate.ticker.%s' param in yaml config: %q", asset, s)
			}
			ticker.Set(domain.TickerQuote{Asset: asset, Price: price})
		}
		conf.Simulate.Ticker = ticker
	}

	for i, s := range c.Strategies {
		sc, err := parseStrategy(s)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect strategy #%d in yaml config: %w", i+1, err)
		}
		conf.Strategies = append(conf.Strategies, sc)
	}

	return conf, nil
}

// Tmp converts the configuration back to its YAML representation.
func (c Config) Tmp() ConfigTmp {
	tmp := ConfigTmp{
		Exchange:                c.Exchange,
		FiatCurrencies:          []string{c.FiatCurrencies.Primary(), c.FiatCurrencies.Secondary()},
		CheckpointBasis:         string(c.CheckpointBasis),
		TradingWithConfirmation: c.TradingWithConfirmation,
		SpendPercent:            c.SpendPercent.String(),
		RefreshInterval:         c.RefreshInterval,
		BalanceRefreshInterval:  c.BalanceRefreshInterval,
		SettingsPath:            c.SettingsPath,
		JournalDir:              c.JournalDir,
		EnvFile:                 c.EnvFile,
		Log: LogConfigTmp{
			Level:      c.Log.Level,
			File:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
		},
		HyperliquidURL: c.HyperliquidURL,
	}

	if len(c.Simulate.Wallet) > 0 {
		tmp.Simulate.Wallet = make(map[string]string, len(c.Simulate.Wallet))
		for asset, amount := range c.Simulate.Wallet {
			tmp.Simulate.Wallet[asset] = amount.String()
		}
	}
	if len(c.Simulate.Ticker) > 0 {
		tmp.Simulate.Ticker = make(map[string]string, len(c.Simulate.Ticker))
		for asset, q := range c.Simulate.Ticker {
			tmp.Simulate.Ticker[asset] = q.Price.String()
		}
	}

	for _, s := range c.Strategies {
		st := StrategyTmp{Name: s.Name, Schedule: s.Schedule}
		if !s.Amount.IsZero() {
			st.Amount = s.Amount.String()
		}
		if !s.Percent.IsZero() {
			st.Percent = s.Percent.String()
		}
		if !s.Rate.IsZero() {
			st.Rate = s.Rate.String()
		}
		tmp.Strategies = append(tmp.Strategies, st)
	}

	return tmp
}

func parseFiat(currencies []string) (domain.FiatPair, error) {
	if len(currencies) != 2 {
		return domain.FiatPair{}, fmt.Errorf("exactly two fiat currencies are required, got %d", len(currencies))
	}
	return domain.NewFiatPair(strings.TrimSpace(currencies[0]), strings.TrimSpace(currencies[1]))
}

func parseStrategy(s StrategyTmp) (StrategyConfig, error) {
	sc := StrategyConfig{Name: strings.ToLower(strings.TrimSpace(s.Name)), Schedule: strings.TrimSpace(s.Schedule)}
	if sc.Name == "" {
		return StrategyConfig{}, fmt.Errorf("'name' is required")
	}
	if sc.Schedule == "" {
		return StrategyConfig{}, fmt.Errorf("'schedule' is required for %s", sc.Name)
	}

	for _, field := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"amount", s.Amount, &sc.Amount},
		{"percent", s.Percent, &sc.Percent},
		{"rate", s.Rate, &sc.Rate},
	} {
		if field.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(field.raw)
		if err != nil {
			return StrategyConfig{}, fmt.Errorf("'%s' of %s must be a decimal, error: %w", field.name, sc.Name, err)
		}
		*field.dst = v
	}

	return sc, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
