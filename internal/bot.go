package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/config"
	"github.com/vadiminshakov/calculator/internal/credentials"
	"github.com/vadiminshakov/calculator/internal/portfolio"
	"github.com/vadiminshakov/calculator/internal/scheduler"
	"github.com/vadiminshakov/calculator/internal/services/pricer"
	"github.com/vadiminshakov/calculator/internal/services/strategy"
	"github.com/vadiminshakov/calculator/internal/storage/journal"
	"github.com/vadiminshakov/calculator/internal/storage/settings"
)

// Bot wires the portfolio store, the trading engine and the journal for one
// configuration, and runs the scheduled jobs.
type Bot struct {
	Store   *portfolio.Store
	Engine  *strategy.Engine
	Journal *journal.WALStore
	Config  config.Config
	logger  *zap.Logger
}

// NewBot builds every component and selects the configured exchange. The
// confirmer is used only when trading with confirmation is on.
func NewBot(ctx context.Context, conf config.Config, logger *zap.Logger, confirmer strategy.Confirmer) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, sc := range conf.Strategies {
		if !knownStrategy(sc.Name) {
			return nil, errors.Errorf("unknown strategy %q", sc.Name)
		}
	}

	creds, err := credentials.NewEnvProvider(conf.EnvFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load credentials")
	}
	st, err := settings.NewStore(conf.SettingsPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open settings")
	}

	provider := newGatewayProvider(creds, logger.Named("gateway"), conf.HyperliquidURL, conf.Simulate.Wallet, conf.Simulate.Ticker)
	store, err := portfolio.NewStore(
		portfolio.WithLogger(logger.Named("portfolio")),
		portfolio.WithFiatCurrencies(conf.FiatCurrencies),
		portfolio.WithCheckpointBasis(conf.CheckpointBasis),
		portfolio.WithGatewayFactory(provider.Gateway),
		portfolio.WithCredentials(creds),
		portfolio.WithSettings(st),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create portfolio store")
	}

	if err := store.Exchange(ctx, conf.Exchange, true); err != nil {
		return nil, errors.Wrapf(err, "failed to select exchange %s", conf.Exchange)
	}

	wal, err := journal.NewWALStore(conf.JournalDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}

	opts := []strategy.Option{
		strategy.WithLogger(logger.Named("engine")),
		strategy.WithJournal(wal),
		strategy.WithSpendPercent(conf.SpendPercent),
	}
	if conf.TradingWithConfirmation {
		if confirmer == nil {
			_ = wal.Close()
			return nil, errors.New("trading with confirmation is on but no confirmer is available")
		}
		opts = append(opts, strategy.WithConfirmer(confirmer))
	}
	engine, err := strategy.NewEngine(store, opts...)
	if err != nil {
		_ = wal.Close()
		return nil, errors.Wrap(err, "failed to create trading engine")
	}

	b := &Bot{Store: store, Engine: engine, Journal: wal, Config: conf, logger: logger}
	if err := b.Sync(ctx); err != nil {
		logger.Warn("initial sync incomplete", zap.Error(err))
	}
	return b, nil
}

// Close closes the journal.
func (b *Bot) Close() error {
	return b.Journal.Close()
}

// Sync pulls balances when the exchange reports them, tracks newly held assets
// and recomputes the ratings.
func (b *Bot) Sync(ctx context.Context) error {
	if _, err := b.Store.RefreshBalances(ctx); err != nil {
		return err
	}
	b.trackHeld()
	return b.updateRatings()
}

// Run schedules the refresh and strategy jobs and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	s := scheduler.New(ctx, b.logger)

	if err := s.Every(b.Config.RefreshInterval, scheduler.NewJob("refresh-ticker", b.refreshTicker)); err != nil {
		return err
	}
	if gw, err := b.Store.Gateway(); err == nil {
		if _, ok := gw.(portfolio.BalanceReporter); ok {
			if err := s.Every(b.Config.BalanceRefreshInterval, scheduler.NewJob("refresh-balances", b.Sync)); err != nil {
				return err
			}
		}
	}

	for _, sc := range b.Config.Strategies {
		job := scheduler.NewJob(sc.Name, func(ctx context.Context) error {
			_, err := b.RunStrategy(ctx, sc)
			return err
		})
		if err := s.AddJob(sc.Schedule, job); err != nil {
			return err
		}
	}

	s.Start()
	b.logger.Info("Starting calculator",
		zap.String("exchange", b.Store.DefaultExchange()),
		zap.Duration("refresh_interval", b.Config.RefreshInterval),
		zap.Int("strategies", len(b.Config.Strategies)))

	<-ctx.Done()
	b.logger.Info("Context done, stopping calculator")
	s.Stop()
	return ctx.Err()
}

// RunStrategy runs one batch strategy with its configured thresholds.
func (b *Bot) RunStrategy(ctx context.Context, sc config.StrategyConfig) (strategy.Report, error) {
	var (
		report strategy.Report
		err    error
	)
	switch sc.Name {
	case strategy.StrategySellProfit:
		report, err = b.Engine.SellWithProfitInFiat(ctx, sc.Amount)
	case strategy.StrategySellInvestors:
		report, err = b.Engine.SellByInvestors(ctx, sc.Percent)
	case strategy.StrategyBuyDip:
		report, err = b.Engine.BuyWithProfitInPercent(ctx, sc.Percent, sc.Rate)
	case strategy.StrategyBuyInvestors:
		report, err = b.Engine.BuyByInvestors(ctx, sc.Rate)
	case strategy.StrategyBuyBest:
		report, err = b.Engine.BuyTheBest(ctx)
	case strategy.StrategyBuyWorst:
		report, err = b.Engine.BuyTheWorst(ctx)
	default:
		return strategy.Report{}, errors.Errorf("unknown strategy %q", sc.Name)
	}
	if err != nil {
		return report, errors.Wrapf(err, "strategy %s", sc.Name)
	}

	b.logger.Info("strategy finished",
		zap.String("strategy", sc.Name),
		zap.Int("trades", len(report.Results)),
		zap.Int("failures", len(report.Failures)),
		zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

// Value returns the portfolio value in both configured fiat currencies.
func (b *Bot) Value() ([]pricer.Valuation, error) {
	fiat := b.Store.FiatCurrencies()
	out := make([]pricer.Valuation, 0, len(fiat))
	for _, currency := range fiat {
		v, err := b.Store.Calculate(currency)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *Bot) refreshTicker(ctx context.Context) error {
	if err := b.Store.RefreshTicker(ctx); err != nil {
		return err
	}
	b.trackHeld()
	return b.updateRatings()
}

// trackHeld starts a checkpoint for held assets the strategies do not know yet.
func (b *Bot) trackHeld() {
	for _, asset := range b.Store.Checkpoints().TrackHeld() {
		b.logger.Info("tracking held asset", zap.String("asset", asset))
	}
}

// updateRatings recomputes the ratings and journals the allocation.
func (b *Bot) updateRatings() error {
	if _, err := b.Store.UpdateRatings(); err != nil {
		return err
	}

	currency := b.Store.FiatCurrencies().Primary()
	v, err := b.Store.Calculate(currency)
	if err != nil {
		return err
	}
	entry := journal.RatingsEntry{
		Time:     time.Now(),
		Currency: currency,
		Total:    v.Total,
		Ratings:  b.Store.CurrentRatings(),
	}
	if err := b.Journal.RecordRatings(entry); err != nil {
		b.logger.Warn("ratings not journaled", zap.Error(err))
	}
	return nil
}

func knownStrategy(name string) bool {
	switch name {
	case strategy.StrategySellProfit, strategy.StrategySellInvestors, strategy.StrategyBuyDip,
		strategy.StrategyBuyInvestors, strategy.StrategyBuyBest, strategy.StrategyBuyWorst:
		return true
	}
	return false
}
