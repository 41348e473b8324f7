// Package strategy turns portfolio state into orders: manual trades against
// BTC and the rule-based batch strategies that sell gains, rebalance toward the
// target allocation or pick the best and worst performers.
package strategy

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/portfolio"
	"github.com/vadiminshakov/calculator/internal/storage/journal"
)

// strategy names used in logs, the journal and the scheduler configuration.
const (
	StrategyManual        = "manual"
	StrategySellProfit    = "sell-profit"
	StrategySellInvestors = "sell-investors"
	StrategyBuyDip        = "buy-dip"
	StrategyBuyInvestors  = "buy-investors"
	StrategyBuyBest       = "buy-best"
	StrategyBuyWorst      = "buy-worst"
)

// amountPrecision decimal places kept for computed order amounts.
const amountPrecision = 8

var hundred = decimal.NewFromInt(100)

type portfolioStore interface {
	Snapshot() portfolio.Snapshot
	ApplyFill(generation uint64, order domain.TradeOrder, fill domain.OrderFill) error
	UpdateRatings() ([]domain.AssetError, error)
}

// Confirmer approves orders before they are sent when trading with confirmation is on.
type Confirmer interface {
	Confirm(ctx context.Context, order domain.TradeOrder) (bool, error)
}

type tradeRecorder interface {
	RecordTrade(entry journal.TradeEntry) error
}

// Engine decides and executes trades. It keeps no state of its own: every
// decision is made on a store snapshot, orders are placed with no lock held
// and fills are applied back to the store.
type Engine struct {
	store        portfolioStore
	l            *zap.Logger
	confirmer    Confirmer
	journal      tradeRecorder
	spendPercent decimal.Decimal
	now          func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// WithConfirmer requires every order to be approved by c before it is placed.
func WithConfirmer(c Confirmer) Option {
	return func(e *Engine) {
		e.confirmer = c
	}
}

// WithJournal records every executed trade.
func WithJournal(j tradeRecorder) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithSpendPercent sets the share of the BTC balance BuyTheBest and BuyTheWorst spend.
func WithSpendPercent(p decimal.Decimal) Option {
	return func(e *Engine) {
		e.spendPercent = p
	}
}

// NewEngine creates a trading engine over the store.
func NewEngine(store portfolioStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("portfolio store is required for Engine")
	}

	e := &Engine{
		store:        store,
		l:            zap.NewNop(),
		spendPercent: hundred,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if !e.spendPercent.IsPositive() || e.spendPercent.GreaterThan(hundred) {
		return nil, errors.Wrapf(domain.ErrInvalidAmount, "spend percent must be in (0, 100], got %s", e.spendPercent.String())
	}

	return e, nil
}

// Report outcome of a batch strategy. A failed asset never stops the batch.
type Report struct {
	Strategy string
	Results  []domain.TradeResult
	// Failures assets whose order could not be placed or applied.
	Failures []domain.AssetError
	// Skipped assets that could not be evaluated, e.g. no quote or no checkpoint.
	Skipped []domain.AssetError
}

func (r *Report) fail(asset string, err error) {
	r.Failures = append(r.Failures, domain.AssetError{Asset: asset, Err: err})
}

func (r *Report) skip(asset string, err error) {
	r.Skipped = append(r.Skipped, domain.AssetError{Asset: asset, Err: err})
}

// execute confirms, places and applies one order.
func (e *Engine) execute(ctx context.Context, snap portfolio.Snapshot, strategy string, order domain.TradeOrder) (domain.TradeResult, error) {
	if !order.Amount.IsPositive() {
		return domain.TradeResult{}, errors.Wrapf(domain.ErrInvalidAmount, "%s amount %s", order.Side.String(), order.Amount.String())
	}
	if snap.Gateway == nil {
		return domain.TradeResult{}, domain.ErrNoExchange
	}

	order.ID = uuid.NewString()
	order.Quote = settlementAsset(snap)

	if e.confirmer != nil {
		approved, err := e.confirmer.Confirm(ctx, order)
		if err != nil {
			return domain.TradeResult{}, errors.Wrapf(err, "confirm %s", order.String())
		}
		if !approved {
			e.l.Info("order declined", zap.String("strategy", strategy), zap.String("order", order.String()))
			return domain.TradeResult{}, errors.Wrapf(domain.ErrOrderDeclined, "%s", order.String())
		}
	}

	fill, err := snap.Gateway.PlaceOrder(ctx, order)
	if err != nil {
		e.l.Error("order rejected",
			zap.String("exchange", snap.Exchange),
			zap.String("strategy", strategy),
			zap.String("client_id", order.ID),
			zap.String("order", order.String()),
			zap.Error(err))
		return domain.TradeResult{}, domain.NewRejectionError(snap.Exchange, order, err)
	}

	result := domain.NewTradeResult(order, fill)
	if err := e.store.ApplyFill(snap.Generation, order, fill); err != nil {
		return result, errors.Wrapf(err, "apply fill of order %s", fill.OrderRef)
	}

	if e.journal != nil {
		entry := journal.TradeEntry{Time: e.now(), Exchange: snap.Exchange, Strategy: strategy, Result: result}
		if err := e.journal.RecordTrade(entry); err != nil {
			e.l.Warn("trade not journaled", zap.String("ref", result.OrderRef), zap.Error(err))
		}
	}

	e.l.Info("trade executed",
		zap.String("exchange", snap.Exchange),
		zap.String("strategy", strategy),
		zap.String("ref", result.OrderRef),
		zap.String("side", result.Side.String()),
		zap.String("asset", result.Asset),
		zap.String("amount", result.FilledAmount.String()),
		zap.String("rate", result.FilledRate.String()))

	return result, nil
}

func marketOrder(asset string, side domain.Side, amount decimal.Decimal) domain.TradeOrder {
	return domain.TradeOrder{Asset: asset, Side: side, Amount: amount, Mode: domain.RateModeMarket}
}

// settlementAsset is the asset the snapshot's gateway pays and receives.
func settlementAsset(snap portfolio.Snapshot) string {
	if snap.Quote == "" {
		return domain.BTC
	}
	return snap.Quote
}

// spendable is the settlement balance expressed in BTC.
func spendable(snap portfolio.Snapshot) (decimal.Decimal, error) {
	quote := settlementAsset(snap)
	balance := snap.Balances[quote]
	if quote == domain.BTC {
		return balance, nil
	}
	price, err := snap.Converter().BTCPrice(quote)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "value %s balance", quote)
	}
	return balance.Mul(price), nil
}

// tradableAssets returns the altcoin keys of m in ascending symbol order.
func tradableAssets[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for asset := range m {
		if domain.IsTradable(asset) {
			out = append(out, asset)
		}
	}
	sort.Strings(out)
	return out
}
