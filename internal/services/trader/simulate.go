package trader

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/internal/domain"
)

// TickerSource supplies market prices to the paper exchange.
type TickerSource interface {
	GetTicker(ctx context.Context) (domain.Ticker, error)
}

// StaticTicker is a fixed ticker used as a price source.
type StaticTicker domain.Ticker

// GetTicker returns a copy of the fixed ticker.
func (s StaticTicker) GetTicker(context.Context) (domain.Ticker, error) {
	return domain.Ticker(s).Clone(), nil
}

// SimulateGateway is an in-memory paper exchange: orders fill immediately
// against the source prices and move the simulated wallet.
type SimulateGateway struct {
	mu     sync.Mutex
	logger *zap.Logger
	source TickerSource
	wallet domain.Balances
	seq    int64
}

// NewSimulateGateway creates a paper exchange with the starting wallet.
func NewSimulateGateway(source TickerSource, wallet domain.Balances, logger *zap.Logger) (*SimulateGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == nil {
		return nil, errors.New("ticker source is required for SimulateGateway")
	}

	w := domain.Balances{}
	for asset, amount := range wallet {
		if amount.IsNegative() {
			return nil, errors.Wrapf(domain.ErrInvalidAmount, "simulated balance of %s is %s", asset, amount.String())
		}
		w[domain.NormalizeSymbol(asset)] = amount
	}

	logger.Info("simulate init", zap.Int("assets", len(w)), zap.String("btc", w[domain.BTC].String()))
	return &SimulateGateway{logger: logger, source: source, wallet: w}, nil
}

// GetTicker returns the source prices.
func (g *SimulateGateway) GetTicker(ctx context.Context) (domain.Ticker, error) {
	return g.source.GetTicker(ctx)
}

// GetBalances returns a copy of the simulated wallet.
func (g *SimulateGateway) GetBalances(context.Context) (domain.Balances, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wallet.Clone(), nil
}

// PlaceOrder fills a market order at the source price. A limit order fills at
// its rate when marketable and is rejected otherwise.
func (g *SimulateGateway) PlaceOrder(ctx context.Context, order domain.TradeOrder) (domain.OrderFill, error) {
	if !order.Amount.IsPositive() {
		return domain.OrderFill{}, fmt.Errorf("%s amount must be positive, got %s", order.Side.String(), order.Amount.String())
	}

	ticker, err := g.source.GetTicker(ctx)
	if err != nil {
		return domain.OrderFill{}, errors.Wrap(err, "failed to get price for simulated order")
	}

	pair := order.Pair()
	q, ok := ticker.Quote(pair.From)
	if !ok || !q.Price.IsPositive() {
		return domain.OrderFill{}, fmt.Errorf("no market for %s", pair.String())
	}
	quote, ok := ticker.Quote(pair.To)
	if !ok || !quote.Price.IsPositive() {
		return domain.OrderFill{}, fmt.Errorf("no market for %s", pair.String())
	}
	price := q.Price.Div(quote.Price)

	rate := price
	if order.Mode == domain.RateModeLimit {
		if order.Side == domain.SideBuy && order.Rate.LessThan(price) ||
			order.Side == domain.SideSell && order.Rate.GreaterThan(price) {
			return domain.OrderFill{}, fmt.Errorf("limit price %s not reached, market is %s", order.Rate.String(), price.String())
		}
		rate = order.Rate
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cost := order.Amount.Mul(rate)
	switch order.Side {
	case domain.SideBuy:
		if g.wallet[pair.To].LessThan(cost) {
			return domain.OrderFill{}, fmt.Errorf("insufficient %s balance: have %s need %s",
				pair.To, g.wallet[pair.To].String(), cost.String())
		}
		g.wallet[pair.To] = g.wallet[pair.To].Sub(cost)
		g.wallet[pair.From] = g.wallet[pair.From].Add(order.Amount)
	case domain.SideSell:
		if g.wallet[pair.From].LessThan(order.Amount) {
			return domain.OrderFill{}, fmt.Errorf("insufficient %s balance: have %s need %s",
				pair.From, g.wallet[pair.From].String(), order.Amount.String())
		}
		g.wallet[pair.From] = g.wallet[pair.From].Sub(order.Amount)
		g.wallet[pair.To] = g.wallet[pair.To].Add(cost)
	default:
		return domain.OrderFill{}, fmt.Errorf("unknown order side %d", order.Side)
	}

	g.seq++
	ref := fmt.Sprintf("sim-%d", g.seq)
	g.logger.Info("Simulated order executed",
		zap.String("ref", ref),
		zap.String("client_id", order.ID),
		zap.String("side", order.Side.String()),
		zap.String("pair", pair.String()),
		zap.String("amount", order.Amount.String()),
		zap.String("rate", rate.String()))

	return domain.OrderFill{OrderRef: ref, FilledAmount: order.Amount, FilledRate: rate}, nil
}
