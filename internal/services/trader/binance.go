package trader

import (
	"context"
	"strconv"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/calculator/internal/domain"
)

// binanceMaxPrecision is used for markets that publish no LOT_SIZE filter.
const binanceMaxPrecision = 8

// BinanceGateway trades spot altcoin/BTC markets on Binance.
type BinanceGateway struct {
	client *binance.Client

	mu sync.Mutex
	// steps caches the LOT_SIZE step of every symbol traded so far
	steps map[string]decimal.Decimal
}

// NewBinanceGateway creates a gateway over an authenticated or public client.
func NewBinanceGateway(client *binance.Client) (*BinanceGateway, error) {
	if client == nil {
		return nil, errors.New("binance client is nil")
	}
	return &BinanceGateway{client: client, steps: make(map[string]decimal.Decimal)}, nil
}

// GetTicker fetches 24h statistics of all markets.
func (g *BinanceGateway) GetTicker(ctx context.Context) (domain.Ticker, error) {
	stats, err := g.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance 24h stats")
	}

	entries := make([]marketEntry, 0, len(stats))
	for _, s := range stats {
		if s == nil {
			continue
		}
		entries = append(entries, marketEntry{Symbol: s.Symbol, Last: s.LastPrice, Change: s.PriceChangePercent})
	}

	ticker := buildTicker(entries)
	if len(ticker) <= 1 {
		return nil, errors.New("binance returned no BTC markets")
	}
	return ticker, nil
}

// PlaceOrder places a market or GTC limit order. Exchange errors are returned unchanged.
func (g *BinanceGateway) PlaceOrder(ctx context.Context, order domain.TradeOrder) (domain.OrderFill, error) {
	symbol := order.Pair().Symbol()
	step, err := g.lotStep(ctx, symbol)
	if err != nil {
		return domain.OrderFill{}, err
	}
	amount := floorToStep(order.Amount, step)
	if !amount.IsPositive() {
		return domain.OrderFill{}, errors.Wrapf(domain.ErrInvalidAmount, "quantity %s is below the %s lot step %s",
			order.Amount.String(), symbol, step.String())
	}

	side := binance.SideTypeBuy
	if order.Side == domain.SideSell {
		side = binance.SideTypeSell
	}

	svc := g.client.NewCreateOrderService().Symbol(symbol).
		Side(side).
		Quantity(amount.String()).
		NewClientOrderID(order.ID)
	if order.Mode == domain.RateModeLimit {
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(order.Rate.String())
	} else {
		svc = svc.Type(binance.OrderTypeMarket)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return domain.OrderFill{}, err
	}

	executed, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return domain.OrderFill{}, errors.Wrap(err, "failed to parse executed quantity")
	}
	quote, err := decimal.NewFromString(res.CummulativeQuoteQuantity)
	if err != nil {
		return domain.OrderFill{}, errors.Wrap(err, "failed to parse executed quote quantity")
	}

	rate := order.Rate
	if executed.IsPositive() {
		rate = quote.Div(executed)
	}

	return domain.OrderFill{
		OrderRef:     strconv.FormatInt(res.OrderID, 10),
		FilledAmount: executed,
		FilledRate:   rate,
	}, nil
}

// lotStep returns the quantity step of the symbol, fetched once from the
// exchange info and cached. A zero step means no LOT_SIZE filter.
func (g *BinanceGateway) lotStep(ctx context.Context, symbol string) (decimal.Decimal, error) {
	g.mu.Lock()
	step, ok := g.steps[symbol]
	g.mu.Unlock()
	if ok {
		return step, nil
	}

	info, err := g.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get binance exchange info for %s", symbol)
	}

	found := false
	for i := range info.Symbols {
		if info.Symbols[i].Symbol != symbol {
			continue
		}
		found = true
		if lot := info.Symbols[i].LotSizeFilter(); lot != nil && lot.StepSize != "" {
			if step, err = decimal.NewFromString(lot.StepSize); err != nil {
				return decimal.Zero, errors.Wrapf(err, "failed to parse %s step size %q", symbol, lot.StepSize)
			}
		}
		break
	}
	if !found {
		return decimal.Zero, errors.Wrapf(domain.ErrQuoteNotFound, "binance market %s", symbol)
	}

	g.mu.Lock()
	g.steps[symbol] = step
	g.mu.Unlock()
	return step, nil
}

// floorToStep rounds amount down to a whole number of steps.
func floorToStep(amount, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return amount.RoundFloor(binanceMaxPrecision)
	}
	return amount.Div(step).Floor().Mul(step)
}

// GetBalances returns free balances of all assets held.
func (g *BinanceGateway) GetBalances(ctx context.Context) (domain.Balances, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance account balance")
	}

	balances := domain.Balances{}
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse balance of %s", b.Asset)
		}
		if free.IsZero() {
			continue
		}
		balances[domain.NormalizeSymbol(b.Asset)] = free
	}
	return balances, nil
}
