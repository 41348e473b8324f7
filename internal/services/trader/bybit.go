package trader

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/calculator/internal/domain"
)

const (
	bybitQuantityPrecision = 4
	bybitQuotePrecision    = 8
	bybitAccountType       = "UNIFIED"
)

// BybitGateway trades spot altcoin/BTC markets on Bybit.
type BybitGateway struct {
	client *bybit.Client
}

// NewBybitGateway creates a gateway over an authenticated client.
func NewBybitGateway(client *bybit.Client) (*BybitGateway, error) {
	if client == nil {
		return nil, errors.New("bybit client is nil")
	}
	return &BybitGateway{client: client}, nil
}

// GetTicker fetches the last prices of all spot markets.
func (g *BybitGateway) GetTicker(ctx context.Context) (domain.Ticker, error) {
	res, err := g.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit tickers")
	}
	if res.Result.Spot == nil {
		return nil, errors.New("bybit returned no spot tickers")
	}

	entries := make([]marketEntry, 0, len(res.Result.Spot.List))
	for _, s := range res.Result.Spot.List {
		entries = append(entries, marketEntry{Symbol: string(s.Symbol), Last: s.LastPrice})
	}

	ticker := buildTicker(entries)
	if len(ticker) <= 1 {
		return nil, errors.New("bybit returned no BTC markets")
	}
	return ticker, nil
}

// PlaceOrder places a spot order. Bybit takes market buy quantities in the
// quote currency, so those are converted at the last price. Bybit does not
// report fills on creation: the requested amount is assumed filled at the
// limit rate or the last price.
func (g *BybitGateway) PlaceOrder(ctx context.Context, order domain.TradeOrder) (domain.OrderFill, error) {
	amount := order.Amount.RoundFloor(bybitQuantityPrecision)
	if !amount.IsPositive() {
		return domain.OrderFill{}, errors.Wrapf(domain.ErrInvalidAmount, "quantity %s rounds to zero", order.Amount.String())
	}

	symbol := bybit.SymbolV5(order.Pair().Symbol())
	side := bybit.SideBuy
	if order.Side == domain.SideSell {
		side = bybit.SideSell
	}

	param := bybit.V5CreateOrderParam{
		Category:    "spot",
		Symbol:      symbol,
		Side:        side,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         amount.String(),
		OrderLinkID: &order.ID,
	}

	rate := order.Rate
	if order.Mode == domain.RateModeLimit {
		price := order.Rate.String()
		param.OrderType = bybit.OrderTypeLimit
		param.Price = &price
	} else {
		last, err := g.lastPrice(symbol)
		if err != nil {
			return domain.OrderFill{}, err
		}
		rate = last
		if order.Side == domain.SideBuy {
			param.Qty = amount.Mul(last).RoundFloor(bybitQuotePrecision).String()
		}
	}

	res, err := g.client.V5().Order().CreateOrder(param)
	if err != nil {
		return domain.OrderFill{}, err
	}

	return domain.OrderFill{
		OrderRef:     res.Result.OrderID,
		FilledAmount: amount,
		FilledRate:   rate,
	}, nil
}

func (g *BybitGateway) lastPrice(symbol bybit.SymbolV5) (decimal.Decimal, error) {
	res, err := g.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get bybit price of %s", symbol)
	}
	if res.Result.Spot == nil || len(res.Result.Spot.List) == 0 {
		return decimal.Zero, errors.Wrapf(domain.ErrQuoteNotFound, "bybit market %s", symbol)
	}
	return decimal.NewFromString(res.Result.Spot.List[0].LastPrice)
}

// GetBalances returns wallet balances of the unified account.
func (g *BybitGateway) GetBalances(ctx context.Context) (domain.Balances, error) {
	res, err := g.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5(bybitAccountType), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get bybit wallet balance")
	}

	balances := domain.Balances{}
	if len(res.Result.List) == 0 {
		return balances, nil
	}
	for _, coin := range res.Result.List[0].Coin {
		amount, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse balance of %s", coin.Coin)
		}
		if amount.IsZero() {
			continue
		}
		balances[domain.NormalizeSymbol(string(coin.Coin))] = amount
	}
	return balances, nil
}
