package trader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/calculator/internal/domain"
)

const (
	hyperliquidSlippage      = 0.005
	hyperliquidSizePrecision = 8
	// hyperliquid mids are quoted in USDC
	hyperliquidQuote = domain.USD
)

// HyperliquidGateway trades Hyperliquid spot. Hyperliquid has no BTC markets,
// so prices and fills are converted to BTC through the BTC/USDC mid.
type HyperliquidGateway struct {
	ex          *hyperliquid.Exchange
	info        *hyperliquid.Info
	accountAddr string
}

// NewHyperliquidGateway creates a gateway for the account.
func NewHyperliquidGateway(ex *hyperliquid.Exchange, accountAddr string) (*HyperliquidGateway, error) {
	if ex == nil {
		return nil, fmt.Errorf("hyperliquid exchange is nil")
	}
	return &HyperliquidGateway{ex: ex, info: ex.Info(), accountAddr: accountAddr}, nil
}

// GetTicker converts all mids into BTC prices.
func (g *HyperliquidGateway) GetTicker(ctx context.Context) (domain.Ticker, error) {
	mids, err := g.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get hyperliquid mids")
	}
	return tickerFromMids(mids)
}

func tickerFromMids(mids map[string]string) (domain.Ticker, error) {
	btcMid, err := decimal.NewFromString(mids[domain.BTC])
	if err != nil || !btcMid.IsPositive() {
		return nil, errors.Wrap(domain.ErrQuoteNotFound, "hyperliquid returned no BTC mid")
	}

	ticker := domain.Ticker{}
	for coin, raw := range mids {
		// @N keys are spot pair indexes, not coins
		if strings.HasPrefix(coin, "@") {
			continue
		}
		mid, err := decimal.NewFromString(raw)
		if err != nil || !mid.IsPositive() {
			continue
		}
		ticker.Set(domain.TickerQuote{Asset: coin, Price: mid.Div(btcMid)})
	}
	ticker.Set(domain.TickerQuote{Asset: domain.BTC, Price: decimal.NewFromInt(1)})
	ticker.Set(domain.TickerQuote{Asset: hyperliquidQuote, Price: decimal.NewFromInt(1).Div(btcMid)})
	return ticker, nil
}

// QuoteAsset orders are paid and settled in USDC, booked as USD.
func (g *HyperliquidGateway) QuoteAsset() string {
	return hyperliquidQuote
}

// cloidFromID converts a free-form client ID into a valid Hyperliquid cloid (0x + 32 hex chars).
func cloidFromID(id string) string {
	s := strings.TrimSpace(id)
	if s == "" {
		s = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	sum := sha256.Sum256([]byte(s))
	return "0x" + hex.EncodeToString(sum[:16])
}

// PlaceOrder places an IOC order at the slippage price for market orders or
// a GTC order at the BTC rate converted to USDC for limit orders.
func (g *HyperliquidGateway) PlaceOrder(ctx context.Context, order domain.TradeOrder) (domain.OrderFill, error) {
	coin := domain.NormalizeSymbol(order.Asset)
	isBuy := order.Side == domain.SideBuy
	size, _ := order.Amount.RoundFloor(hyperliquidSizePrecision).Float64()
	if size <= 0 {
		return domain.OrderFill{}, errors.Wrapf(domain.ErrInvalidAmount, "size %s rounds to zero", order.Amount.String())
	}

	mids, err := g.info.AllMids(ctx)
	if err != nil {
		return domain.OrderFill{}, errors.Wrap(err, "failed to get hyperliquid mids")
	}
	btcMid, err := decimal.NewFromString(mids[domain.BTC])
	if err != nil || !btcMid.IsPositive() {
		return domain.OrderFill{}, errors.Wrap(domain.ErrQuoteNotFound, "hyperliquid returned no BTC mid")
	}

	orderType := hyperliquid.OrderType{Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifIoc}}
	var px float64
	if order.Mode == domain.RateModeLimit {
		px, _ = order.Rate.Mul(btcMid).Float64()
		orderType = hyperliquid.OrderType{Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifGtc}}
	} else {
		px, err = g.ex.SlippagePrice(ctx, coin, isBuy, hyperliquidSlippage, nil)
		if err != nil {
			return domain.OrderFill{}, errors.Wrap(err, "slippage price")
		}
	}

	cloid := cloidFromID(order.ID)
	req := hyperliquid.CreateOrderRequest{
		Coin:          coin,
		IsBuy:         isBuy,
		Price:         px,
		Size:          size,
		ClientOrderID: &cloid,
		OrderType:     orderType,
	}
	if _, err := g.ex.Order(ctx, req, nil); err != nil {
		return domain.OrderFill{}, err
	}

	filled, err := g.filledSize(ctx, cloid)
	if err != nil {
		return domain.OrderFill{}, err
	}

	return domain.OrderFill{
		OrderRef:     cloid,
		FilledAmount: filled,
		FilledRate:   decimal.NewFromFloat(px).Div(btcMid),
	}, nil
}

// filledSize reports the order size once filled, zero while resting or when cancelled.
func (g *HyperliquidGateway) filledSize(ctx context.Context, cloid string) (decimal.Decimal, error) {
	res, err := g.info.QueryOrderByCloid(ctx, g.accountAddr, cloid)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "query order by cloid")
	}
	if res == nil || res.Status != hyperliquid.OrderQueryStatusSuccess {
		return decimal.Zero, nil
	}
	if res.Order.Status != hyperliquid.OrderStatusValueFilled || res.Order.Order.OrigSz == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(res.Order.Order.OrigSz)
}

// GetBalances returns spot balances of the account.
func (g *HyperliquidGateway) GetBalances(ctx context.Context) (domain.Balances, error) {
	st, err := g.info.SpotUserState(ctx, g.accountAddr)
	if err != nil {
		return nil, errors.Wrap(err, "get spot user state")
	}

	balances := domain.Balances{}
	for _, b := range st.Balances {
		total, err := decimal.NewFromString(b.Total)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse balance of %s", b.Coin)
		}
		if total.IsZero() {
			continue
		}
		coin := domain.NormalizeSymbol(b.Coin)
		if coin == "USDC" {
			coin = hyperliquidQuote
		}
		balances[coin] = balances[coin].Add(total)
	}
	return balances, nil
}
