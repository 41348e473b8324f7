package strategy

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/portfolio"
)

// AutoBuy buys amount units of asset for BTC at market.
func (e *Engine) AutoBuy(ctx context.Context, asset string, amount decimal.Decimal) (domain.TradeResult, error) {
	return e.trade(ctx, domain.TradeOrder{Asset: asset, Side: domain.SideBuy, Amount: amount, Mode: domain.RateModeMarket})
}

// AutoBuyAtRate places a limit buy of amount units at rate BTC per unit.
func (e *Engine) AutoBuyAtRate(ctx context.Context, asset string, amount, rate decimal.Decimal) (domain.TradeResult, error) {
	return e.trade(ctx, domain.TradeOrder{Asset: asset, Side: domain.SideBuy, Amount: amount, Mode: domain.RateModeLimit, Rate: rate})
}

// AutoSell sells amount units of asset for BTC at market.
func (e *Engine) AutoSell(ctx context.Context, asset string, amount decimal.Decimal) (domain.TradeResult, error) {
	return e.trade(ctx, domain.TradeOrder{Asset: asset, Side: domain.SideSell, Amount: amount, Mode: domain.RateModeMarket})
}

// AutoSellAtRate places a limit sell of amount units at rate BTC per unit.
func (e *Engine) AutoSellAtRate(ctx context.Context, asset string, amount, rate decimal.Decimal) (domain.TradeResult, error) {
	return e.trade(ctx, domain.TradeOrder{Asset: asset, Side: domain.SideSell, Amount: amount, Mode: domain.RateModeLimit, Rate: rate})
}

// AutoBuyAll spends the whole BTC balance on asset at market.
func (e *Engine) AutoBuyAll(ctx context.Context, asset string) (domain.TradeResult, error) {
	asset = domain.NormalizeSymbol(asset)
	snap := e.store.Snapshot()

	btc, err := spendable(snap)
	if err != nil {
		return domain.TradeResult{}, err
	}
	if !btc.IsPositive() {
		return domain.TradeResult{}, errors.Wrapf(domain.ErrInsufficientBalance, "no %s to buy %s", settlementAsset(snap), asset)
	}
	price, err := snap.Converter().BTCPrice(asset)
	if err != nil {
		return domain.TradeResult{}, err
	}
	if !price.IsPositive() {
		return domain.TradeResult{}, errors.Wrapf(domain.ErrDivisionByZero, "%s is priced at zero", asset)
	}

	return e.tradeOn(ctx, snap, domain.TradeOrder{
		Asset:  asset,
		Side:   domain.SideBuy,
		Amount: btc.Div(price).Truncate(amountPrecision),
		Mode:   domain.RateModeMarket,
	})
}

// AutoSellAll sells the whole balance of asset at market.
func (e *Engine) AutoSellAll(ctx context.Context, asset string) (domain.TradeResult, error) {
	asset = domain.NormalizeSymbol(asset)
	snap := e.store.Snapshot()

	amount := snap.Balances[asset]
	if !amount.IsPositive() {
		return domain.TradeResult{}, errors.Wrapf(domain.ErrInsufficientBalance, "no %s to sell", asset)
	}

	return e.tradeOn(ctx, snap, domain.TradeOrder{Asset: asset, Side: domain.SideSell, Amount: amount, Mode: domain.RateModeMarket})
}

func (e *Engine) trade(ctx context.Context, order domain.TradeOrder) (domain.TradeResult, error) {
	order.Asset = domain.NormalizeSymbol(order.Asset)
	return e.tradeOn(ctx, e.store.Snapshot(), order)
}

// tradeOn validates a manual order against the snapshot balances and executes it.
func (e *Engine) tradeOn(ctx context.Context, snap portfolio.Snapshot, order domain.TradeOrder) (domain.TradeResult, error) {
	if !domain.IsTradable(order.Asset) {
		return domain.TradeResult{}, errors.Errorf("%q cannot be traded against %s", order.Asset, domain.BTC)
	}
	if !order.Amount.IsPositive() {
		return domain.TradeResult{}, errors.Wrapf(domain.ErrInvalidAmount, "%s amount %s", order.Side.String(), order.Amount.String())
	}
	if order.Mode == domain.RateModeLimit && !order.Rate.IsPositive() {
		return domain.TradeResult{}, errors.Wrapf(domain.ErrInvalidAmount, "limit rate %s", order.Rate.String())
	}

	if err := checkBalance(snap, order); err != nil {
		return domain.TradeResult{}, err
	}

	return e.execute(ctx, snap, StrategyManual, order)
}

// checkBalance makes sure the order can be paid for: a sell needs the asset,
// a buy needs amount*rate BTC worth of the settlement asset, with the market
// price standing in for the rate.
func checkBalance(snap portfolio.Snapshot, order domain.TradeOrder) error {
	switch order.Side {
	case domain.SideSell:
		have := snap.Balances[order.Asset]
		if have.LessThan(order.Amount) {
			return errors.Wrapf(domain.ErrInsufficientBalance, "have %s %s, need %s",
				have.String(), order.Asset, order.Amount.String())
		}
	case domain.SideBuy:
		rate := order.Rate
		if order.Mode == domain.RateModeMarket {
			price, err := snap.Converter().BTCPrice(order.Asset)
			if err != nil {
				return err
			}
			rate = price
		}
		cost := order.Amount.Mul(rate)
		have, err := spendable(snap)
		if err != nil {
			return err
		}
		if have.LessThan(cost) {
			return errors.Wrapf(domain.ErrInsufficientBalance, "have %s BTC worth of %s, need %s",
				have.String(), settlementAsset(snap), cost.String())
		}
	default:
		return errors.Errorf("unknown order side %d", order.Side)
	}
	return nil
}
