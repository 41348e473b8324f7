package strategy

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/portfolio"
	"github.com/vadiminshakov/calculator/internal/services/pricer"
)

var errNoTargetWeight = errors.New("no target allocation weight")

// SellWithProfitInFiat sells the gain of every asset whose value grew by at
// least wanted (in the primary fiat) since its checkpoint. Only the gain
// portion is sold, gain / current fiat price units, and the fill re-bases the
// checkpoint.
func (e *Engine) SellWithProfitInFiat(ctx context.Context, wanted decimal.Decimal) (Report, error) {
	if !wanted.IsPositive() {
		return Report{}, errors.Wrapf(domain.ErrInvalidAmount, "wanted profit %s", wanted.String())
	}

	snap := e.store.Snapshot()
	conv := snap.Converter()
	report := Report{Strategy: StrategySellProfit}

	for _, asset := range tradableAssets(snap.Balances) {
		balance := snap.Balances[asset]
		if !balance.IsPositive() {
			continue
		}

		cp, ok := snap.Checkpoints[asset]
		if !ok {
			report.skip(asset, errors.Wrapf(domain.ErrCheckpointNotFound, "asset %s", asset))
			continue
		}

		current, err := conv.FiatPrice(asset)
		if err != nil {
			report.skip(asset, err)
			continue
		}
		initial := cp.InitialPrice
		if snap.Basis == domain.CheckpointBasisBTC {
			if initial, err = conv.BTC2Fiat(initial); err != nil {
				report.skip(asset, err)
				continue
			}
		}

		gain := balance.Mul(current.Sub(initial))
		if gain.LessThan(wanted) || !current.IsPositive() {
			continue
		}

		amount := decimal.Min(gain.Div(current).Truncate(amountPrecision), balance)
		e.l.Info("profit target reached",
			zap.String("asset", asset),
			zap.String("gain", gain.String()),
			zap.String("currency", snap.Fiat.Primary()),
			zap.String("sell", amount.String()))

		e.run(ctx, snap, &report, marketOrder(asset, domain.SideSell, amount))
	}

	return report, nil
}

// SellByInvestors sells the whole balance of every asset whose investment
// rate, current weight over target weight in percent, reached wantedPercent.
func (e *Engine) SellByInvestors(ctx context.Context, wantedPercent decimal.Decimal) (Report, error) {
	report := Report{Strategy: StrategySellInvestors}
	snap, err := e.ratedSnapshot(&report)
	if err != nil {
		return report, err
	}

	for _, asset := range tradableAssets(snap.Balances) {
		balance := snap.Balances[asset]
		if !balance.IsPositive() {
			continue
		}

		rate, ok := domain.InvestmentRate(snap.CurrentRatings, snap.InitialRatings, asset)
		if !ok {
			if _, rated := snap.CurrentRatings[asset]; rated {
				report.skip(asset, errNoTargetWeight)
			}
			continue
		}
		if rate.LessThan(wantedPercent) {
			continue
		}

		e.l.Info("investment rate above threshold",
			zap.String("asset", asset),
			zap.String("rate", rate.StringFixed(2)),
			zap.String("wanted", wantedPercent.String()))

		e.run(ctx, snap, &report, marketOrder(asset, domain.SideSell, balance))
	}

	return report, nil
}

// BuyWithProfitInPercent buys the dip: assets that fell at least
// wantedPercent since their checkpoint and are under-weight (investment rate
// below wantedRate) are topped up toward their target weight. The purchases
// share the BTC balance in ascending symbol order.
func (e *Engine) BuyWithProfitInPercent(ctx context.Context, wantedPercent, wantedRate decimal.Decimal) (Report, error) {
	report := Report{Strategy: StrategyBuyDip}
	snap, err := e.ratedSnapshot(&report)
	if err != nil {
		return report, err
	}

	conv := snap.Converter()
	total, err := conv.Valuate(snap.Balances, snap.Fiat.Primary())
	if err != nil {
		return report, errors.Wrap(err, "buy dip")
	}

	budget, err := spendable(snap)
	if err != nil {
		return report, errors.Wrap(err, "buy dip")
	}
	threshold := wantedPercent.Abs().Neg()

	for _, asset := range tradableAssets(snap.InitialRatings) {
		cp, ok := snap.Checkpoints[asset]
		if !ok {
			report.skip(asset, errors.Wrapf(domain.ErrCheckpointNotFound, "asset %s", asset))
			continue
		}
		if cp.Percent.GreaterThan(threshold) {
			continue
		}
		rate, ok := targetRate(snap, asset)
		if !ok || !rate.LessThan(wantedRate) {
			continue
		}

		c, err := deficit(conv, snap, total.Total, asset)
		if err != nil {
			report.skip(asset, err)
			continue
		}
		if !c.amount.IsPositive() {
			continue
		}

		if c.cost.GreaterThan(budget) {
			if !budget.IsPositive() {
				report.fail(asset, errors.Wrapf(domain.ErrInsufficientBalance, "no BTC left to buy %s", asset))
				continue
			}
			c.amount = budget.Div(c.price).Truncate(amountPrecision)
			c.cost = c.amount.Mul(c.price)
		}
		budget = budget.Sub(c.cost)

		e.run(ctx, snap, &report, marketOrder(asset, domain.SideBuy, c.amount))
	}

	return report, nil
}

// BuyByInvestors tops up every asset whose investment rate is below
// wantedRate to its target weight. When the BTC balance cannot cover every
// deficit, all purchases are scaled down by the same factor.
func (e *Engine) BuyByInvestors(ctx context.Context, wantedRate decimal.Decimal) (Report, error) {
	report := Report{Strategy: StrategyBuyInvestors}
	snap, err := e.ratedSnapshot(&report)
	if err != nil {
		return report, err
	}

	conv := snap.Converter()
	total, err := conv.Valuate(snap.Balances, snap.Fiat.Primary())
	if err != nil {
		return report, errors.Wrap(err, "buy by investors")
	}

	var (
		candidates []purchase
		totalCost  decimal.Decimal
	)
	for _, asset := range tradableAssets(snap.InitialRatings) {
		rate, ok := targetRate(snap, asset)
		if !ok || !rate.LessThan(wantedRate) {
			continue
		}
		c, err := deficit(conv, snap, total.Total, asset)
		if err != nil {
			report.skip(asset, err)
			continue
		}
		if !c.amount.IsPositive() {
			continue
		}
		candidates = append(candidates, c)
		totalCost = totalCost.Add(c.cost)
	}

	budget, err := spendable(snap)
	if err != nil {
		return report, errors.Wrap(err, "buy by investors")
	}
	scale := decimal.NewFromInt(1)
	if totalCost.GreaterThan(budget) {
		scale = budget.Div(totalCost)
		e.l.Info("BTC balance covers part of the deficits",
			zap.String("balance", budget.String()),
			zap.String("needed", totalCost.String()),
			zap.String("scale", scale.String()))
	}

	for _, c := range candidates {
		amount := c.amount.Mul(scale).Truncate(amountPrecision)
		if !amount.IsPositive() {
			report.fail(c.asset, errors.Wrapf(domain.ErrInsufficientBalance, "no BTC left to buy %s", c.asset))
			continue
		}
		e.run(ctx, snap, &report, marketOrder(c.asset, domain.SideBuy, amount))
	}

	return report, nil
}

// BuyTheBest spends the configured share of the BTC balance on the asset
// with the highest checkpoint change.
func (e *Engine) BuyTheBest(ctx context.Context) (Report, error) {
	return e.buyRanked(ctx, StrategyBuyBest, true)
}

// BuyTheWorst spends the configured share of the BTC balance on the asset
// with the lowest checkpoint change.
func (e *Engine) BuyTheWorst(ctx context.Context) (Report, error) {
	return e.buyRanked(ctx, StrategyBuyWorst, false)
}

func (e *Engine) buyRanked(ctx context.Context, strategy string, best bool) (Report, error) {
	report := Report{Strategy: strategy}
	snap := e.store.Snapshot()

	ranked := RankCheckpoints(snap.Checkpoints, best)
	if len(ranked) == 0 {
		return report, errors.Wrap(domain.ErrCheckpointNotFound, "no tracked assets to rank")
	}

	available, err := spendable(snap)
	if err != nil {
		return report, err
	}
	budget := available.Mul(e.spendPercent).Div(hundred)
	if !budget.IsPositive() {
		return report, errors.Wrapf(domain.ErrInsufficientBalance, "no %s to spend", settlementAsset(snap))
	}

	conv := snap.Converter()
	for _, cp := range ranked {
		price, err := conv.BTCPrice(cp.Asset)
		if err != nil {
			report.skip(cp.Asset, err)
			continue
		}
		if !price.IsPositive() {
			report.skip(cp.Asset, errors.Wrapf(domain.ErrDivisionByZero, "%s is priced at zero", cp.Asset))
			continue
		}

		e.l.Info("asset selected",
			zap.String("strategy", strategy),
			zap.String("asset", cp.Asset),
			zap.String("percent", cp.Percent.StringFixed(2)))

		e.run(ctx, snap, &report, marketOrder(cp.Asset, domain.SideBuy, budget.Div(price).Truncate(amountPrecision)))
		break
	}

	return report, nil
}

// RankCheckpoints orders the altcoin checkpoints by percent change, highest
// first when best is set, lowest first otherwise. Ties go to the smaller symbol.
func RankCheckpoints(checkpoints map[string]domain.Checkpoint, best bool) []domain.Checkpoint {
	out := make([]domain.Checkpoint, 0, len(checkpoints))
	for _, asset := range tradableAssets(checkpoints) {
		out = append(out, checkpoints[asset])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percent.Equal(out[j].Percent) {
			return out[i].Asset < out[j].Asset
		}
		if best {
			return out[i].Percent.GreaterThan(out[j].Percent)
		}
		return out[i].Percent.LessThan(out[j].Percent)
	})
	return out
}

// run executes one order of a batch and files its outcome in the report.
func (e *Engine) run(ctx context.Context, snap portfolio.Snapshot, report *Report, order domain.TradeOrder) {
	result, err := e.execute(ctx, snap, report.Strategy, order)
	if err != nil {
		e.l.Warn("batch order failed",
			zap.String("strategy", report.Strategy),
			zap.String("asset", order.Asset),
			zap.Error(err))
		report.fail(order.Asset, err)
		return
	}
	report.Results = append(report.Results, result)
}

// ratedSnapshot refreshes the ratings and snapshots the store.
func (e *Engine) ratedSnapshot(report *Report) (portfolio.Snapshot, error) {
	skipped, err := e.store.UpdateRatings()
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	report.Skipped = append(report.Skipped, skipped...)
	return e.store.Snapshot(), nil
}

// targetRate is the investment rate with a missing current weight read as zero.
func targetRate(snap portfolio.Snapshot, asset string) (decimal.Decimal, bool) {
	initial := snap.InitialRatings[asset]
	if !initial.IsPositive() {
		return decimal.Zero, false
	}
	return snap.CurrentRatings[asset].Div(initial).Mul(hundred), true
}

type purchase struct {
	asset  string
	amount decimal.Decimal
	price  decimal.Decimal
	cost   decimal.Decimal
}

// deficit computes the purchase that brings asset back to its target weight
// of a portfolio worth total in the primary fiat.
func deficit(conv *pricer.Converter, snap portfolio.Snapshot, total decimal.Decimal, asset string) (purchase, error) {
	fiatPrice, err := conv.FiatPrice(asset)
	if err != nil {
		return purchase{}, err
	}
	price, err := conv.BTCPrice(asset)
	if err != nil {
		return purchase{}, err
	}
	if !fiatPrice.IsPositive() {
		return purchase{}, errors.Wrapf(domain.ErrDivisionByZero, "%s is priced at zero", asset)
	}

	weight := snap.InitialRatings[asset].Sub(snap.CurrentRatings[asset])
	amount := weight.Mul(total).Div(fiatPrice).Truncate(amountPrecision)
	return purchase{asset: asset, amount: amount, price: price, cost: amount.Mul(price)}, nil
}
