package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/calculator/internal/domain"
)

func TestEngine_SellByInvestorsThreshold(t *testing.T) {
	// A holds 60% of the portfolio against a 50% target: investment rate 120
	tests := []struct {
		name   string
		wanted string
		sells  bool
	}{
		{"rate above threshold", "110", true},
		{"rate below threshold", "130", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, store, gw := newFixture(t,
				domain.Balances{"A": d("60"), "BTC": d("40")},
				map[string]string{"A": "1"})
			require.NoError(t, store.SetInitialRatings(domain.Ratings{"A": d("0.5")}))

			if tt.sells {
				gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(o domain.TradeOrder) bool {
					return o.Asset == "A" && o.Side == domain.SideSell && o.Amount.Equal(d("60"))
				})).Return(domain.OrderFill{OrderRef: "1", FilledAmount: d("60"), FilledRate: d("1")}, nil).Once()
			}

			report, err := e.SellByInvestors(context.Background(), d(tt.wanted))
			require.NoError(t, err)
			assert.Empty(t, report.Failures)

			if tt.sells {
				require.Len(t, report.Results, 1)
				assert.True(t, store.Balance("A").IsZero())
				assert.True(t, store.Balance("BTC").Equal(d("100")))
			} else {
				assert.Empty(t, report.Results)
				assert.True(t, store.Balance("A").Equal(d("60")))
			}
		})
	}
}

func TestEngine_BatchContinuesAfterFailure(t *testing.T) {
	e, store, gw := newFixture(t,
		domain.Balances{"A": d("30"), "B": d("30"), "BTC": d("40")},
		map[string]string{"A": "1", "B": "1"})
	require.NoError(t, store.SetInitialRatings(domain.Ratings{"A": d("0.2"), "B": d("0.2")}))

	gw.On("PlaceOrder", mock.Anything, orderOf("A", domain.SideSell)).
		Return(domain.OrderFill{}, errors.New("market closed")).Once()
	gw.On("PlaceOrder", mock.Anything, orderOf("B", domain.SideSell)).
		Return(domain.OrderFill{OrderRef: "b", FilledAmount: d("30"), FilledRate: d("1")}, nil).Once()

	report, err := e.SellByInvestors(context.Background(), d("110"))
	require.NoError(t, err)
	assert.Equal(t, StrategySellInvestors, report.Strategy)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "A", report.Failures[0].Asset)
	assert.ErrorIs(t, report.Failures[0], domain.ErrExchangeRejected)

	require.Len(t, report.Results, 1)
	assert.Equal(t, "B", report.Results[0].Asset)
	assert.True(t, store.Balance("A").Equal(d("30")))
	assert.True(t, store.Balance("B").IsZero())
}

func TestEngine_SellWithProfitInFiat(t *testing.T) {
	// XYZ = 100 EUR at the checkpoint
	e, store, gw := newFixture(t,
		domain.Balances{"XYZ": d("10"), "ABC": d("5"), "BTC": d("1")},
		map[string]string{"XYZ": "0.002", "ABC": "0.001"})
	_, err := store.Checkpoints().Update("XYZ", false)
	require.NoError(t, err)

	// XYZ = 120 EUR, a gain of 200 EUR on 10 units
	store.ReplaceTicker(tickerWith(map[string]string{"XYZ": "0.0024", "ABC": "0.001"}))
	ctx := context.Background()

	report, err := e.SellWithProfitInFiat(ctx, d("250"))
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "ABC", report.Skipped[0].Asset)
	assert.ErrorIs(t, report.Skipped[0], domain.ErrCheckpointNotFound)

	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(o domain.TradeOrder) bool {
		return o.Asset == "XYZ" && o.Side == domain.SideSell && o.Amount.Equal(d("1.66666666"))
	})).Return(domain.OrderFill{OrderRef: "p", FilledAmount: d("1.66666666"), FilledRate: d("0.0024")}, nil).Once()

	report, err = e.SellWithProfitInFiat(ctx, d("150"))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.True(t, store.Balance("XYZ").Equal(d("8.33333334")))

	cp, err := store.Checkpoints().Get("XYZ")
	require.NoError(t, err)
	assert.True(t, cp.InitialPrice.Equal(d("120")), "got %s", cp.InitialPrice)
	assert.True(t, cp.Percent.IsZero())

	_, err = e.SellWithProfitInFiat(ctx, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestEngine_BuyByInvestorsScalesToBalance(t *testing.T) {
	// each asset holds a third of the portfolio against a 60% target
	e, store, gw := newFixture(t,
		domain.Balances{"A": d("10"), "B": d("10"), "BTC": d("0.1")},
		map[string]string{"A": "0.01", "B": "0.01"})
	require.NoError(t, store.SetInitialRatings(domain.Ratings{"A": d("0.6"), "B": d("0.6")}))

	f := &fillAt{rate: d("0.01")}
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(f.place)

	report, err := e.BuyByInvestors(context.Background(), d("100"))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	require.Len(t, f.orders, 2)

	// deficits of 8 units each cost 0.16 BTC, scaled to the 0.1 BTC held
	for _, o := range f.orders {
		assert.Equal(t, domain.SideBuy, o.Side)
		assert.True(t, o.Amount.Equal(d("5")), "%s got %s", o.Asset, o.Amount)
	}
	assert.False(t, store.Balance("BTC").IsNegative())
	assert.True(t, store.Balance("A").Equal(d("15")))
}

func TestEngine_BuyWithProfitInPercent(t *testing.T) {
	e, store, gw := newFixture(t,
		domain.Balances{"A": d("10"), "B": d("10"), "BTC": d("0.1")},
		map[string]string{"A": "0.01", "B": "0.01"})
	require.NoError(t, store.SetInitialRatings(domain.Ratings{"A": d("0.5"), "B": d("0.5")}))
	for _, asset := range []string{"A", "B"} {
		_, err := store.Checkpoints().Update(asset, false)
		require.NoError(t, err)
	}

	// A drops 10%, B is flat
	store.ReplaceTicker(tickerWith(map[string]string{"A": "0.009", "B": "0.01"}))

	f := &fillAt{rate: d("0.009")}
	gw.On("PlaceOrder", mock.Anything, orderOf("A", domain.SideBuy)).Return(f.place).Once()

	report, err := e.BuyWithProfitInPercent(context.Background(), d("5"), d("100"))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Len(t, f.orders, 1)

	amount := f.orders[0].Amount
	assert.True(t, amount.GreaterThan(d("6.1")) && amount.LessThan(d("6.12")), "got %s", amount)
	assert.True(t, amount.Mul(d("0.009")).LessThanOrEqual(d("0.1")))
}

func TestEngine_BuyTheBestAndWorst(t *testing.T) {
	setup := func(t *testing.T) (*Engine, *fillAt) {
		e, store, gw := newFixture(t,
			domain.Balances{"BTC": d("1")},
			map[string]string{"A": "0.001", "B": "0.001", "C": "0.001"},
			WithSpendPercent(d("50")))
		for _, asset := range []string{"C", "B", "A"} {
			_, err := store.Checkpoints().Update(asset, false)
			require.NoError(t, err)
		}
		// A +5%, B -3%, C +5%
		store.ReplaceTicker(tickerWith(map[string]string{"A": "0.00105", "B": "0.00097", "C": "0.00105"}))

		f := &fillAt{rate: d("0.001")}
		gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(f.place).Once()
		return e, f
	}

	t.Run("best breaks the tie by symbol", func(t *testing.T) {
		e, f := setup(t)
		report, err := e.BuyTheBest(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Results, 1)
		assert.Equal(t, "A", f.orders[0].Asset)
		assert.True(t, f.orders[0].Amount.Equal(d("476.19047619")), "got %s", f.orders[0].Amount)
	})

	t.Run("worst", func(t *testing.T) {
		e, f := setup(t)
		report, err := e.BuyTheWorst(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Results, 1)
		assert.Equal(t, "B", f.orders[0].Asset)
	})
}

func TestEngine_BuyRankedErrors(t *testing.T) {
	e, store, _ := newFixture(t, domain.Balances{}, map[string]string{"A": "0.001"})

	_, err := e.BuyTheBest(context.Background())
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	_, err = store.Checkpoints().Update("A", false)
	require.NoError(t, err)

	_, err = e.BuyTheWorst(context.Background())
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestRankCheckpoints(t *testing.T) {
	cps := map[string]domain.Checkpoint{
		"C":   domain.NewCheckpoint("C", d("100"), d("105")),
		"A":   domain.NewCheckpoint("A", d("100"), d("105")),
		"B":   domain.NewCheckpoint("B", d("100"), d("97")),
		"BTC": domain.NewCheckpoint("BTC", d("100"), d("200")),
		"EUR": domain.NewCheckpoint("EUR", d("1"), d("1")),
	}

	symbols := func(in []domain.Checkpoint) []string {
		out := make([]string, 0, len(in))
		for _, cp := range in {
			out = append(out, cp.Asset)
		}
		return out
	}

	assert.Equal(t, []string{"A", "C", "B"}, symbols(RankCheckpoints(cps, true)))
	assert.Equal(t, []string{"B", "A", "C"}, symbols(RankCheckpoints(cps, false)))
}
