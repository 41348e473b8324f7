package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/portfolio"
	"github.com/vadiminshakov/calculator/internal/storage/journal"
	gatewayMock "github.com/vadiminshakov/calculator/mocks/gateway"
	"github.com/vadiminshakov/calculator/pkg/retrier"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// one BTC = 50000 EUR
func tickerWith(quotes map[string]string) domain.Ticker {
	t := domain.Ticker{
		domain.EUR: {Asset: domain.EUR, Price: d("0.00002")},
		domain.USD: {Asset: domain.USD, Price: d("0.000025")},
	}
	for asset, price := range quotes {
		t[asset] = domain.TickerQuote{Asset: asset, Price: d(price)}
	}
	return t
}

func newFixture(t *testing.T, balances domain.Balances, quotes map[string]string, opts ...Option) (*Engine, *portfolio.Store, *gatewayMock.Gateway) {
	gw := gatewayMock.NewGateway(t)
	store, err := portfolio.NewStore(
		portfolio.WithRetrier(retrier.New(retrier.WithMaxRetries(0))),
		portfolio.WithGatewayFactory(func(string) (portfolio.Gateway, error) { return gw, nil }),
	)
	require.NoError(t, err)
	require.NoError(t, store.Exchange(context.Background(), "test", false))
	store.ReplaceTicker(tickerWith(quotes))
	require.NoError(t, store.UpdateBalances(balances))

	e, err := NewEngine(store, opts...)
	require.NoError(t, err)
	return e, store, gw
}

func orderOf(asset string, side domain.Side) interface{} {
	return mock.MatchedBy(func(o domain.TradeOrder) bool {
		return o.Asset == asset && o.Side == side
	})
}

// fillAt fills every order in full at rate and remembers it.
type fillAt struct {
	mu     sync.Mutex
	rate   decimal.Decimal
	orders []domain.TradeOrder
}

func (f *fillAt) place(_ context.Context, o domain.TradeOrder) (domain.OrderFill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, o)
	return domain.OrderFill{OrderRef: o.ID, FilledAmount: o.Amount, FilledRate: f.rate}, nil
}

type staticConfirmer bool

func (c staticConfirmer) Confirm(context.Context, domain.TradeOrder) (bool, error) {
	return bool(c), nil
}

type memJournal struct {
	entries []journal.TradeEntry
}

func (j *memJournal) RecordTrade(entry journal.TradeEntry) error {
	j.entries = append(j.entries, entry)
	return nil
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)

	store, err := portfolio.NewStore()
	require.NoError(t, err)

	for _, p := range []string{"0", "-5", "100.5"} {
		_, err = NewEngine(store, WithSpendPercent(d(p)))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, p)
	}

	_, err = NewEngine(store, WithSpendPercent(d("25")))
	assert.NoError(t, err)
}

func TestEngine_AutoBuyAndSell(t *testing.T) {
	rec := &memJournal{}
	e, store, gw := newFixture(t,
		domain.Balances{"BTC": d("1"), "ETH": d("2")},
		map[string]string{"ETH": "0.05"},
		WithJournal(rec))
	ctx := context.Background()

	gw.On("PlaceOrder", mock.Anything, orderOf("ETH", domain.SideBuy)).
		Return(domain.OrderFill{OrderRef: "b-1", FilledAmount: d("4"), FilledRate: d("0.05")}, nil).Once()

	res, err := e.AutoBuy(ctx, "eth", d("4"))
	require.NoError(t, err)
	assert.Equal(t, "b-1", res.OrderRef)
	assert.Equal(t, "ETH", res.Asset)
	assert.Contains(t, res.Message(), "Bought 4 ETH")
	assert.True(t, store.Balance("ETH").Equal(d("6")))
	assert.True(t, store.Balance("BTC").Equal(d("0.8")), "got %s", store.Balance("BTC"))

	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(o domain.TradeOrder) bool {
		return o.Side == domain.SideSell && o.Mode == domain.RateModeLimit && o.Rate.Equal(d("0.06")) && o.ID != ""
	})).Return(domain.OrderFill{OrderRef: "s-1", FilledAmount: d("6"), FilledRate: d("0.06")}, nil).Once()

	_, err = e.AutoSellAtRate(ctx, "ETH", d("6"), d("0.06"))
	require.NoError(t, err)
	assert.True(t, store.Balance("ETH").IsZero())
	assert.True(t, store.Balance("BTC").Equal(d("1.16")), "got %s", store.Balance("BTC"))

	cp, err := store.Checkpoints().Get("ETH")
	require.NoError(t, err)
	assert.True(t, cp.InitialPrice.Equal(d("3000")), "checkpoint re-based to the fill rate, got %s", cp.InitialPrice)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, StrategyManual, rec.entries[0].Strategy)
	assert.Equal(t, "test", rec.entries[1].Exchange)
}

func TestEngine_AutoAll(t *testing.T) {
	e, store, gw := newFixture(t,
		domain.Balances{"BTC": d("0.5"), "ETH": d("3")},
		map[string]string{"ETH": "0.03"})
	ctx := context.Background()

	f := &fillAt{rate: d("0.03")}
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(f.place)

	_, err := e.AutoSellAll(ctx, "ETH")
	require.NoError(t, err)
	require.Len(t, f.orders, 1)
	assert.True(t, f.orders[0].Amount.Equal(d("3")))
	assert.True(t, store.Balance("BTC").Equal(d("0.59")))

	_, err = e.AutoBuyAll(ctx, "ETH")
	require.NoError(t, err)
	require.Len(t, f.orders, 2)
	assert.True(t, f.orders[1].Amount.Equal(d("19.66666666")), "got %s", f.orders[1].Amount)
	assert.True(t, store.Balance("BTC").LessThan(d("0.000001")))

	_, err = e.AutoSellAll(ctx, "DOGE")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestEngine_ManualValidation(t *testing.T) {
	e, _, _ := newFixture(t,
		domain.Balances{"BTC": d("0.5"), "ETH": d("5")},
		map[string]string{"ETH": "0.01"})
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"sell more than held", func() error { _, err := e.AutoSell(ctx, "ETH", d("10")); return err }, domain.ErrInsufficientBalance},
		{"market buy over BTC balance", func() error { _, err := e.AutoBuy(ctx, "ETH", d("100")); return err }, domain.ErrInsufficientBalance},
		{"limit buy over BTC balance", func() error { _, err := e.AutoBuyAtRate(ctx, "ETH", d("10"), d("0.06")); return err }, domain.ErrInsufficientBalance},
		{"zero amount", func() error { _, err := e.AutoBuy(ctx, "ETH", decimal.Zero); return err }, domain.ErrInvalidAmount},
		{"negative rate", func() error { _, err := e.AutoSellAtRate(ctx, "ETH", d("1"), d("-1")); return err }, domain.ErrInvalidAmount},
		{"unknown quote", func() error { _, err := e.AutoBuy(ctx, "XRP", d("1")); return err }, domain.ErrQuoteNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}

	_, err := e.AutoBuy(ctx, "BTC", d("1"))
	assert.Error(t, err, "BTC cannot be bought with BTC")
}

func TestEngine_RejectionPassedThrough(t *testing.T) {
	e, store, gw := newFixture(t,
		domain.Balances{"BTC": d("1")},
		map[string]string{"ETH": "0.05"})

	gw.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(domain.OrderFill{}, errors.New("Filter failure: LOT_SIZE")).Once()

	_, err := e.AutoBuy(context.Background(), "ETH", d("1"))
	require.ErrorIs(t, err, domain.ErrExchangeRejected)

	var rej *domain.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "Filter failure: LOT_SIZE", rej.Reason)
	assert.Equal(t, "test", rej.Exchange)
	assert.True(t, store.Balance("BTC").Equal(d("1")), "a rejected order leaves balances untouched")
}

func TestEngine_Confirmation(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		e, _, _ := newFixture(t,
			domain.Balances{"BTC": d("1")},
			map[string]string{"ETH": "0.05"},
			WithConfirmer(staticConfirmer(false)))

		_, err := e.AutoBuy(context.Background(), "ETH", d("1"))
		assert.ErrorIs(t, err, domain.ErrOrderDeclined)
	})

	t.Run("approved", func(t *testing.T) {
		e, _, gw := newFixture(t,
			domain.Balances{"BTC": d("1")},
			map[string]string{"ETH": "0.05"},
			WithConfirmer(staticConfirmer(true)))
		gw.On("PlaceOrder", mock.Anything, mock.Anything).Return((&fillAt{rate: d("0.05")}).place)

		_, err := e.AutoBuy(context.Background(), "ETH", d("1"))
		assert.NoError(t, err)
	})
}

func TestEngine_NoExchange(t *testing.T) {
	store, err := portfolio.NewStore()
	require.NoError(t, err)
	store.ReplaceTicker(tickerWith(map[string]string{"ETH": "0.05"}))
	require.NoError(t, store.UpdateBalance("BTC", d("1")))

	e, err := NewEngine(store)
	require.NoError(t, err)

	_, err = e.AutoBuy(context.Background(), "ETH", d("1"))
	assert.ErrorIs(t, err, domain.ErrNoExchange)
}

func TestEngine_FillAfterResetIsDropped(t *testing.T) {
	e, store, gw := newFixture(t, domain.Balances{"BTC": d("1")}, map[string]string{"ETH": "0.05"})

	placed := make(chan struct{})
	release := make(chan struct{})
	gw.On("PlaceOrder", mock.Anything, orderOf("ETH", domain.SideBuy)).
		Run(func(mock.Arguments) {
			close(placed)
			<-release
		}).
		Return(domain.OrderFill{OrderRef: "late", FilledAmount: d("2"), FilledRate: d("0.05")}, nil).Once()

	errc := make(chan error, 1)
	go func() {
		_, err := e.AutoBuy(context.Background(), "ETH", d("2"))
		errc <- err
	}()

	<-placed
	store.Reset()
	close(release)

	err := <-errc
	require.ErrorIs(t, err, domain.ErrStaleState)
	assert.Empty(t, store.Balances())
	assert.Empty(t, store.Checkpoints().Changes())
	assert.Empty(t, store.DefaultExchange())
}

func TestEngine_GatewayCalledWithoutStoreLock(t *testing.T) {
	e, store, gw := newFixture(t, domain.Balances{"BTC": d("1")}, map[string]string{"ETH": "0.05"})

	gw.On("PlaceOrder", mock.Anything, orderOf("ETH", domain.SideBuy)).
		Run(func(mock.Arguments) {
			// both would block forever if the order were placed under the store lock
			_ = store.Snapshot()
			assert.NoError(t, store.UpdateBalance("XRP", d("7")))
		}).
		Return(domain.OrderFill{OrderRef: "1", FilledAmount: d("2"), FilledRate: d("0.05")}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := e.AutoBuy(context.Background(), "ETH", d("2"))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("order placement blocked on the store lock")
	}
	assert.True(t, store.Balance("XRP").Equal(d("7")))
	assert.True(t, store.Balance("ETH").Equal(d("2")))
}

// usdSettled settles orders in USD like the Hyperliquid gateway.
type usdSettled struct {
	*gatewayMock.Gateway
}

func (usdSettled) QuoteAsset() string { return domain.USD }

func TestEngine_SettlesInGatewayQuote(t *testing.T) {
	gw := usdSettled{gatewayMock.NewGateway(t)}
	store, err := portfolio.NewStore(
		portfolio.WithRetrier(retrier.New(retrier.WithMaxRetries(0))),
		portfolio.WithGatewayFactory(func(string) (portfolio.Gateway, error) { return gw, nil }),
	)
	require.NoError(t, err)
	require.NoError(t, store.Exchange(context.Background(), "hyperliquid", false))
	// ETH = 0.05 BTC = 2000 USD
	store.ReplaceTicker(tickerWith(map[string]string{"ETH": "0.05"}))
	require.NoError(t, store.UpdateBalances(domain.Balances{domain.USD: d("5000")}))

	e, err := NewEngine(store)
	require.NoError(t, err)
	ctx := context.Background()

	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(o domain.TradeOrder) bool {
		return o.Asset == "ETH" && o.Quote == domain.USD && o.Side == domain.SideBuy
	})).Return(domain.OrderFill{OrderRef: "hl-1", FilledAmount: d("2"), FilledRate: d("0.05")}, nil).Once()

	_, err = e.AutoBuy(ctx, "ETH", d("2"))
	require.NoError(t, err)
	assert.True(t, store.Balance("ETH").Equal(d("2")))
	assert.True(t, store.Balance(domain.USD).Equal(d("1000")), "got %s", store.Balance(domain.USD))
	assert.True(t, store.Balance(domain.BTC).IsZero())

	_, err = e.AutoBuy(ctx, "ETH", d("1"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance, "1000 USD cannot pay 2000")
}
