package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/calculator/internal/domain"
)

func TestWALStore_TradesAndRatings(t *testing.T) {
	dir := t.TempDir()
	s, err := NewWALStore(dir)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	trade := TradeEntry{
		Time:     now,
		Exchange: "simulate",
		Strategy: "buy-best",
		Result: domain.TradeResult{
			OrderRef:     "sim-1",
			Asset:        "ETH",
			Side:         domain.SideBuy,
			FilledAmount: decimal.NewFromInt(2),
			FilledRate:   decimal.RequireFromString("0.05"),
		},
	}
	require.NoError(t, s.RecordTrade(trade))
	require.NoError(t, s.RecordRatings(RatingsEntry{
		Time:     now,
		Currency: domain.EUR,
		Total:    decimal.NewFromInt(1000),
		Ratings:  domain.Ratings{"ETH": decimal.RequireFromString("0.4")},
	}))
	require.Error(t, s.RecordTrade(TradeEntry{}))

	assert.Equal(t, uint64(2), s.CurrentIndex())

	trades, err := s.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(1), trades[0].Index)
	assert.Equal(t, "sim-1", trades[0].Entry.Result.OrderRef)
	assert.True(t, trades[0].Entry.Result.FilledRate.Equal(decimal.RequireFromString("0.05")))

	ratings, err := s.RatingsAfter(0)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.True(t, ratings[0].Entry.Ratings["ETH"].Equal(decimal.RequireFromString("0.4")))

	trades, err = s.TradesAfter(1)
	require.NoError(t, err)
	assert.Empty(t, trades)

	require.NoError(t, s.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	trades, err = reopened.TradesAfter(0)
	require.NoError(t, err)
	assert.Len(t, trades, 1, "entries survive a reopen")
}

func TestWALStore_InterleavedEntries(t *testing.T) {
	s, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	trade := func(ref string) TradeEntry {
		return TradeEntry{Result: domain.TradeResult{OrderRef: ref, Asset: "ETH", FilledAmount: decimal.NewFromInt(1)}}
	}
	require.NoError(t, s.RecordTrade(trade("a")))
	require.NoError(t, s.RecordRatings(RatingsEntry{Currency: domain.USD, Total: decimal.NewFromInt(5)}))
	require.NoError(t, s.RecordTrade(trade("b")))

	trades, err := s.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(1), trades[0].Index)
	assert.Equal(t, uint64(3), trades[1].Index)
	assert.Equal(t, "b", trades[1].Entry.Result.OrderRef)

	ratings, err := s.RatingsAfter(1)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, uint64(2), ratings[0].Index)
	assert.Equal(t, domain.USD, ratings[0].Entry.Currency)

	ratings, err = s.RatingsAfter(2)
	require.NoError(t, err)
	assert.Empty(t, ratings)
}
