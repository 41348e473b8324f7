package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCheckpoint_Percent(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		current string
		want    string
	}{
		{"gain", "100", "120", "20"},
		{"loss", "100", "97", "-3"},
		{"flat", "0.001", "0.001", "0"},
		{"zero baseline", "0", "5", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := NewCheckpoint("ETH", decimal.RequireFromString(tt.initial), decimal.RequireFromString(tt.current))
			assert.True(t, cp.Percent.Equal(decimal.RequireFromString(tt.want)), "got %s", cp.Percent)
		})
	}
}

func TestCheckpoint_WithCurrentAndRebase(t *testing.T) {
	cp := NewCheckpoint("ETH", decimal.NewFromInt(100), decimal.NewFromInt(100))

	moved := cp.WithCurrent(decimal.NewFromInt(150))
	assert.True(t, moved.InitialPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, moved.Percent.Equal(decimal.NewFromInt(50)))

	rebased := moved.Rebase(decimal.NewFromInt(150))
	assert.True(t, rebased.InitialPrice.Equal(decimal.NewFromInt(150)))
	assert.True(t, rebased.Percent.IsZero())
	assert.Equal(t, "ETH 150 -> 150 (0.00%)", rebased.String())
}

func TestParseCheckpointBasis(t *testing.T) {
	b, err := ParseCheckpointBasis("")
	require.NoError(t, err)
	assert.Equal(t, CheckpointBasisFiat, b)

	b, err = ParseCheckpointBasis("btc")
	require.NoError(t, err)
	assert.Equal(t, CheckpointBasisBTC, b)

	_, err = ParseCheckpointBasis("eth")
	assert.Error(t, err)
}

func TestInvestmentRate(t *testing.T) {
	current := Ratings{"A": decimal.RequireFromString("0.6"), "B": decimal.RequireFromString("0.4")}
	initial := Ratings{"A": decimal.RequireFromString("0.5"), "C": decimal.Zero}

	rate, ok := InvestmentRate(current, initial, "A")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(120)), "got %s", rate)

	_, ok = InvestmentRate(current, initial, "B")
	assert.False(t, ok, "no target weight")

	_, ok = InvestmentRate(current, initial, "C")
	assert.False(t, ok, "zero target weight")
}
