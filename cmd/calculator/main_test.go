package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/calculator/internal/services/strategy"
)

func TestStrategyFromArgs(t *testing.T) {
	sc, err := strategyFromArgs(strategy.StrategyBuyDip, []string{"5", "90"})
	require.NoError(t, err)
	assert.Equal(t, strategy.StrategyBuyDip, sc.Name)
	assert.True(t, sc.Percent.Equal(decimal.NewFromInt(5)))
	assert.True(t, sc.Rate.Equal(decimal.NewFromInt(90)))

	sc, err = strategyFromArgs(strategy.StrategySellProfit, []string{"250.5"})
	require.NoError(t, err)
	assert.True(t, sc.Amount.Equal(decimal.RequireFromString("250.5")))

	sc, err = strategyFromArgs(strategy.StrategyBuyBest, nil)
	require.NoError(t, err)
	assert.Equal(t, strategy.StrategyBuyBest, sc.Name)

	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{"unknown command", "hodl", nil},
		{"missing rate", strategy.StrategyBuyDip, []string{"5"}},
		{"extra argument", strategy.StrategyBuyWorst, []string{"1"}},
		{"not a number", strategy.StrategyBuyInvestors, []string{"ninety"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := strategyFromArgs(tt.cmd, tt.args)
			assert.Error(t, err)
		})
	}
}
