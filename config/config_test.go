package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/calculator/internal/domain"
)

const sampleYAML = `
exchange: Binance
fiat_currencies: [usd, gbp]
checkpoint_basis: btc
trading_with_confirmation: true
spend_percent: "25"
refresh_interval: 30s
log:
  level: debug
  file: ./logs/calculator.log
simulate:
  wallet:
    btc: "0.5"
    eth: "3"
  ticker:
    ETH: "0.05"
strategies:
  - name: Sell-Profit
    schedule: "0 */5 * * * *"
    amount: "100"
  - name: buy-dip
    schedule: "@every 1h"
    percent: "5"
    rate: "90"
`

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	conf, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "binance", conf.Exchange)
	assert.Equal(t, domain.FiatPair{"USD", "GBP"}, conf.FiatCurrencies)
	assert.Equal(t, domain.CheckpointBasisBTC, conf.CheckpointBasis)
	assert.True(t, conf.TradingWithConfirmation)
	assert.True(t, conf.SpendPercent.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 30*time.Second, conf.RefreshInterval)
	assert.Equal(t, defaultBalanceRefreshInterval, conf.BalanceRefreshInterval)
	assert.Equal(t, "debug", conf.Log.Level)
	assert.Equal(t, defaultLogMaxBackups, conf.Log.MaxBackups)
	assert.Equal(t, defaultSettingsPath, conf.SettingsPath)

	assert.True(t, conf.Simulate.Wallet["BTC"].Equal(decimal.RequireFromString("0.5")))
	eth, ok := conf.Simulate.Ticker.Quote("ETH")
	require.True(t, ok)
	assert.True(t, eth.Price.Equal(decimal.RequireFromString("0.05")))

	require.Len(t, conf.Strategies, 2)
	assert.Equal(t, "sell-profit", conf.Strategies[0].Name)
	assert.True(t, conf.Strategies[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, conf.Strategies[1].Rate.Equal(decimal.NewFromInt(90)))
}

func TestLoad_Defaults(t *testing.T) {
	conf, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Exchange, conf.Exchange)
	assert.Equal(t, domain.DefaultFiatPair, conf.FiatCurrencies)
	assert.Equal(t, domain.CheckpointBasisFiat, conf.CheckpointBasis)
	assert.True(t, conf.SpendPercent.Equal(decimal.NewFromInt(100)))
	assert.True(t, conf.Simulate.Wallet[domain.BTC].Equal(decimal.NewFromInt(1)))
	assert.Empty(t, conf.Strategies)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		tmp  ConfigTmp
	}{
		{"one fiat", ConfigTmp{FiatCurrencies: []string{"EUR"}}},
		{"unsupported fiat", ConfigTmp{FiatCurrencies: []string{"EUR", "RUB"}}},
		{"same fiat twice", ConfigTmp{FiatCurrencies: []string{"EUR", "eur"}}},
		{"unknown basis", ConfigTmp{CheckpointBasis: "eth"}},
		{"spend not a number", ConfigTmp{SpendPercent: "half"}},
		{"spend over 100", ConfigTmp{SpendPercent: "150"}},
		{"negative interval", ConfigTmp{RefreshInterval: -time.Second}},
		{"negative wallet", ConfigTmp{Simulate: SimulateConfigTmp{Wallet: map[string]string{"BTC": "-1"}}}},
		{"zero ticker price", ConfigTmp{Simulate: SimulateConfigTmp{Ticker: map[string]string{"ETH": "0"}}}},
		{"strategy without schedule", ConfigTmp{Strategies: []StrategyTmp{{Name: "buy-best"}}}},
		{"strategy without name", ConfigTmp{Strategies: []StrategyTmp{{Schedule: "@hourly"}}}},
		{"strategy bad rate", ConfigTmp{Strategies: []StrategyTmp{{Name: "buy-dip", Schedule: "@hourly", Rate: "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.tmp)
			assert.Error(t, err)
		})
	}
}

func TestConfig_TmpRoundTrip(t *testing.T) {
	conf, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	data, err := yaml.Marshal(conf.Tmp())
	require.NoError(t, err)

	again, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, conf.Exchange, again.Exchange)
	assert.Equal(t, conf.FiatCurrencies, again.FiatCurrencies)
	assert.Equal(t, conf.RefreshInterval, again.RefreshInterval)
	assert.True(t, conf.SpendPercent.Equal(again.SpendPercent))
	require.Len(t, again.Strategies, 2)
	assert.True(t, again.Strategies[1].Percent.Equal(decimal.NewFromInt(5)))
}

func TestGet(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	conf, rest, err := Get(flag.NewFlagSet("test", flag.ContinueOnError),
		[]string{"--config", path, "--exchange", "Simulate", "--fiat", "jpy,eur", "buy", "ETH", "1"})
	require.NoError(t, err)
	assert.Equal(t, "simulate", conf.Exchange)
	assert.Equal(t, domain.FiatPair{"JPY", "EUR"}, conf.FiatCurrencies)
	assert.True(t, conf.TradingWithConfirmation, "kept from the file")
	assert.Equal(t, []string{"buy", "ETH", "1"}, rest)

	conf, rest, err = Get(flag.NewFlagSet("test", flag.ContinueOnError), []string{"--confirm", "value"})
	require.NoError(t, err)
	assert.Equal(t, defaultExchange, conf.Exchange)
	assert.True(t, conf.TradingWithConfirmation)
	assert.Equal(t, []string{"value"}, rest)

	_, _, err = Get(flag.NewFlagSet("test", flag.ContinueOnError), []string{"--fiat", "EUR"})
	assert.Error(t, err)
}
