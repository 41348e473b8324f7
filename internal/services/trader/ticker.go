package trader

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/calculator/internal/domain"
)

// fiatMarkets maps a fiat currency to the quote symbol exchanges list BTC against.
// USD is served by the USDT market.
var fiatMarkets = map[string]string{
	domain.EUR: "EUR",
	domain.USD: "USDT",
	domain.GBP: "GBP",
	domain.JPY: "JPY",
}

// marketEntry is one row of an exchange's 24h statistics.
type marketEntry struct {
	Symbol string
	Last   string
	// Change 24h change in percent.
	Change string
}

// buildTicker turns exchange markets into a BTC-denominated ticker: ALTBTC
// markets give altcoin prices, BTC<fiat> markets give the BTC value of one fiat unit.
func buildTicker(entries []marketEntry) domain.Ticker {
	fiatBySymbol := make(map[string]string, len(fiatMarkets))
	for fiat, quote := range fiatMarkets {
		fiatBySymbol[domain.BTC+quote] = fiat
	}

	ticker := domain.Ticker{}
	for _, e := range entries {
		symbol := domain.NormalizeSymbol(e.Symbol)
		last, err := decimal.NewFromString(e.Last)
		if err != nil || !last.IsPositive() {
			continue
		}
		change, _ := decimal.NewFromString(e.Change)

		if fiat, ok := fiatBySymbol[symbol]; ok {
			ticker.Set(domain.TickerQuote{
				Asset:         fiat,
				Price:         decimal.NewFromInt(1).Div(last),
				ChangePercent: change.Neg(),
			})
			continue
		}

		asset, ok := strings.CutSuffix(symbol, domain.BTC)
		if !ok || asset == "" {
			continue
		}
		ticker.Set(domain.TickerQuote{Asset: asset, Price: last, ChangePercent: change})
	}

	ticker.Set(domain.TickerQuote{Asset: domain.BTC, Price: decimal.NewFromInt(1)})
	return ticker
}
