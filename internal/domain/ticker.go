package domain

import "github.com/shopspring/decimal"

// TickerQuote market quote for one symbol.
type TickerQuote struct {
	// Asset quoted symbol.
	Asset string `json:"asset"`
	// Price value of one unit denominated in BTC.
	// For a fiat symbol it is the BTC value of one unit of that currency.
	Price decimal.Decimal `json:"price"`
	// RealPrice Price converted into the primary fiat currency.
	RealPrice decimal.Decimal `json:"realPrice"`
	// ChangePercent 24h change reported by the exchange.
	ChangePercent decimal.Decimal `json:"change"`
}

// Ticker snapshot of quotes keyed by symbol. It is replaced wholesale on refresh.
type Ticker map[string]TickerQuote

// Quote returns the quote for the symbol. BTC is always quoted at 1.
func (t Ticker) Quote(symbol string) (TickerQuote, bool) {
	symbol = NormalizeSymbol(symbol)
	q, ok := t[symbol]
	if !ok && symbol == BTC {
		return TickerQuote{Asset: BTC, Price: decimal.NewFromInt(1)}, true
	}
	return q, ok
}

// Clone returns an independent copy.
func (t Ticker) Clone() Ticker {
	out := make(Ticker, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Set stores a quote under its normalized symbol.
func (t Ticker) Set(q TickerQuote) {
	q.Asset = NormalizeSymbol(q.Asset)
	t[q.Asset] = q
}
