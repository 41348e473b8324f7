package domain

import "github.com/shopspring/decimal"

// Ratings allocation weights keyed by asset, each the fraction of the total
// portfolio value in the primary fiat currency.
type Ratings map[string]decimal.Decimal

// Clone returns an independent copy.
func (r Ratings) Clone() Ratings {
	out := make(Ratings, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// InvestmentRate returns current/initial*100 for the asset.
// ok is false when either weight is unknown or the initial weight is zero.
func InvestmentRate(current, initial Ratings, asset string) (rate decimal.Decimal, ok bool) {
	cur, okCur := current[asset]
	init, okInit := initial[asset]
	if !okCur || !okInit || init.IsZero() {
		return decimal.Zero, false
	}
	return cur.Div(init).Mul(decimal.NewFromInt(percentageMultiplier)), true
}

// Balances amounts held per asset.
type Balances map[string]decimal.Decimal

// Clone returns an independent copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
