// Package pricer converts balances and quotes between assets, BTC and fiat
// currencies using one ticker snapshot.
package pricer

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/calculator/internal/domain"
)

// Converter is a pure price calculator over one ticker snapshot.
// Fiat currencies are quoted like any other symbol: the quote of EUR holds
// the BTC value of one euro, so one BTC is worth 1/price euros.
type Converter struct {
	ticker domain.Ticker
	fiat   string
}

// NewConverter creates a converter. fiat is the default currency for FiatPrice, BTC2Fiat and Fiat2BTC.
func NewConverter(ticker domain.Ticker, fiat string) *Converter {
	if ticker == nil {
		ticker = domain.Ticker{}
	}
	return &Converter{ticker: ticker, fiat: domain.NormalizeSymbol(fiat)}
}

// Fiat returns the default fiat currency.
func (c *Converter) Fiat() string { return c.fiat }

// BTCPrice returns the quoted price of the asset in BTC.
func (c *Converter) BTCPrice(asset string) (decimal.Decimal, error) {
	q, ok := c.ticker.Quote(asset)
	if !ok {
		return decimal.Zero, errors.Wrapf(domain.ErrQuoteNotFound, "asset %s", asset)
	}
	return q.Price, nil
}

// FiatPrice returns the asset price in the default fiat currency.
func (c *Converter) FiatPrice(asset string) (decimal.Decimal, error) {
	return c.FiatPriceIn(asset, c.fiat)
}

// FiatPriceIn returns the asset price in the given fiat currency.
func (c *Converter) FiatPriceIn(asset, currency string) (decimal.Decimal, error) {
	btcPrice, err := c.BTCPrice(asset)
	if err != nil {
		return decimal.Zero, err
	}
	return c.ToFiat(btcPrice, currency)
}

// Factor returns how many units of base one unit of asset is worth.
func (c *Converter) Factor(asset, base string) (decimal.Decimal, error) {
	assetPrice, err := c.BTCPrice(asset)
	if err != nil {
		return decimal.Zero, err
	}
	basePrice, err := c.BTCPrice(base)
	if err != nil {
		return decimal.Zero, err
	}
	if basePrice.IsZero() {
		return decimal.Zero, errors.Wrapf(domain.ErrDivisionByZero, "base asset %s is priced at zero", base)
	}
	return assetPrice.Div(basePrice), nil
}

// BTC2Fiat converts a BTC amount into the default fiat currency.
func (c *Converter) BTC2Fiat(btcAmount decimal.Decimal) (decimal.Decimal, error) {
	return c.ToFiat(btcAmount, c.fiat)
}

// Fiat2BTC converts an amount of the default fiat currency into BTC.
func (c *Converter) Fiat2BTC(fiatAmount decimal.Decimal) (decimal.Decimal, error) {
	return c.FromFiat(fiatAmount, c.fiat)
}

// ToFiat converts a BTC amount into the given fiat currency.
func (c *Converter) ToFiat(btcAmount decimal.Decimal, currency string) (decimal.Decimal, error) {
	btcPerUnit, err := c.btcPerFiatUnit(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return btcAmount.Div(btcPerUnit), nil
}

// FromFiat converts an amount of the given fiat currency into BTC.
func (c *Converter) FromFiat(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	btcPerUnit, err := c.btcPerFiatUnit(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(btcPerUnit), nil
}

func (c *Converter) btcPerFiatUnit(currency string) (decimal.Decimal, error) {
	currency = domain.NormalizeSymbol(currency)
	q, ok := c.ticker.Quote(currency)
	if !ok || !q.Price.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrFiatRateUnavailable, "currency %s", currency)
	}
	return q.Price, nil
}

// Valuation result of summing balances into one currency.
type Valuation struct {
	Currency string
	Total    decimal.Decimal
	// Values per-asset value in Currency for every asset that could be priced.
	Values map[string]decimal.Decimal
	// Skipped assets left out of Total because they could not be priced.
	Skipped []domain.AssetError
}

// SkippedAssets returns the symbols of skipped assets in ascending order.
func (v Valuation) SkippedAssets() []string {
	out := make([]string, 0, len(v.Skipped))
	for _, s := range v.Skipped {
		out = append(out, s.Asset)
	}
	return out
}

// Valuate sums balance*price over all balances in the given currency.
// Assets without a quote are reported in Skipped; only a missing rate for
// the target currency fails the whole call.
func (c *Converter) Valuate(balances domain.Balances, currency string) (Valuation, error) {
	return c.valuate(balances, nil, currency)
}

// ValuateWithRatings sums balance*price*weight over the assets present in ratings.
func (c *Converter) ValuateWithRatings(balances domain.Balances, ratings domain.Ratings, currency string) (Valuation, error) {
	if ratings == nil {
		ratings = domain.Ratings{}
	}
	return c.valuate(balances, ratings, currency)
}

func (c *Converter) valuate(balances domain.Balances, ratings domain.Ratings, currency string) (Valuation, error) {
	if currency == "" {
		currency = c.fiat
	}
	currency = domain.NormalizeSymbol(currency)
	if _, err := c.btcPerFiatUnit(currency); err != nil {
		return Valuation{Currency: currency}, err
	}

	assets := make([]string, 0, len(balances))
	for asset := range balances {
		if ratings != nil {
			if _, ok := ratings[asset]; !ok {
				continue
			}
		}
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	v := Valuation{
		Currency: currency,
		Total:    decimal.Zero,
		Values:   make(map[string]decimal.Decimal, len(assets)),
	}
	for _, asset := range assets {
		price, err := c.FiatPriceIn(asset, currency)
		if err != nil {
			v.Skipped = append(v.Skipped, domain.AssetError{Asset: asset, Err: err})
			continue
		}
		value := balances[asset].Mul(price)
		if ratings != nil {
			value = value.Mul(ratings[asset])
		}
		v.Values[asset] = value
		v.Total = v.Total.Add(value)
	}
	return v, nil
}
