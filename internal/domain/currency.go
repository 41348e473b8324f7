package domain

import "github.com/pkg/errors"

// BTC is the master asset: every quote in a ticker is denominated in it and
// every altcoin trade is settled against it.
const BTC = "BTC"

// fiat currency keys
const (
	EUR = "EUR"
	USD = "USD"
	GBP = "GBP"
	JPY = "JPY"
	CNY = "CNY"
)

var fiatCurrencies = map[string]struct{}{
	EUR: {}, USD: {}, GBP: {}, JPY: {}, CNY: {},
}

// IsFiat reports whether the symbol is one of the supported fiat currencies.
func IsFiat(symbol string) bool {
	_, ok := fiatCurrencies[NormalizeSymbol(symbol)]
	return ok
}

// IsTradable reports whether the symbol is an altcoin the engine may buy or sell against BTC.
func IsTradable(symbol string) bool {
	symbol = NormalizeSymbol(symbol)
	return symbol != "" && symbol != BTC && !IsFiat(symbol)
}

// FiatPair is the ordered pair of configured fiat currencies.
// The first element is the primary currency used for display and summation.
type FiatPair [2]string

// DefaultFiatPair is used until the user selects another pair.
var DefaultFiatPair = FiatPair{EUR, USD}

// NewFiatPair validates and normalizes a fiat pair.
func NewFiatPair(primary, secondary string) (FiatPair, error) {
	p := FiatPair{NormalizeSymbol(primary), NormalizeSymbol(secondary)}
	if err := p.Validate(); err != nil {
		return FiatPair{}, err
	}
	return p, nil
}

// Primary returns the default fiat currency.
func (p FiatPair) Primary() string { return p[0] }

// Secondary returns the alternative fiat currency.
func (p FiatPair) Secondary() string { return p[1] }

// Swap returns the pair in reverse order.
func (p FiatPair) Swap() FiatPair { return FiatPair{p[1], p[0]} }

// Validate checks both currencies are supported and distinct.
func (p FiatPair) Validate() error {
	for _, c := range p {
		if !IsFiat(c) {
			return errors.Errorf("unsupported fiat currency %q", c)
		}
	}
	if p[0] == p[1] {
		return errors.Errorf("fiat pair must contain two different currencies, got %s/%s", p[0], p[1])
	}
	return nil
}
