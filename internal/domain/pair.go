// Package domain defines core data structures shared by the calculator, the
// checkpoint tracker, the trading engine and the exchange gateways.
package domain

import (
	"fmt"
	"strings"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol (the asset being bought or sold).
	From string
	// To quote currency symbol (the asset paid or received).
	To string
}

// NewPair returns a pair with upper-cased symbols.
func NewPair(from, to string) Pair {
	return Pair{From: NormalizeSymbol(from), To: NormalizeSymbol(to)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// NormalizeSymbol trims and upper-cases an asset symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
