package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const percentageMultiplier = 100

// CheckpointBasis selects the unit checkpoint prices are recorded in.
type CheckpointBasis string

const (
	// CheckpointBasisFiat prices in the primary fiat currency.
	CheckpointBasisFiat CheckpointBasis = "fiat"
	// CheckpointBasisBTC prices in BTC.
	CheckpointBasisBTC CheckpointBasis = "btc"
)

// ParseCheckpointBasis accepts "fiat" or "btc"; empty means fiat.
func ParseCheckpointBasis(s string) (CheckpointBasis, error) {
	switch CheckpointBasis(s) {
	case "", CheckpointBasisFiat:
		return CheckpointBasisFiat, nil
	case CheckpointBasisBTC:
		return CheckpointBasisBTC, nil
	default:
		return "", fmt.Errorf("unknown checkpoint basis %q", s)
	}
}

// Checkpoint baseline price of an asset plus the latest price and the change between them.
// Percent is never set directly; constructors derive it from the two prices.
type Checkpoint struct {
	Asset        string          `json:"asset"`
	InitialPrice decimal.Decimal `json:"initialPrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Percent      decimal.Decimal `json:"percent"`
}

// NewCheckpoint creates a checkpoint and derives its percent change.
func NewCheckpoint(asset string, initial, current decimal.Decimal) Checkpoint {
	return Checkpoint{
		Asset:        asset,
		InitialPrice: initial,
		CurrentPrice: current,
		Percent:      percentChange(initial, current),
	}
}

// WithCurrent moves the current price, keeping the baseline.
func (c Checkpoint) WithCurrent(price decimal.Decimal) Checkpoint {
	return NewCheckpoint(c.Asset, c.InitialPrice, price)
}

// Rebase moves the baseline to the given price.
func (c Checkpoint) Rebase(initial decimal.Decimal) Checkpoint {
	return NewCheckpoint(c.Asset, initial, c.CurrentPrice)
}

// String returns a human-readable representation.
func (c Checkpoint) String() string {
	return fmt.Sprintf("%s %s -> %s (%s%%)", c.Asset, c.InitialPrice.String(), c.CurrentPrice.String(), c.Percent.StringFixed(2))
}

// percentChange is (current - initial) / initial * 100; a zero baseline yields zero.
func percentChange(initial, current decimal.Decimal) decimal.Decimal {
	if initial.IsZero() {
		return decimal.Zero
	}
	return current.Sub(initial).Div(initial).Mul(decimal.NewFromInt(percentageMultiplier))
}
