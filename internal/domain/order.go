package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side direction of an order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// RateMode market or limit execution.
type RateMode int

const (
	RateModeMarket RateMode = iota
	RateModeLimit
)

// String returns the string representation of the mode.
func (m RateMode) String() string {
	if m == RateModeLimit {
		return "limit"
	}
	return "market"
}

// TradeOrder order built by the trading engine and handed to a gateway.
type TradeOrder struct {
	// ID client order id.
	ID string
	// Asset base currency being bought or sold.
	Asset string
	// Quote asset the order is settled in, BTC unless the gateway settles in another asset.
	Quote string
	Side  Side
	// Amount quantity of Asset.
	Amount decimal.Decimal
	Mode   RateMode
	// Rate limit price in BTC per unit whatever the Quote; zero for market orders.
	Rate decimal.Decimal
}

// Pair returns the trading pair of the order.
func (o TradeOrder) Pair() Pair {
	quote := o.Quote
	if quote == "" {
		quote = BTC
	}
	return NewPair(o.Asset, quote)
}

// String returns a human-readable string representation.
func (o TradeOrder) String() string {
	if o.Mode == RateModeLimit {
		return fmt.Sprintf("%s %s %s @ %s", o.Side.String(), o.Amount.String(), o.Pair().String(), o.Rate.String())
	}
	return fmt.Sprintf("%s %s %s @ market", o.Side.String(), o.Amount.String(), o.Pair().String())
}

// OrderFill what the gateway reports back for a placed order.
type OrderFill struct {
	OrderRef     string
	FilledAmount decimal.Decimal
	FilledRate   decimal.Decimal
}

// TradeResult outcome of an executed order returned to callers of the engine.
type TradeResult struct {
	OrderRef     string          `json:"orderRef"`
	Asset        string          `json:"asset"`
	Side         Side            `json:"side"`
	FilledAmount decimal.Decimal `json:"filledAmount"`
	FilledRate   decimal.Decimal `json:"filledRate"`
}

// NewTradeResult combines an order with its fill.
func NewTradeResult(order TradeOrder, fill OrderFill) TradeResult {
	return TradeResult{
		OrderRef:     fill.OrderRef,
		Asset:        order.Asset,
		Side:         order.Side,
		FilledAmount: fill.FilledAmount,
		FilledRate:   fill.FilledRate,
	}
}

// Message confirmation text for display.
func (r TradeResult) Message() string {
	verb := "Bought"
	if r.Side == SideSell {
		verb = "Sold"
	}
	return fmt.Sprintf("%s %s %s at %s BTC (order %s)", verb, r.FilledAmount.String(), r.Asset, r.FilledRate.String(), r.OrderRef)
}
