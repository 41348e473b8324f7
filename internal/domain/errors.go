package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrQuoteNotFound the ticker has no quote for the requested asset.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrFiatRateUnavailable the BTC/fiat rate is missing or zero.
	ErrFiatRateUnavailable = errors.New("fiat rate unavailable")
	// ErrDivisionByZero the base asset of a factor is priced at zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrCheckpointNotFound no checkpoint was created for the asset yet.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrInvalidAmount negative balance or non-positive order amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientBalance not enough funds to place the order.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrExchangeRejected the gateway refused or failed the order.
	ErrExchangeRejected = errors.New("exchange rejected order")
	// ErrUnknownExchange the exchange key is not supported.
	ErrUnknownExchange = errors.New("unknown exchange")
	// ErrOrderDeclined trading with confirmation is on and the order was not approved.
	ErrOrderDeclined = errors.New("order declined")
	// ErrNoExchange no exchange is selected.
	ErrNoExchange = errors.New("no exchange selected")
	// ErrStaleState the store was reset or switched exchange while an order was in flight.
	ErrStaleState = errors.New("portfolio state replaced")
)

// RejectionError carries the gateway's rejection reason verbatim.
type RejectionError struct {
	Exchange string
	Order    TradeOrder
	Reason   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected %s: %s", e.Exchange, e.Order.String(), e.Reason)
}

// Is makes errors.Is(err, ErrExchangeRejected) hold for every rejection.
func (e *RejectionError) Is(target error) bool {
	return target == ErrExchangeRejected
}

// NewRejectionError wraps a gateway error so that its message is preserved.
func NewRejectionError(exchange string, order TradeOrder, cause error) *RejectionError {
	reason := "unknown reason"
	if cause != nil {
		reason = cause.Error()
	}
	return &RejectionError{Exchange: exchange, Order: order, Reason: reason}
}

// AssetError associates a failure with the asset it happened on.
type AssetError struct {
	Asset string
	Err   error
}

func (e AssetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Asset, e.Err)
}

func (e AssetError) Unwrap() error { return e.Err }
