// Package clients builds exchange SDK clients from API credentials.
package clients

import (
	"github.com/adshao/go-binance/v2"

	"github.com/vadiminshakov/calculator/internal/domain"
)

// NewBinanceClient creates a client. An empty key yields a public client
// that can only read market data.
func NewBinanceClient(key domain.APIKey) *binance.Client {
	return binance.NewClient(key.Key, key.Secret)
}
