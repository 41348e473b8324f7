package clients

import (
	"github.com/hirokisan/bybit/v2"

	"github.com/vadiminshakov/calculator/internal/domain"
)

func NewBybitClient(key domain.APIKey) *bybit.Client {
	client := bybit.NewClient()
	if key.IsEmpty() {
		return client
	}
	return client.WithAuth(key.Key, key.Secret)
}
