package portfolio

import (
	"context"

	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/storage/settings"
	"github.com/vadiminshakov/calculator/pkg/retrier"
)

// Gateway is the capability the store needs from an exchange.
type Gateway interface {
	GetTicker(ctx context.Context) (domain.Ticker, error)
	PlaceOrder(ctx context.Context, order domain.TradeOrder) (domain.OrderFill, error)
}

// BalanceReporter is implemented by gateways that can report account balances.
type BalanceReporter interface {
	GetBalances(ctx context.Context) (domain.Balances, error)
}

// QuoteReporter is implemented by gateways that settle orders in an asset
// other than BTC. Order rates and fill rates stay in BTC per unit.
type QuoteReporter interface {
	QuoteAsset() string
}

// GatewayFactory builds the gateway for an exchange key.
// It must return an error wrapping domain.ErrUnknownExchange for unsupported keys.
type GatewayFactory func(key string) (Gateway, error)

type credentialProvider interface {
	GetAPIKey(exchange string) (domain.APIKey, error)
}

type settingsStore interface {
	Load() (*settings.Settings, error)
	Save(st settings.Settings) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFiatCurrencies sets the initial fiat pair.
func WithFiatCurrencies(pair domain.FiatPair) Option {
	return func(s *Store) {
		s.fiat = pair
	}
}

// WithGatewayFactory sets how exchange keys are turned into gateways.
func WithGatewayFactory(f GatewayFactory) Option {
	return func(s *Store) {
		s.factory = f
	}
}

// WithCredentials sets the API key provider.
func WithCredentials(p credentialProvider) Option {
	return func(s *Store) {
		s.creds = p
	}
}

// WithSettings enables loading and saving settings.
func WithSettings(st settingsStore) Option {
	return func(s *Store) {
		s.settings = st
	}
}

// WithCheckpointBasis selects whether checkpoints track fiat or BTC prices.
func WithCheckpointBasis(b domain.CheckpointBasis) Option {
	return func(s *Store) {
		s.basis = b
	}
}

// WithRetrier sets the retry policy for ticker and balance refreshes.
func WithRetrier(r *retrier.Retrier) Option {
	return func(s *Store) {
		if r != nil {
			s.retrier = r
		}
	}
}
