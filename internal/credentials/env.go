// Package credentials resolves exchange API keys from the environment.
// Values are handed to callers as-is and are never logged.
package credentials

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/calculator/internal/domain"
)

// ErrCredentialsNotFound the environment holds no key for the exchange.
var ErrCredentialsNotFound = errors.New("credentials not found")

// envNames environment variables holding the key and the secret of an exchange.
type envNames struct {
	key         string
	secret      string
	keyOptional bool
}

var exchangeEnv = map[string]envNames{
	"binance": {key: "BINANCE_API_KEY", secret: "BINANCE_API_SECRET"},
	"bybit":   {key: "BYBIT_API_KEY", secret: "BYBIT_API_SECRET"},
	// the account address defaults to the one derived from the private key
	"hyperliquid": {key: "HYPERLIQUID_ACCOUNT_ADDRESS", secret: "HYPERLIQUID_PRIVATE_KEY", keyOptional: true},
}

// EnvProvider reads API keys from environment variables.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider loads envFile into the environment when it exists and
// returns a provider over the process environment. Variables already set win
// over the file.
func NewEnvProvider(envFile string) (*EnvProvider, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "load env file %s", envFile)
		}
	}
	return &EnvProvider{lookup: os.LookupEnv}, nil
}

// GetAPIKey returns the credentials of the exchange. The simulated exchange needs none.
func (p *EnvProvider) GetAPIKey(exchange string) (domain.APIKey, error) {
	exchange = strings.ToLower(strings.TrimSpace(exchange))
	names, ok := exchangeEnv[exchange]
	if !ok {
		if exchange == "simulate" {
			return domain.APIKey{}, nil
		}
		return domain.APIKey{}, errors.Wrapf(domain.ErrUnknownExchange, "no credentials for %q", exchange)
	}

	key, _ := p.lookup(names.key)
	secret, _ := p.lookup(names.secret)
	key, secret = strings.TrimSpace(key), strings.TrimSpace(secret)

	if secret == "" || (key == "" && !names.keyOptional) {
		if names.keyOptional {
			return domain.APIKey{}, errors.Wrapf(ErrCredentialsNotFound, "%s must be set", names.secret)
		}
		return domain.APIKey{}, errors.Wrapf(ErrCredentialsNotFound, "%s and %s must be set", names.key, names.secret)
	}
	return domain.APIKey{Key: key, Secret: secret}, nil
}
