package internal

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/internal/clients"
	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/portfolio"
	"github.com/vadiminshakov/calculator/internal/services/trader"
)

// exchange keys
const (
	ExchangeBinance     = "binance"
	ExchangeBybit       = "bybit"
	ExchangeHyperliquid = "hyperliquid"
	ExchangeSimulate    = "simulate"
)

// SupportedExchanges lists every key the provider can build a gateway for.
var SupportedExchanges = []string{ExchangeBinance, ExchangeBybit, ExchangeHyperliquid, ExchangeSimulate}

type apiKeyProvider interface {
	GetAPIKey(exchange string) (domain.APIKey, error)
}

// gatewayProvider is the single point of dispatch from an exchange key to its
// gateway. Gateways are built once and reused so a re-selected simulated
// exchange keeps its wallet.
type gatewayProvider struct {
	mu             sync.Mutex
	creds          apiKeyProvider
	logger         *zap.Logger
	hyperliquidURL string
	simWallet      domain.Balances
	simTicker      domain.Ticker
	built          map[string]portfolio.Gateway
}

func newGatewayProvider(creds apiKeyProvider, logger *zap.Logger, hyperliquidURL string,
	simWallet domain.Balances, simTicker domain.Ticker) *gatewayProvider {
	return &gatewayProvider{
		creds:          creds,
		logger:         logger,
		hyperliquidURL: hyperliquidURL,
		simWallet:      simWallet,
		simTicker:      simTicker,
		built:          make(map[string]portfolio.Gateway),
	}
}

// Gateway returns the gateway for the key, building it on first use.
func (p *gatewayProvider) Gateway(key string) (portfolio.Gateway, error) {
	key = strings.ToLower(strings.TrimSpace(key))

	p.mu.Lock()
	defer p.mu.Unlock()

	if gw, ok := p.built[key]; ok {
		return gw, nil
	}
	gw, err := p.build(key)
	if err != nil {
		return nil, err
	}
	p.built[key] = gw
	p.logger.Debug("gateway created", zap.String("exchange", key))
	return gw, nil
}

func (p *gatewayProvider) build(key string) (portfolio.Gateway, error) {
	switch key {
	case ExchangeBinance:
		apiKey, err := p.apiKey(key)
		if err != nil {
			return nil, err
		}
		return trader.NewBinanceGateway(clients.NewBinanceClient(apiKey))
	case ExchangeBybit:
		apiKey, err := p.apiKey(key)
		if err != nil {
			return nil, err
		}
		return trader.NewBybitGateway(clients.NewBybitClient(apiKey))
	case ExchangeHyperliquid:
		apiKey, err := p.apiKey(key)
		if err != nil {
			return nil, err
		}
		client, err := clients.NewHyperliquidClient(apiKey, p.hyperliquidURL)
		if err != nil {
			return nil, err
		}
		return trader.NewHyperliquidGateway(client.Exchange(), client.AccountAddress())
	case ExchangeSimulate:
		return trader.NewSimulateGateway(p.simulateSource(), p.simWallet, p.logger)
	default:
		return nil, errors.Wrapf(domain.ErrUnknownExchange, "%q", key)
	}
}

// simulateSource uses the configured ticker, or Binance public market data when none is set.
func (p *gatewayProvider) simulateSource() trader.TickerSource {
	if len(p.simTicker) > 0 {
		return trader.StaticTicker(p.simTicker)
	}
	public, _ := trader.NewBinanceGateway(clients.NewBinanceClient(domain.APIKey{}))
	return public
}

func (p *gatewayProvider) apiKey(exchange string) (domain.APIKey, error) {
	if p.creds == nil {
		return domain.APIKey{}, errors.Errorf("no credential provider for %s", exchange)
	}
	key, err := p.creds.GetAPIKey(exchange)
	if err != nil {
		return domain.APIKey{}, errors.Wrapf(err, "credentials for %s", exchange)
	}
	return key, nil
}
