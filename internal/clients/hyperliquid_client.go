package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/calculator/internal/domain"
)

// DefaultHyperliquidURL is the mainnet API endpoint.
const DefaultHyperliquidURL = "https://api.hyperliquid.xyz"

type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
}

// NewHyperliquidClient creates a client from an API key whose Secret holds the
// hex private key. Key, when set, is the account address to act for; otherwise
// the address is derived from the private key.
func NewHyperliquidClient(key domain.APIKey, baseURL string) (*HyperliquidClient, error) {
	if baseURL == "" {
		baseURL = DefaultHyperliquidURL
	}

	hexKey := strings.TrimSpace(key.Secret)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "parse hyperliquid private key")
	}

	accountAddr := strings.TrimSpace(key.Key)
	if accountAddr == "" {
		pubECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, errors.New("error casting public key to ECDSA")
		}
		accountAddr = crypto.PubkeyToAddress(*pubECDSA).Hex()
	}

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr}, nil
}

func (c *HyperliquidClient) Exchange() *hyperliquid.Exchange { return c.exchange }
func (c *HyperliquidClient) AccountAddress() string          { return c.accountAddr }
