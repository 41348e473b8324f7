package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/calculator/internal/domain"
)

func providerWith(env map[string]string) *EnvProvider {
	return &EnvProvider{lookup: func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}}
}

func TestEnvProvider_GetAPIKey(t *testing.T) {
	p := providerWith(map[string]string{
		"BINANCE_API_KEY":         "bk",
		"BINANCE_API_SECRET":      "bs",
		"BYBIT_API_KEY":           "yk",
		"HYPERLIQUID_PRIVATE_KEY": "0xabc",
	})

	key, err := p.GetAPIKey("Binance")
	require.NoError(t, err)
	assert.Equal(t, domain.APIKey{Key: "bk", Secret: "bs"}, key)

	_, err = p.GetAPIKey("bybit")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	key, err = p.GetAPIKey("hyperliquid")
	require.NoError(t, err)
	assert.Empty(t, key.Key)
	assert.Equal(t, "0xabc", key.Secret)

	key, err = p.GetAPIKey("simulate")
	require.NoError(t, err)
	assert.True(t, key.IsEmpty())

	_, err = p.GetAPIKey("kraken")
	assert.ErrorIs(t, err, domain.ErrUnknownExchange)
}

func TestEnvProvider_ErrorsDoNotLeakSecrets(t *testing.T) {
	p := providerWith(map[string]string{"BYBIT_API_SECRET": "topsecret"})
	_, err := p.GetAPIKey("bybit")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "topsecret")
}

func TestNewEnvProvider_LoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BYBIT_API_KEY=filekey\nBYBIT_API_SECRET=filesecret\n"), 0o600))
	t.Setenv("BYBIT_API_KEY", "envkey")
	t.Setenv("BYBIT_API_SECRET", "")
	require.NoError(t, os.Unsetenv("BYBIT_API_SECRET"))

	p, err := NewEnvProvider(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Unsetenv("BYBIT_API_SECRET") })

	key, err := p.GetAPIKey("bybit")
	require.NoError(t, err)
	assert.Equal(t, "envkey", key.Key, "existing variables win over the file")
	assert.Equal(t, "filesecret", key.Secret)
}

func TestNewEnvProvider_MissingFile(t *testing.T) {
	_, err := NewEnvProvider(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
