// Package settings persists user settings (fiat pair, target ratings and
// balances) so a restart continues from the last known state.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/calculator/internal/domain"
)

const (
	defaultSettingsPath = "./state/settings.json"
	settingsDirPerm     = 0o755
	settingsFilePerm    = 0o600
)

// Settings everything that survives a restart.
type Settings struct {
	FiatCurrencies  domain.FiatPair `json:"fiatCurrencies"`
	InitialRatings  domain.Ratings  `json:"initialRatings"`
	CurrentBalances domain.Balances `json:"currentBalances"`
}

// Store reads and writes Settings as a JSON file.
type Store struct {
	path string
}

// NewStore creates a settings store at the given path, creating its directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultSettingsPath
	}
	if err := os.MkdirAll(filepath.Dir(path), settingsDirPerm); err != nil {
		return nil, errors.Wrap(err, "create settings dir")
	}
	return &Store{path: path}, nil
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// Load reads settings from disk. A missing or empty file yields nil settings and no error.
func (s *Store) Load() (*Settings, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read settings")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var st Settings
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	return &st, nil
}

// Save writes settings to disk atomically via temp file.
func (s *Store) Save(st Settings) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode settings")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, settingsFilePerm); err != nil {
		return errors.Wrap(err, "write settings temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist settings")
	}
	return nil
}
