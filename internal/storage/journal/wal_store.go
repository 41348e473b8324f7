// Package journal keeps an append-only history of executed trades and rating
// snapshots in a write-ahead log.
package journal

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/calculator/internal/domain"
)

const (
	defaultJournalDir     = "./wal/journal"
	journalSegmentLimit   = 1000
	journalMaxSegments    = 100
	journalDirPermissions = 0o755
	tradeKeyPrefix        = "trade_"
	ratingsKeyPrefix      = "ratings_"
)

// TradeEntry an executed order.
type TradeEntry struct {
	Time     time.Time          `json:"time"`
	Exchange string             `json:"exchange"`
	Strategy string             `json:"strategy"`
	Result   domain.TradeResult `json:"result"`
}

// RatingsEntry the allocation after a ratings update.
type RatingsEntry struct {
	Time     time.Time       `json:"time"`
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Ratings  domain.Ratings  `json:"ratings"`
}

// Record an entry with its WAL index.
type Record[T any] struct {
	Index uint64
	Entry T
}

// WALStore persists journal entries in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed journal under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	if err := os.MkdirAll(dir, journalDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "create journal dir %s", dir)
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// RecordTrade appends an executed trade.
func (s *WALStore) RecordTrade(entry TradeEntry) error {
	if entry.Result.Asset == "" {
		return errors.New("trade entry asset is required")
	}
	return s.append(tradeKeyPrefix+entry.Result.Asset, entry)
}

// RecordRatings appends a ratings snapshot.
func (s *WALStore) RecordRatings(entry RatingsEntry) error {
	return s.append(ratingsKeyPrefix+entry.Currency, entry)
}

func (s *WALStore) append(key string, entry any) error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal journal entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// TradesAfter returns trades written after the provided WAL index.
func (s *WALStore) TradesAfter(index uint64) ([]Record[TradeEntry], error) {
	return entriesAfter[TradeEntry](s, index, tradeKeyPrefix)
}

// RatingsAfter returns ratings snapshots written after the provided WAL index.
func (s *WALStore) RatingsAfter(index uint64) ([]Record[RatingsEntry], error) {
	return entriesAfter[RatingsEntry](s, index, ratingsKeyPrefix)
}

func entriesAfter[T any](s *WALStore, index uint64, prefix string) ([]Record[T], error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record[T], 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, prefix) {
			continue
		}
		var entry T
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, errors.Wrapf(err, "decode journal entry %d", idx)
		}
		records = append(records, Record[T]{Index: idx, Entry: entry})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
