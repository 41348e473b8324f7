package portfolio

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/services/pricer"
)

// Checkpoints tracks per-asset baseline prices. It is a view over the store
// and shares its lock, so checkpoints are always read together with the
// balances and ticker they were derived from.
type Checkpoints struct {
	s *Store
}

// Checkpoints returns the checkpoint tracker of the store.
func (s *Store) Checkpoints() *Checkpoints {
	return &Checkpoints{s: s}
}

// Update creates the asset's checkpoint at the live price, or moves its
// current price. With btcUpdate the baseline is re-based to the live price
// and, on a fiat basis, the BTC checkpoint is re-based as well.
func (c *Checkpoints) Update(asset string, btcUpdate bool) (domain.Checkpoint, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.updateCheckpointLocked(asset, btcUpdate, nil)
}

// TrackHeld creates a checkpoint at the live price for every held altcoin that
// has none yet and returns the assets it started tracking. Assets without a
// quote are skipped and retried on the next call.
func (c *Checkpoints) TrackHeld() []string {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	var created []string
	for asset, amount := range c.s.balances {
		if !amount.IsPositive() || !domain.IsTradable(asset) {
			continue
		}
		if _, ok := c.s.checkpoints[asset]; ok {
			continue
		}
		if _, err := c.s.updateCheckpointLocked(asset, false, nil); err != nil {
			c.s.logger.Debug("held asset not tracked", zap.String("asset", asset), zap.Error(err))
			continue
		}
		created = append(created, asset)
	}
	sort.Strings(created)
	return created
}

// UpdateWithRate is Update with the baseline forced to rate, given in BTC per
// unit, e.g. the rate of an actual fill.
func (c *Checkpoints) UpdateWithRate(asset string, btcUpdate bool, rate decimal.Decimal) (domain.Checkpoint, error) {
	if rate.IsNegative() {
		return domain.Checkpoint{}, errors.Wrapf(domain.ErrInvalidAmount, "rate %s", rate.String())
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.updateCheckpointLocked(asset, btcUpdate, &rate)
}

// Get returns the asset's checkpoint.
func (c *Checkpoints) Get(asset string) (domain.Checkpoint, error) {
	asset = domain.NormalizeSymbol(asset)

	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	cp, ok := c.s.checkpoints[asset]
	if !ok {
		return domain.Checkpoint{}, errors.Wrapf(domain.ErrCheckpointNotFound, "asset %s", asset)
	}
	return cp, nil
}

// Changes returns a copy of every tracked checkpoint.
func (c *Checkpoints) Changes() map[string]domain.Checkpoint {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.copyCheckpointsLocked()
}

// Remove stops tracking the asset.
func (c *Checkpoints) Remove(asset string) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.checkpoints, domain.NormalizeSymbol(asset))
}

// Clear drops all checkpoints.
func (c *Checkpoints) Clear() {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.checkpoints = make(map[string]domain.Checkpoint)
}

// Basis returns the unit checkpoint prices are recorded in.
func (c *Checkpoints) Basis() domain.CheckpointBasis {
	return c.s.basis
}

func (s *Store) copyCheckpointsLocked() map[string]domain.Checkpoint {
	out := make(map[string]domain.Checkpoint, len(s.checkpoints))
	for k, v := range s.checkpoints {
		out[k] = v
	}
	return out
}

func (s *Store) updateCheckpointLocked(asset string, btcUpdate bool, rate *decimal.Decimal) (domain.Checkpoint, error) {
	asset = domain.NormalizeSymbol(asset)
	conv := s.converterLocked()

	var anchor decimal.Decimal
	if rate != nil {
		var err error
		if anchor, err = s.toBasis(conv, *rate); err != nil {
			return domain.Checkpoint{}, errors.Wrapf(err, "checkpoint %s", asset)
		}
	}

	live, err := s.checkpointPrice(conv, asset)
	if err != nil {
		if rate == nil {
			return domain.Checkpoint{}, errors.Wrapf(err, "checkpoint %s", asset)
		}
		// no quote yet, the fill rate is the best price known
		live = anchor
	}

	cp, exists := s.checkpoints[asset]
	switch {
	case rate != nil:
		cp = domain.NewCheckpoint(asset, anchor, live)
	case !exists, btcUpdate:
		cp = domain.NewCheckpoint(asset, live, live)
	default:
		cp = cp.WithCurrent(live)
	}
	s.checkpoints[asset] = cp

	if btcUpdate && asset != domain.BTC && s.basis == domain.CheckpointBasisFiat {
		s.rebaseBTCLocked(conv)
	}

	return cp, nil
}

func (s *Store) rebaseBTCLocked(conv *pricer.Converter) {
	if _, ok := s.checkpoints[domain.BTC]; !ok {
		return
	}
	price, err := s.checkpointPrice(conv, domain.BTC)
	if err != nil {
		s.logger.Debug("BTC checkpoint not re-based", zap.Error(err))
		return
	}
	s.checkpoints[domain.BTC] = domain.NewCheckpoint(domain.BTC, price, price)
}

// refreshCheckpointsLocked moves the current price of every checkpoint to the ticker.
func (s *Store) refreshCheckpointsLocked() {
	conv := s.converterLocked()
	for asset, cp := range s.checkpoints {
		price, err := s.checkpointPrice(conv, asset)
		if err != nil {
			continue
		}
		s.checkpoints[asset] = cp.WithCurrent(price)
	}
}

// convertCheckpointsLocked re-expresses fiat checkpoints through BTC in the new
// primary currency. Checkpoints that cannot be converted are dropped.
func (s *Store) convertCheckpointsLocked(from, to *pricer.Converter) {
	for asset, cp := range s.checkpoints {
		initialBTC, err := from.Fiat2BTC(cp.InitialPrice)
		if err == nil {
			var initial, current decimal.Decimal
			if initial, err = to.BTC2Fiat(initialBTC); err == nil {
				if current, err = to.FiatPrice(asset); err == nil {
					s.checkpoints[asset] = domain.NewCheckpoint(asset, initial, current)
					continue
				}
			}
		}
		s.logger.Warn("dropping checkpoint on fiat change", zap.String("asset", asset), zap.Error(err))
		delete(s.checkpoints, asset)
	}
}

func (s *Store) checkpointPrice(conv *pricer.Converter, asset string) (decimal.Decimal, error) {
	if s.basis == domain.CheckpointBasisBTC {
		return conv.BTCPrice(asset)
	}
	return conv.FiatPrice(asset)
}

func (s *Store) toBasis(conv *pricer.Converter, btcRate decimal.Decimal) (decimal.Decimal, error) {
	if s.basis == domain.CheckpointBasisBTC {
		return btcRate, nil
	}
	return conv.BTC2Fiat(btcRate)
}
