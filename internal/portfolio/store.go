// Package portfolio owns the mutable calculator state: balances, ratings, the
// ticker snapshot, the fiat pair, the active exchange and the checkpoints.
// One RWMutex guards all of it so readers always see a consistent picture.
package portfolio

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/calculator/internal/domain"
	"github.com/vadiminshakov/calculator/internal/services/pricer"
	"github.com/vadiminshakov/calculator/internal/storage/settings"
	"github.com/vadiminshakov/calculator/pkg/retrier"
)

const defaultRefreshRetries = 3

// Store is the single source of truth for balances, ratings, ticker, fiat
// pair, exchange selection and checkpoints.
type Store struct {
	mu     sync.RWMutex
	saveMu sync.Mutex

	logger   *zap.Logger
	factory  GatewayFactory
	creds    credentialProvider
	settings settingsStore
	retrier  *retrier.Retrier
	basis    domain.CheckpointBasis

	balances       domain.Balances
	initialRatings domain.Ratings
	currentRatings domain.Ratings
	ticker         domain.Ticker
	fiat           domain.FiatPair
	exchangeKey    string
	gateway        Gateway
	// quote settlement asset of the active gateway
	quote          string
	checkpoints    map[string]domain.Checkpoint
	// generation changes whenever the exchange selection is swapped or the
	// store is reset, so results of a refresh started before are dropped.
	generation uint64
}

// NewStore creates a store and restores persisted settings when configured.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		logger: zap.NewNop(),
		fiat:   domain.DefaultFiatPair,
		basis:  domain.CheckpointBasisFiat,
	}
	s.retrier = retrier.New(
		retrier.WithMaxRetries(defaultRefreshRetries),
		retrier.WithRetryIf(isTransient),
		retrier.WithOnRetry(func(attempt int, err error) {
			s.logger.Warn("exchange call failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
	s.resetStateLocked()

	for _, opt := range opts {
		opt(s)
	}

	if err := s.fiat.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid fiat currencies")
	}
	if _, err := domain.ParseCheckpointBasis(string(s.basis)); err != nil {
		return nil, err
	}
	if err := s.restore(); err != nil {
		return nil, errors.Wrap(err, "restore settings")
	}

	return s, nil
}

func isTransient(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (s *Store) resetStateLocked() {
	s.balances = domain.Balances{}
	s.initialRatings = domain.Ratings{}
	s.currentRatings = domain.Ratings{}
	s.ticker = domain.Ticker{}
	s.checkpoints = make(map[string]domain.Checkpoint)
	s.exchangeKey = ""
	s.gateway = nil
	s.quote = domain.BTC
}

func (s *Store) restore() error {
	if s.settings == nil {
		return nil
	}
	st, err := s.settings.Load()
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st.FiatCurrencies.Validate() == nil {
		s.fiat = st.FiatCurrencies
	}
	for asset, weight := range st.InitialRatings {
		s.initialRatings[domain.NormalizeSymbol(asset)] = weight
	}
	for asset, amount := range st.CurrentBalances {
		if amount.IsNegative() {
			s.logger.Warn("ignoring negative persisted balance",
				zap.String("asset", asset),
				zap.String("amount", amount.String()))
			continue
		}
		s.balances[domain.NormalizeSymbol(asset)] = amount
	}

	s.logger.Info("settings restored",
		zap.String("fiat", s.fiat.Primary()),
		zap.Int("balances", len(s.balances)),
		zap.Int("initial_ratings", len(s.initialRatings)))
	return nil
}

// persist saves the current settings. Failures are logged, never returned:
// the in-memory state stays authoritative.
func (s *Store) persist() {
	if s.settings == nil {
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	st := settings.Settings{
		FiatCurrencies:  s.fiat,
		InitialRatings:  s.initialRatings.Clone(),
		CurrentBalances: s.balances.Clone(),
	}
	s.mu.RUnlock()

	if err := s.settings.Save(st); err != nil {
		s.logger.Error("failed to save settings", zap.Error(err))
	}
}

// UpdateBalance replaces the stored amount of one asset.
func (s *Store) UpdateBalance(asset string, amount decimal.Decimal) error {
	return s.UpdateBalances(domain.Balances{asset: amount})
}

// UpdateBalances replaces the stored amounts of the given assets.
// The whole batch is rejected if any amount is negative.
func (s *Store) UpdateBalances(balances domain.Balances) error {
	for asset, amount := range balances {
		if amount.IsNegative() {
			return errors.Wrapf(domain.ErrInvalidAmount, "balance of %s is %s", asset, amount.String())
		}
	}

	s.mu.Lock()
	s.applyBalancesLocked(balances)
	s.mu.Unlock()

	s.persist()
	return nil
}

func (s *Store) applyBalancesLocked(balances domain.Balances) {
	for asset, amount := range balances {
		s.balances[domain.NormalizeSymbol(asset)] = amount
	}
}

// UpdateRatings recomputes the current ratings from live balances and
// prices: each weight is the asset's value over the total value in the
// primary fiat currency. Assets that cannot be priced are left without a
// rating and returned. The first successful pass also seeds the initial ratings.
func (s *Store) UpdateRatings() ([]domain.AssetError, error) {
	s.mu.Lock()

	conv := s.converterLocked()
	valuation, err := conv.Valuate(s.balances, s.fiat.Primary())
	if err != nil {
		s.mu.Unlock()
		return nil, errors.Wrap(err, "update ratings")
	}

	ratings := make(domain.Ratings, len(valuation.Values))
	for asset, value := range valuation.Values {
		if valuation.Total.IsZero() {
			ratings[asset] = decimal.Zero
			continue
		}
		ratings[asset] = value.Div(valuation.Total)
	}
	s.currentRatings = ratings

	seeded := false
	if len(s.initialRatings) == 0 && len(ratings) > 0 {
		s.initialRatings = ratings.Clone()
		seeded = true
	}
	s.mu.Unlock()

	for _, skipped := range valuation.Skipped {
		s.logger.Warn("asset left unrated", zap.String("asset", skipped.Asset), zap.Error(skipped.Err))
	}
	if seeded {
		s.logger.Info("initial ratings seeded", zap.Int("assets", len(ratings)))
		s.persist()
	}

	return valuation.Skipped, nil
}

// ResetInitialRatings takes the current ratings as the new target allocation.
func (s *Store) ResetInitialRatings() {
	s.mu.Lock()
	s.initialRatings = s.currentRatings.Clone()
	s.mu.Unlock()

	s.persist()
}

// SetInitialRatings replaces the target allocation.
func (s *Store) SetInitialRatings(ratings domain.Ratings) error {
	normalized := make(domain.Ratings, len(ratings))
	for asset, weight := range ratings {
		if weight.IsNegative() {
			return errors.Wrapf(domain.ErrInvalidAmount, "rating of %s is %s", asset, weight.String())
		}
		normalized[domain.NormalizeSymbol(asset)] = weight
	}

	s.mu.Lock()
	s.initialRatings = normalized
	s.mu.Unlock()

	s.persist()
	return nil
}

// Exchange selects another exchange. With update the new exchange's ticker is
// fetched first and installed together with the selection.
func (s *Store) Exchange(ctx context.Context, key string, update bool) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if s.factory == nil {
		return errors.Wrapf(domain.ErrUnknownExchange, "no gateways configured for %q", key)
	}
	gw, err := s.factory(key)
	if err != nil {
		return err
	}

	var ticker domain.Ticker
	if update {
		ticker, err = s.fetchTicker(ctx, gw)
		if err != nil {
			return errors.Wrapf(err, "refresh ticker from %s", key)
		}
	}

	s.mu.Lock()
	s.exchangeKey = key
	s.gateway = gw
	s.quote = quoteOf(gw)
	s.generation++
	if update {
		s.replaceTickerLocked(ticker)
	}
	s.mu.Unlock()

	s.logger.Info("exchange selected", zap.String("exchange", key), zap.Bool("ticker_updated", update))
	return nil
}

func quoteOf(gw Gateway) string {
	if qr, ok := gw.(QuoteReporter); ok {
		if quote := domain.NormalizeSymbol(qr.QuoteAsset()); quote != "" {
			return quote
		}
	}
	return domain.BTC
}

// RefreshTicker pulls a new ticker from the active exchange.
func (s *Store) RefreshTicker(ctx context.Context) error {
	s.mu.RLock()
	gw, gen, key := s.gateway, s.generation, s.exchangeKey
	s.mu.RUnlock()

	if gw == nil {
		return domain.ErrNoExchange
	}

	ticker, err := s.fetchTicker(ctx, gw)
	if err != nil {
		return errors.Wrapf(err, "refresh ticker from %s", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Debug("dropping ticker of a replaced exchange", zap.String("exchange", key))
		return nil
	}
	s.replaceTickerLocked(ticker)
	return nil
}

// RefreshBalances pulls balances from the active exchange when it can report them.
// It returns false when the gateway has no balance support.
func (s *Store) RefreshBalances(ctx context.Context) (bool, error) {
	s.mu.RLock()
	gw, gen, key := s.gateway, s.generation, s.exchangeKey
	s.mu.RUnlock()

	if gw == nil {
		return false, domain.ErrNoExchange
	}
	reporter, ok := gw.(BalanceReporter)
	if !ok {
		return false, nil
	}

	balances, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (domain.Balances, error) {
		return reporter.GetBalances(ctx)
	})
	if err != nil {
		return true, errors.Wrapf(err, "refresh balances from %s", key)
	}
	for asset, amount := range balances {
		if amount.IsNegative() {
			return true, errors.Wrapf(domain.ErrInvalidAmount, "%s reported balance of %s as %s", key, asset, amount.String())
		}
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("dropping balances of a replaced exchange", zap.String("exchange", key))
		return true, nil
	}
	s.applyBalancesLocked(balances)
	s.mu.Unlock()

	s.persist()
	return true, nil
}

func (s *Store) fetchTicker(ctx context.Context, gw Gateway) (domain.Ticker, error) {
	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (domain.Ticker, error) {
		return gw.GetTicker(ctx)
	})
}

// ReplaceTicker installs a ticker snapshot obtained elsewhere.
func (s *Store) ReplaceTicker(ticker domain.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceTickerLocked(ticker)
}

// replaceTickerLocked installs a copy of the ticker with derived fiat prices and
// moves the current price of every checkpoint.
func (s *Store) replaceTickerLocked(ticker domain.Ticker) {
	next := make(domain.Ticker, len(ticker))
	for _, q := range ticker {
		next.Set(q)
	}

	conv := pricer.NewConverter(next, s.fiat.Primary())
	for symbol, q := range next {
		if fiatPrice, err := conv.FiatPrice(symbol); err == nil {
			q.RealPrice = fiatPrice
		} else {
			q.RealPrice = decimal.Zero
		}
		next[symbol] = q
	}

	s.ticker = next
	s.refreshCheckpointsLocked()
}

// Calculate sums all balances in the given currency.
func (s *Store) Calculate(currency string) (pricer.Valuation, error) {
	snap := s.Snapshot()
	return snap.Converter().Valuate(snap.Balances, currency)
}

// CalculateWithRatings sums balance*price*weight over the rated assets.
func (s *Store) CalculateWithRatings(ratings domain.Ratings, currency string) (pricer.Valuation, error) {
	snap := s.Snapshot()
	return snap.Converter().ValuateWithRatings(snap.Balances, ratings, currency)
}

// ApplyFill moves balances for a filled order and re-bases the asset's
// checkpoint to the fill rate, all under one lock acquisition. generation is
// the Snapshot.Generation the order was decided on: a fill that lands after
// a reset or an exchange switch is dropped with domain.ErrStaleState.
func (s *Store) ApplyFill(generation uint64, order domain.TradeOrder, fill domain.OrderFill) error {
	if fill.FilledAmount.IsNegative() || fill.FilledRate.IsNegative() {
		return errors.Wrapf(domain.ErrInvalidAmount, "fill %s @ %s", fill.FilledAmount.String(), fill.FilledRate.String())
	}
	if fill.FilledAmount.IsZero() {
		return nil
	}

	pair := order.Pair()
	cost := fill.FilledAmount.Mul(fill.FilledRate)

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.logger.Warn("dropping fill of a replaced portfolio state",
			zap.String("ref", fill.OrderRef),
			zap.String("order", order.String()))
		return errors.Wrapf(domain.ErrStaleState, "fill %s not applied", fill.OrderRef)
	}

	if pair.To != domain.BTC {
		quotePrice, err := s.converterLocked().BTCPrice(pair.To)
		if err == nil && !quotePrice.IsPositive() {
			err = errors.Wrapf(domain.ErrDivisionByZero, "%s is priced at zero", pair.To)
		}
		if err != nil {
			s.mu.Unlock()
			return errors.Wrapf(err, "settle fill %s in %s", fill.OrderRef, pair.To)
		}
		cost = cost.Div(quotePrice)
	}

	switch order.Side {
	case domain.SideBuy:
		s.balances[pair.From] = s.balances[pair.From].Add(fill.FilledAmount)
		s.balances[pair.To] = s.debitLocked(pair.To, cost)
	case domain.SideSell:
		s.balances[pair.From] = s.debitLocked(pair.From, fill.FilledAmount)
		s.balances[pair.To] = s.balances[pair.To].Add(cost)
	default:
		s.mu.Unlock()
		return errors.Errorf("unknown order side %d", order.Side)
	}

	rate := fill.FilledRate
	if _, err := s.updateCheckpointLocked(pair.From, true, &rate); err != nil {
		s.logger.Warn("checkpoint not re-based after fill", zap.String("asset", pair.From), zap.Error(err))
	}
	s.mu.Unlock()

	s.persist()
	return nil
}

func (s *Store) debitLocked(asset string, amount decimal.Decimal) decimal.Decimal {
	left := s.balances[asset].Sub(amount)
	if left.IsNegative() {
		s.logger.Warn("fill exceeds tracked balance, clamping to zero",
			zap.String("asset", asset),
			zap.String("balance", s.balances[asset].String()),
			zap.String("debit", amount.String()))
		return decimal.Zero
	}
	return left
}

// Reset clears all state back to defaults.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetStateLocked()
	s.fiat = domain.DefaultFiatPair
	s.generation++
	s.mu.Unlock()

	s.logger.Info("store reset")
	s.persist()
}

// Snapshot is a consistent copy of the store taken under one lock.
type Snapshot struct {
	// Generation identifies the exchange selection and reset epoch the
	// snapshot was taken in; pass it back to ApplyFill.
	Generation     uint64
	Exchange       string
	Gateway        Gateway
	// Quote asset orders on Gateway are settled in.
	Quote          string
	Fiat           domain.FiatPair
	Basis          domain.CheckpointBasis
	Balances       domain.Balances
	InitialRatings domain.Ratings
	CurrentRatings domain.Ratings
	Ticker         domain.Ticker
	Checkpoints    map[string]domain.Checkpoint
}

// Converter returns a price converter over the snapshot's ticker and primary fiat.
func (snap Snapshot) Converter() *pricer.Converter {
	return pricer.NewConverter(snap.Ticker, snap.Fiat.Primary())
}

// Snapshot copies the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Generation:     s.generation,
		Exchange:       s.exchangeKey,
		Gateway:        s.gateway,
		Quote:          s.quote,
		Fiat:           s.fiat,
		Basis:          s.basis,
		Balances:       s.balances.Clone(),
		InitialRatings: s.initialRatings.Clone(),
		CurrentRatings: s.currentRatings.Clone(),
		Ticker:         s.ticker.Clone(),
		Checkpoints:    s.copyCheckpointsLocked(),
	}
}

func (s *Store) converterLocked() *pricer.Converter {
	return pricer.NewConverter(s.ticker, s.fiat.Primary())
}

// Converter returns a price converter over the current ticker.
func (s *Store) Converter() *pricer.Converter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.converterLocked()
}

// Balances returns a copy of all balances.
func (s *Store) Balances() domain.Balances {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances.Clone()
}

// Balance returns the balance of one asset, zero when unknown.
func (s *Store) Balance(asset string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[domain.NormalizeSymbol(asset)]
}

// InitialRatings returns a copy of the target allocation.
func (s *Store) InitialRatings() domain.Ratings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialRatings.Clone()
}

// CurrentRatings returns a copy of the realized allocation.
func (s *Store) CurrentRatings() domain.Ratings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRatings.Clone()
}

// Ticker returns a copy of the ticker snapshot.
func (s *Store) Ticker() domain.Ticker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticker.Clone()
}

// FiatCurrencies returns the active fiat pair.
func (s *Store) FiatCurrencies() domain.FiatPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fiat
}

// SetFiatCurrencies selects another fiat pair. Fiat-based checkpoints are
// converted into the new primary currency; those that cannot be converted are dropped.
func (s *Store) SetFiatCurrencies(pair domain.FiatPair) error {
	if err := pair.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.fiat == pair {
		s.mu.Unlock()
		return nil
	}
	old := s.converterLocked()
	s.fiat = pair
	if s.basis == domain.CheckpointBasisFiat {
		s.convertCheckpointsLocked(old, s.converterLocked())
	}
	s.replaceTickerLocked(s.ticker)
	s.mu.Unlock()

	s.logger.Info("fiat currencies changed", zap.String("primary", pair.Primary()), zap.String("secondary", pair.Secondary()))
	s.persist()
	return nil
}

// DefaultExchange returns the active exchange key, empty when none is selected.
func (s *Store) DefaultExchange() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exchangeKey
}

// Gateway returns the active exchange gateway.
func (s *Store) Gateway() (Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gateway == nil {
		return nil, domain.ErrNoExchange
	}
	return s.gateway, nil
}

// APIKey returns the credentials of the active exchange. The result must not be logged or persisted.
func (s *Store) APIKey() (domain.APIKey, error) {
	s.mu.RLock()
	key := s.exchangeKey
	s.mu.RUnlock()

	if key == "" {
		return domain.APIKey{}, domain.ErrNoExchange
	}
	if s.creds == nil {
		return domain.APIKey{}, errors.New("no credential provider configured")
	}
	return s.creds.GetAPIKey(key)
}
