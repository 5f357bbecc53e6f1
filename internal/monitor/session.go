package monitor

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gopinathshiva/spikewatch/internal/feed"
	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/provider"
	"github.com/gopinathshiva/spikewatch/internal/retry"
	"github.com/gopinathshiva/spikewatch/internal/util"
)

// Session owns all mutable monitoring state and is its sole mutation
// surface: feed ticks, volatility merges, reference resolutions, and
// config updates all funnel through it under one mutex. Background
// results carry the generation they were started under; a result from
// a stopped or replaced generation is discarded, never merged.
type Session struct {
	provider   provider.Provider
	stream     feed.Stream
	resolver   *Resolver
	logger     *log.Logger
	staleAfter time.Duration
	retryDelay time.Duration
	retryCfg   retry.Config
	now        func() time.Time

	mu         sync.Mutex
	gen        uint64
	id         string
	active     bool
	cfg        models.MonitorConfig
	chain      *models.ChainSnapshot
	contracts  []models.Contract
	legs       map[string]models.Leg
	quotes     map[string]models.Quote
	keySet     map[string]struct{}
	ticks      *TickTracker
	volatility map[string]float64
	references map[string]models.ReferencePoint
	rows       []models.EvaluatedRow
	hidden     models.HiddenCounts
	ivSummary  *Summary
	scheduler  *Scheduler
	ctx        context.Context
	cancel     context.CancelFunc

	underlyings map[string][]string // exchange -> cached list
	expiries    map[string][]string // exchange:underlying -> cached list
}

// NewSession creates an idle session. staleAfter is the quote liveness
// window.
func NewSession(p provider.Provider, stream feed.Stream, logger *log.Logger, staleAfter time.Duration) *Session {
	return &Session{
		provider:    p,
		stream:      stream,
		resolver:    NewResolver(p, logger),
		logger:      logger,
		staleAfter:  staleAfter,
		retryCfg:    retry.DefaultConfig,
		now:         time.Now,
		quotes:      make(map[string]models.Quote),
		volatility:  make(map[string]float64),
		references:  make(map[string]models.ReferencePoint),
		underlyings: make(map[string][]string),
		expiries:    make(map[string][]string),
	}
}

// Start validates the request, fetches the chain, and begins
// monitoring. Validation or chain failure leaves the session untouched:
// nothing is mutated until the chain snapshot is in hand. Starting over
// an active session replaces it wholesale.
func (s *Session) Start(ctx context.Context, cfg models.MonitorConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid monitor config: %w", err)
	}
	expiry, err := util.ParseProviderExpiry(cfg.Expiry)
	if err != nil {
		return "", fmt.Errorf("invalid expiry %q: want YYYY-MM-DD or DDMMMYY", cfg.Expiry)
	}
	cfg.Expiry = expiry
	if !s.provider.HasCredential() {
		return "", fmt.Errorf("no provider credential configured")
	}

	chain, err := retry.Do(ctx, s.logger, s.retryCfg, "option chain fetch",
		func(ctx context.Context) (*models.ChainSnapshot, error) {
			return s.provider.GetOptionChain(ctx, cfg.Underlying, cfg.Exchange, cfg.Expiry, cfg.StrikeCount)
		})
	if err != nil {
		return "", fmt.Errorf("option chain fetch: %w", err)
	}
	if len(chain.Rows) == 0 {
		return "", fmt.Errorf("empty option chain for %s %s", cfg.Underlying, cfg.Expiry)
	}

	contracts := SelectContracts(chain, cfg.Underlying, cfg.Exchange)

	s.mu.Lock()
	var oldKeys []string
	if s.active {
		oldKeys = s.feedKeysLocked()
		s.stopLocked()
	}
	s.gen++
	gen := s.gen
	s.id = uuid.NewString()
	s.active = true
	s.cfg = cfg
	s.chain = chain
	s.contracts = contracts
	s.legs = LegIndex(chain)
	s.quotes = make(map[string]models.Quote)
	s.ticks = NewTickTracker(s.staleAfter)
	s.volatility = make(map[string]float64)
	s.references = make(map[string]models.ReferencePoint)
	s.ivSummary = nil
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.scheduler = NewScheduler(s.provider, s.logger, contracts,
		s.gateFor(gen), s.mergeFor(gen), s.retryDelay)
	s.recomputeLocked()

	s.keySet = make(map[string]struct{}, len(contracts)+1)
	for _, k := range s.feedKeysLocked() {
		s.keySet[k] = struct{}{}
	}

	id := s.id
	sessionCtx := s.ctx
	sched := s.scheduler
	keys := s.feedKeysLocked()
	s.mu.Unlock()

	if len(oldKeys) > 0 {
		if err := s.stream.Unsubscribe(oldKeys...); err != nil {
			s.logger.Printf("session %s: feed unsubscribe of replaced session failed: %v", id, err)
		}
	}
	if err := s.stream.Subscribe(keys...); err != nil {
		s.logger.Printf("session %s: feed subscribe failed: %v", id, err)
	}
	go s.resolveReferences(sessionCtx, gen, cfg, contracts)
	go sched.Fetch(sessionCtx, nil)

	s.logger.Printf("session %s: monitoring %d contracts on %s %s (atm %.2f)",
		id, len(contracts), cfg.Underlying, cfg.Expiry, chain.ATMStrike)
	return id, nil
}

// Stop halts all scheduled work. Reference snapshots are cleared; the
// last evaluated rows are retained for inspection.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	keys := s.feedKeysLocked()
	s.stopLocked()
	s.mu.Unlock()

	if err := s.stream.Unsubscribe(keys...); err != nil {
		s.logger.Printf("session: feed unsubscribe failed: %v", err)
	}
}

func (s *Session) stopLocked() {
	s.active = false
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.references = make(map[string]models.ReferencePoint)
}

// HandleQuote is the feed callback. Quotes are last-value-wins; the
// tick tracker keeps liveness monotonic under out-of-order delivery.
// Keys outside the monitored set are dropped: the feed can deliver a
// few straggler quotes between an unsubscribe request and its effect.
func (s *Session) HandleQuote(key string, q models.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	if _, ok := s.keySet[key]; !ok {
		return
	}
	s.quotes[key] = q
	at := q.LastUpdateTime
	if at.IsZero() {
		at = s.now()
	}
	s.ticks.Record(key, at)
	s.recomputeLocked()
}

// UpdateConfig swaps thresholds, gating flags, and reference mode
// between passes. A change to the reference basis or lookback window
// triggers a re-resolution; structural fields (underlying, expiry,
// strike count) take effect on the next Start.
func (s *Session) UpdateConfig(cfg models.MonitorConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid monitor config: %w", err)
	}

	s.mu.Lock()
	prev := s.cfg
	cfg.Underlying = prev.Underlying
	cfg.Exchange = prev.Exchange
	cfg.Expiry = prev.Expiry
	cfg.StrikeCount = prev.StrikeCount
	s.cfg = cfg
	s.recomputeLocked()

	needResolve := s.active &&
		(cfg.ReferenceBasis != prev.ReferenceBasis ||
			(cfg.ReferenceBasis == models.BasisLastXMinutes && cfg.LookbackMinutes != prev.LookbackMinutes))
	gen := s.gen
	ctx := s.ctx
	contracts := s.contracts
	s.mu.Unlock()

	if needResolve {
		go s.resolveReferences(ctx, gen, cfg, contracts)
	}
	return nil
}

// resolveReferences runs the blocking candle resolution off the lock,
// then overlays the delta if the session generation still matches.
func (s *Session) resolveReferences(ctx context.Context, gen uint64, cfg models.MonitorConfig, contracts []models.Contract) {
	delta := s.resolver.Resolve(ctx, cfg.ReferenceBasis, contracts, cfg.LookbackMinutes)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.active {
		return
	}
	for k, v := range delta {
		s.references[k] = v
	}
	s.recomputeLocked()
}

// mergeFor builds the volatility merge callback bound to one session
// generation.
func (s *Session) mergeFor(gen uint64) MergeFunc {
	return func(delta map[string]float64, summary Summary) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen || !s.active {
			return
		}
		for k, v := range delta {
			s.volatility[k] = v
		}
		s.ivSummary = &summary
		s.recomputeLocked()
	}
}

// gateFor builds the enrichment gating callback. Gating reads the
// current quotes, so it reflects whatever has ticked by fetch time.
// The distance gate is bypassed when the spot price is unknown.
func (s *Session) gateFor(gen uint64) GateFunc {
	return func(contracts []models.Contract) []models.Contract {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen || !s.active {
			return nil
		}

		spot := resolvePrice(
			liveQuoteSource(s.quotes, models.FeedKey(s.cfg.Exchange, s.cfg.Underlying)),
			staticSource(chainLTP(s.chain)),
		)

		out := make([]models.Contract, 0, len(contracts))
		for _, c := range contracts {
			if s.cfg.SkipIVOnDistanceFail && spot > 0 {
				if math.Abs(spot-c.Strike) <= s.cfg.DistanceThreshold {
					continue
				}
			}
			if s.cfg.SkipIVOnPremiumFail {
				premium := resolvePrice(liveQuoteSource(s.quotes, c.Key()))
				if premium <= s.cfg.PremiumThreshold {
					continue
				}
			}
			out = append(out, c)
		}
		return out
	}
}

func (s *Session) feedKeysLocked() []string {
	keys := make([]string, 0, len(s.contracts)+1)
	keys = append(keys, models.FeedKey(s.cfg.Exchange, s.cfg.Underlying))
	for _, c := range s.contracts {
		keys = append(keys, c.Key())
	}
	return keys
}

func (s *Session) recomputeLocked() {
	var ticks map[string]time.Time
	if s.ticks != nil {
		ticks = s.ticks.Snapshot()
	}
	res := Evaluate(EvalInput{
		Config:     s.cfg,
		Chain:      s.chain,
		Contracts:  s.contracts,
		Legs:       s.legs,
		Quotes:     s.quotes,
		Ticks:      ticks,
		Volatility: s.volatility,
		References: s.references,
		Now:        s.now(),
		StaleAfter: s.staleAfter,
	})
	s.rows = res.Rows
	s.hidden = res.Hidden
}

// Rows returns a copy of the last evaluation pass. Rows survive Stop
// so the final table stays inspectable.
func (s *Session) Rows() ([]models.EvaluatedRow, models.HiddenCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]models.EvaluatedRow, len(s.rows))
	copy(rows, s.rows)
	return rows, s.hidden
}

// Summary returns the most recent volatility batch outcome, if any.
func (s *Session) Summary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ivSummary == nil {
		return Summary{}, false
	}
	return *s.ivSummary, true
}

// Active reports whether a monitoring session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ID returns the current (or last) session ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Config returns the current monitor parameters.
func (s *Session) Config() models.MonitorConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Underlyings refreshes the cached underlying list for an exchange. A
// fetch failure is logged and the stale list returned unchanged.
func (s *Session) Underlyings(ctx context.Context, exchange string) []string {
	list, err := s.provider.GetUnderlyings(ctx, exchange)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Printf("underlyings fetch failed for %s, keeping stale list: %v", exchange, err)
		return s.underlyings[exchange]
	}
	s.underlyings[exchange] = list
	return list
}

// Expiries refreshes the cached expiry list for an underlying. A fetch
// failure is logged and the stale list returned unchanged.
func (s *Session) Expiries(ctx context.Context, exchange, underlying string) []string {
	list, err := s.provider.GetExpiries(ctx, exchange, underlying)
	key := models.FeedKey(exchange, underlying)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Printf("expiries fetch failed for %s, keeping stale list: %v", key, err)
		return s.expiries[key]
	}
	s.expiries[key] = list
	return list
}
