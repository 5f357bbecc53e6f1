package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/provider"
)

// defaultRetryDelay is the single-shot delay before retrying the failed
// remainder of a partial volatility batch.
const defaultRetryDelay = 5 * time.Second

// Summary is the outcome of the most recent volatility batch.
type Summary struct {
	Status  string `json:"status"`
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

// GateFunc narrows the monitored set to enrichment candidates. It is
// applied only when no override set is supplied.
type GateFunc func(contracts []models.Contract) []models.Contract

// MergeFunc overlays successfully fetched volatilities onto the owning
// session's state.
type MergeFunc func(delta map[string]float64, summary Summary)

// Scheduler runs implied-volatility batches for one session. A partial
// response arms a single-shot retry timer scoped to exactly the failed
// symbols; arming cancels any timer already pending, so at most one
// retry is ever scheduled. Retries continue until a round completes
// cleanly or the session stops.
type Scheduler struct {
	provider   provider.Provider
	logger     *log.Logger
	contracts  []models.Contract
	gate       GateFunc
	merge      MergeFunc
	retryDelay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewScheduler creates a scheduler bound to one session's monitored
// set. A non-positive retryDelay selects the default.
func NewScheduler(p provider.Provider, logger *log.Logger, contracts []models.Contract, gate GateFunc, merge MergeFunc, retryDelay time.Duration) *Scheduler {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Scheduler{
		provider:   p,
		logger:     logger,
		contracts:  contracts,
		gate:       gate,
		merge:      merge,
		retryDelay: retryDelay,
	}
}

// Fetch runs one volatility batch. A nil override means the gated
// monitored set; a retry passes the pending remainder as the override,
// bypassing gating. Safe to call from any goroutine.
func (s *Scheduler) Fetch(ctx context.Context, override []models.Contract) {
	candidates := override
	if candidates == nil {
		candidates = s.gate(s.contracts)
	}
	if len(candidates) == 0 {
		return
	}

	refs := make([]provider.SymbolRef, 0, len(candidates))
	for _, c := range candidates {
		refs = append(refs, provider.SymbolRef{Symbol: c.Symbol, Exchange: c.Exchange})
	}

	batch, err := s.provider.GetImpliedVolatility(ctx, refs)
	if err != nil || batch.Status == provider.StatusError {
		if err != nil {
			if provider.IsPermanentAPIError(err) {
				s.logger.Printf("volatility: permanent error: %v", err)
			} else {
				s.logger.Printf("volatility: fetch failed: %v", err)
			}
		} else {
			s.logger.Printf("volatility: batch rejected: total=%d", len(candidates))
		}
		summary := Summary{Status: provider.StatusError, Total: len(candidates), Failed: len(candidates)}
		if s.recordAndArm(ctx, summary, nil) {
			s.merge(nil, summary)
		}
		return
	}

	delta := make(map[string]float64)
	for _, res := range batch.Results {
		if res.Status == provider.StatusSuccess && res.ImpliedVolatility != nil {
			delta[res.Symbol] = *res.ImpliedVolatility
		}
	}

	summary := Summary{
		Status:  batch.Status,
		Total:   batch.Summary.Total,
		Success: batch.Summary.Success,
		Failed:  batch.Summary.Failed,
	}

	// Pending = requested minus succeeded, derived from the request,
	// not from the response's own accounting.
	var pending []models.Contract
	if batch.Status == provider.StatusPartial {
		for _, c := range candidates {
			if _, ok := delta[c.Symbol]; !ok {
				pending = append(pending, c)
			}
		}
	}

	if s.recordAndArm(ctx, summary, pending) {
		s.merge(delta, summary)
	}
}

// recordAndArm applies the timer transition under the scheduler lock
// and reports whether the caller may merge. A stopped scheduler
// discards everything; no fetch mutates state after Stop. An error
// round never arms a retry, so the pending slice is nil on that path.
func (s *Scheduler) recordAndArm(ctx context.Context, summary Summary, pending []models.Contract) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(pending) > 0 {
		remainder := pending
		s.timer = time.AfterFunc(s.retryDelay, func() {
			s.Fetch(ctx, remainder)
		})
		s.logger.Printf("volatility: partial batch, retrying %d of %d in %v", len(pending), summary.Total, s.retryDelay)
	}
	return true
}

// Stop cancels any pending retry and discards in-flight results.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
