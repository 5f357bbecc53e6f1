package monitor

import (
	"context"
	"log"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/provider"
)

// Resolver captures reference prices for the LAST_X_MINUTES basis from
// minute-resolution historical candles. OPEN and PREV_CLOSE need no
// resolution: the engine reads those directly off the chain's static
// leg fields.
type Resolver struct {
	provider provider.Provider
	logger   *log.Logger
	now      func() time.Time
}

// NewResolver creates a resolver backed by the given provider.
func NewResolver(p provider.Provider, logger *log.Logger) *Resolver {
	return &Resolver{provider: p, logger: logger, now: time.Now}
}

// Resolve fetches candles contract-by-contract and returns a delta map
// keyed by contract symbol. For each contract the reference price is
// the close of the latest candle at or before the cutoff (now minus
// lookbackMinutes), stamped with the cutoff time. Contracts whose fetch
// fails or whose series has no usable candle are skipped, never
// aborting the batch. Non-LAST_X_MINUTES bases return an empty map.
func (r *Resolver) Resolve(ctx context.Context, basis models.ReferenceBasis, contracts []models.Contract, lookbackMinutes int) map[string]models.ReferencePoint {
	refs := make(map[string]models.ReferencePoint)
	if basis != models.BasisLastXMinutes {
		return refs
	}

	now := r.now()
	cutoff := now.Add(-time.Duration(lookbackMinutes) * time.Minute)

	for _, c := range contracts {
		if ctx.Err() != nil {
			return refs
		}
		candles, err := r.provider.GetHistory(ctx, c.Symbol, c.Exchange, "1m", cutoff, now)
		if err != nil {
			r.logger.Printf("reference: candle fetch failed for %s: %v", c.Symbol, err)
			continue
		}
		candle, ok := latestAtOrBefore(candles, cutoff)
		if !ok {
			r.logger.Printf("reference: no candle at or before cutoff for %s", c.Symbol)
			continue
		}
		refs[c.Symbol] = models.ReferencePoint{Price: candle.Close, CapturedAt: cutoff}
	}
	return refs
}

// latestAtOrBefore picks the candle with the greatest time not after
// the cutoff. The series is not assumed to be sorted.
func latestAtOrBefore(candles []models.Candle, cutoff time.Time) (models.Candle, bool) {
	var best models.Candle
	found := false
	for _, c := range candles {
		if c.Time.After(cutoff) {
			continue
		}
		if !found || c.Time.After(best.Time) {
			best = c
			found = true
		}
	}
	return best, found
}
