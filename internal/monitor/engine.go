package monitor

import (
	"math"
	"sort"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/models"
)

// priceSource yields a candidate price. Sources are consulted in order
// and the first positive price wins, making fallback precedence
// explicit and testable in isolation.
type priceSource func() (float64, bool)

func resolvePrice(sources ...priceSource) float64 {
	for _, src := range sources {
		if p, ok := src(); ok && p > 0 {
			return p
		}
	}
	return 0
}

func liveQuoteSource(quotes map[string]models.Quote, key string) priceSource {
	return func() (float64, bool) {
		q, ok := quotes[key]
		return q.LTP, ok
	}
}

func staticSource(price float64) priceSource {
	return func() (float64, bool) { return price, price > 0 }
}

// EvalInput is the complete snapshot an evaluation pass reads. The
// engine never mutates it and never reaches outside it.
type EvalInput struct {
	Config     models.MonitorConfig
	Chain      *models.ChainSnapshot
	Contracts  []models.Contract
	Legs       map[string]models.Leg             // symbol -> static chain fields
	Quotes     map[string]models.Quote           // feed key -> last quote
	Ticks      map[string]time.Time              // feed key -> last tick time
	Volatility map[string]float64                // symbol -> implied volatility (percent)
	References map[string]models.ReferencePoint  // symbol -> trailing-window snapshot

	Now        time.Time
	StaleAfter time.Duration
}

// EvalResult is one full evaluation pass: the visible table plus the
// per-gate hidden-row counters.
type EvalResult struct {
	Rows   []models.EvaluatedRow
	Hidden models.HiddenCounts
}

// Evaluate derives the full row table from the input snapshot. Every
// row is rebuilt from scratch; nothing is carried over from a previous
// pass. All five threshold predicates are strict greater-than, and an
// unknown implied volatility fails its predicate rather than passing
// vacuously.
func Evaluate(in EvalInput) EvalResult {
	spot := resolvePrice(
		liveQuoteSource(in.Quotes, models.FeedKey(in.Config.Exchange, in.Config.Underlying)),
		staticSource(chainLTP(in.Chain)),
	)

	var res EvalResult
	res.Rows = make([]models.EvaluatedRow, 0, len(in.Contracts))

	for _, c := range in.Contracts {
		key := c.Key()
		leg := in.Legs[c.Symbol]

		distance := math.Abs(spot - c.Strike)
		premium := resolvePrice(liveQuoteSource(in.Quotes, key))

		ref := referencePrice(in, c.Symbol, leg)
		spikePct := 0.0
		if ref > 0 {
			spikePct = (premium - ref) / ref * 100
		}

		iv, ivKnown := in.Volatility[c.Symbol]
		lastTick := in.Ticks[key]

		row := models.EvaluatedRow{
			Contract:       c,
			Distance:       distance,
			Premium:        premium,
			IV:             iv,
			IVKnown:        ivKnown,
			SpikePercent:   spikePct,
			ReferencePrice: ref,
			LastTick:       lastTick,

			DistancePass: distance > in.Config.DistanceThreshold,
			PremiumPass:  premium > in.Config.PremiumThreshold,
			IVPass:       ivKnown && iv > in.Config.IVThreshold,
			SpikePass:    spikePct > in.Config.SpikeThreshold,
			HistoryPass:  Live(lastTick, in.Now, in.StaleAfter),
		}
		row.AllPass = row.DistancePass && row.PremiumPass && row.IVPass &&
			row.SpikePass && row.HistoryPass

		// Gating hides failing rows from the table entirely; the
		// distance gate is counted before the premium gate.
		if in.Config.SkipIVOnDistanceFail && !row.DistancePass {
			res.Hidden.Distance++
			continue
		}
		if in.Config.SkipIVOnPremiumFail && !row.PremiumPass {
			res.Hidden.Premium++
			continue
		}
		res.Rows = append(res.Rows, row)
	}

	sort.SliceStable(res.Rows, func(i, j int) bool {
		if res.Rows[i].AllPass != res.Rows[j].AllPass {
			return res.Rows[i].AllPass
		}
		return res.Rows[i].Contract.Strike < res.Rows[j].Contract.Strike
	})
	return res
}

// referencePrice picks the reference per the configured basis, with a
// uniform fallback: a zero reference falls back to the leg's previous
// close.
func referencePrice(in EvalInput, symbol string, leg models.Leg) float64 {
	var ref float64
	switch in.Config.ReferenceBasis {
	case models.BasisOpen:
		ref = leg.Open
	case models.BasisPrevClose:
		ref = leg.PrevClose
	case models.BasisLastXMinutes:
		ref = in.References[symbol].Price
	}
	if ref == 0 {
		ref = leg.PrevClose
	}
	return ref
}

func chainLTP(chain *models.ChainSnapshot) float64 {
	if chain == nil {
		return 0
	}
	return chain.UnderlyingLTP
}
