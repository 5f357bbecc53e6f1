// Package mock generates synthetic market data for end-to-end runs
// without a live provider or feed. It implements the same interfaces
// the real clients do, so the session cannot tell the difference.
package mock

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/provider"
)

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// DataProvider is a synthetic provider.Provider. Prices random-walk
// around a starting spot; option premiums decay with distance from it.
type DataProvider struct {
	mu      sync.Mutex
	spot    float64
	iv      float64 // implied volatility level (percent)
	failIVN int     // make the first N volatility symbols fail per batch
}

var _ provider.Provider = (*DataProvider)(nil)

func NewDataProvider() *DataProvider {
	return &DataProvider{
		spot: 450.0 + secureFloat64()*10,
		iv:   12.0 + secureFloat64()*18,
	}
}

// FailFirstIV makes each volatility batch report its first n symbols as
// failed, exercising the partial-retry path end to end.
func (m *DataProvider) FailFirstIV(n int) {
	m.mu.Lock()
	m.failIVN = n
	m.mu.Unlock()
}

// Spot returns the current synthetic underlying price, moving it a step.
func (m *DataProvider) Spot() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spot += (secureFloat64() - 0.5) * 2
	return m.spot
}

func (m *DataProvider) premiumAt(strike float64) float64 {
	distance := math.Abs(strike - m.spot)
	return math.Max(0.5, m.iv*math.Exp(-distance*0.02))
}

func (m *DataProvider) GetOptionChain(ctx context.Context, underlying, exchange, expiry string, strikeCount int) (*models.ChainSnapshot, error) {
	if _, err := time.Parse("2006-01-02", expiry); err != nil {
		return nil, fmt.Errorf("invalid expiry format: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	strikeInterval := 5.0
	atm := math.Round(m.spot/strikeInterval) * strikeInterval
	half := strikeCount / 2
	if half < 1 {
		half = 1
	}

	snap := &models.ChainSnapshot{ATMStrike: atm, UnderlyingLTP: m.spot}
	for i := -half; i <= half; i++ {
		strike := atm + float64(i)*strikeInterval
		premium := m.premiumAt(strike)
		snap.Rows = append(snap.Rows, models.StrikeRow{
			Strike: strike,
			Call: &models.Leg{
				Symbol:    legSymbol(underlying, expiry, strike, "CE"),
				Open:      premium * 0.9,
				PrevClose: premium * 0.85,
			},
			Put: &models.Leg{
				Symbol:    legSymbol(underlying, expiry, strike, "PE"),
				Open:      premium * 0.9,
				PrevClose: premium * 0.85,
			},
		})
	}
	return snap, nil
}

func legSymbol(underlying, expiry string, strike float64, suffix string) string {
	t, _ := time.Parse("2006-01-02", expiry)
	return fmt.Sprintf("%s%s%d%s", underlying, t.Format("060102"), int(strike), suffix)
}

func (m *DataProvider) GetUnderlyings(ctx context.Context, exchange string) ([]string, error) {
	return []string{"NIFTY", "BANKNIFTY", "SPY"}, nil
}

func (m *DataProvider) GetExpiries(ctx context.Context, exchange, underlying string) ([]string, error) {
	out := make([]string, 0, 4)
	for week := 1; week <= 4; week++ {
		out = append(out, time.Now().AddDate(0, 0, 7*week).Format("2006-01-02"))
	}
	return out, nil
}

// GetHistory emits a flat minute series ending now, so the trailing
// reference basis resolves deterministically.
func (m *DataProvider) GetHistory(ctx context.Context, symbol, exchange, interval string, start, end time.Time) ([]models.Candle, error) {
	m.mu.Lock()
	base := m.iv
	m.mu.Unlock()

	candles := make([]models.Candle, 0, 16)
	for t := start.Truncate(time.Minute); !t.After(end); t = t.Add(time.Minute) {
		candles = append(candles, models.Candle{Time: t, Close: math.Max(0.5, base*0.8)})
	}
	return candles, nil
}

func (m *DataProvider) GetImpliedVolatility(ctx context.Context, symbols []provider.SymbolRef) (*provider.VolatilityBatch, error) {
	m.mu.Lock()
	fail := m.failIVN
	m.failIVN = 0 // fail once, then recover on the retry
	iv := m.iv + (secureFloat64()-0.5)*2
	m.mu.Unlock()

	batch := &provider.VolatilityBatch{Status: provider.StatusSuccess}
	for i, sym := range symbols {
		if i < fail {
			batch.Results = append(batch.Results, provider.VolatilityResult{
				Symbol: sym.Symbol, Status: provider.StatusError,
			})
			batch.Summary.Failed++
			continue
		}
		v := iv
		batch.Results = append(batch.Results, provider.VolatilityResult{
			Symbol: sym.Symbol, Status: provider.StatusSuccess, ImpliedVolatility: &v,
		})
		batch.Summary.Success++
	}
	batch.Summary.Total = len(symbols)
	if batch.Summary.Failed > 0 {
		batch.Status = provider.StatusPartial
	}
	return batch, nil
}

func (m *DataProvider) HasCredential() bool { return true }
