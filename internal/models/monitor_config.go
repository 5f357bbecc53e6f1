package models

import "fmt"

// ReferenceBasis selects the baseline used to compute spike percent.
type ReferenceBasis string

const (
	// BasisOpen uses today's open from the chain snapshot.
	BasisOpen ReferenceBasis = "OPEN"
	// BasisPrevClose uses yesterday's close from the chain snapshot.
	BasisPrevClose ReferenceBasis = "PREV_CLOSE"
	// BasisLastXMinutes uses a trailing time-windowed candle close.
	BasisLastXMinutes ReferenceBasis = "LAST_X_MINUTES"
)

// MonitorConfig is the immutable per-pass parameter snapshot consumed by
// every monitor component. It is mutated only by the owning session
// between evaluation passes.
type MonitorConfig struct {
	Exchange    string `yaml:"exchange" json:"exchange"`
	Underlying  string `yaml:"underlying" json:"underlying"`
	Expiry      string `yaml:"expiry" json:"expiry"` // YYYY-MM-DD
	StrikeCount int    `yaml:"strike_count" json:"strikeCount"`

	DistanceThreshold float64 `yaml:"distance_threshold" json:"distanceThreshold"`
	PremiumThreshold  float64 `yaml:"premium_threshold" json:"premiumThreshold"`
	IVThreshold       float64 `yaml:"iv_threshold" json:"ivThreshold"`
	SpikeThreshold    float64 `yaml:"spike_threshold" json:"spikeThreshold"`
	LookbackMinutes   int     `yaml:"lookback_minutes" json:"lookbackMinutes"`

	ReferenceBasis ReferenceBasis `yaml:"reference_basis" json:"referenceBasis"`

	// Gating flags reduce enrichment volume and hide the gated rows
	// from the evaluated table.
	SkipIVOnDistanceFail bool `yaml:"skip_iv_on_distance_fail" json:"skipIvWhenDistanceFail"`
	SkipIVOnPremiumFail  bool `yaml:"skip_iv_on_premium_fail" json:"skipIvWhenPremiumFail"`
}

// Validate checks the per-session monitor parameters.
func (c *MonitorConfig) Validate() error {
	if c.Exchange == "" {
		return fmt.Errorf("exchange is required")
	}
	if c.Underlying == "" {
		return fmt.Errorf("underlying is required")
	}
	if c.StrikeCount <= 0 {
		return fmt.Errorf("strike_count must be > 0")
	}
	switch c.ReferenceBasis {
	case BasisOpen, BasisPrevClose, BasisLastXMinutes:
	default:
		return fmt.Errorf("reference_basis must be OPEN, PREV_CLOSE, or LAST_X_MINUTES")
	}
	if c.ReferenceBasis == BasisLastXMinutes && c.LookbackMinutes <= 0 {
		return fmt.Errorf("lookback_minutes must be > 0 for LAST_X_MINUTES")
	}
	return nil
}
