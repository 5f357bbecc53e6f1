package models

import "time"

// EvaluatedRow is the fully derived per-contract verdict. Rows are
// recomputed from scratch on every dependency change; they are never
// persisted or mutated incrementally.
type EvaluatedRow struct {
	Contract Contract `json:"contract"`

	Distance       float64   `json:"distance"`
	Premium        float64   `json:"premium"`
	IV             float64   `json:"iv"`
	IVKnown        bool      `json:"ivKnown"`
	SpikePercent   float64   `json:"spikePercent"`
	ReferencePrice float64   `json:"referencePrice"`
	LastTick       time.Time `json:"lastTick"`

	DistancePass bool `json:"isDistancePass"`
	PremiumPass  bool `json:"isPremiumPass"`
	IVPass       bool `json:"isIvPass"`
	SpikePass    bool `json:"isSpikePass"`
	HistoryPass  bool `json:"isHistoryPass"`
	AllPass      bool `json:"isAllPass"`
}

// HiddenCounts reports how many rows each gating flag removed from the
// evaluated table.
type HiddenCounts struct {
	Distance int `json:"distance"`
	Premium  int `json:"premium"`
}
