// Package monitor implements the spike monitoring core: strike
// selection, reference price resolution, implied-volatility enrichment,
// liveness tracking, and the evaluation engine, all owned by a session
// with an explicit start/stop lifecycle.
package monitor

import "github.com/gopinathshiva/spikewatch/internal/models"

// SelectContracts derives the monitored set from a chain snapshot:
// strictly out-of-the-money legs only. Calls above the ATM strike and
// puts below it are included; both legs at the ATM strike are excluded.
// A missing call or put leg at a given strike is skipped, not an error.
func SelectContracts(chain *models.ChainSnapshot, underlying, exchange string) []models.Contract {
	if chain == nil {
		return nil
	}

	contracts := make([]models.Contract, 0, len(chain.Rows))
	for _, row := range chain.Rows {
		switch {
		case row.Strike > chain.ATMStrike:
			if row.Call != nil {
				contracts = append(contracts, models.Contract{
					Symbol:     row.Call.Symbol,
					Type:       models.OptionTypeCall,
					Strike:     row.Strike,
					Underlying: underlying,
					Exchange:   exchange,
				})
			}
		case row.Strike < chain.ATMStrike:
			if row.Put != nil {
				contracts = append(contracts, models.Contract{
					Symbol:     row.Put.Symbol,
					Type:       models.OptionTypePut,
					Strike:     row.Strike,
					Underlying: underlying,
					Exchange:   exchange,
				})
			}
		}
	}
	return contracts
}

// LegIndex maps contract symbols to their static chain fields so the
// engine can read open/previous-close without rescanning the chain.
func LegIndex(chain *models.ChainSnapshot) map[string]models.Leg {
	legs := make(map[string]models.Leg)
	if chain == nil {
		return legs
	}
	for _, row := range chain.Rows {
		if row.Call != nil {
			legs[row.Call.Symbol] = *row.Call
		}
		if row.Put != nil {
			legs[row.Put.Symbol] = *row.Put
		}
	}
	return legs
}
