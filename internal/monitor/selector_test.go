package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopinathshiva/spikewatch/internal/models"
)

func leg(symbol string, open, prevClose float64) *models.Leg {
	return &models.Leg{Symbol: symbol, Open: open, PrevClose: prevClose}
}

// fiveStrikeChain is the canonical selection scenario: strikes 90..110
// around an ATM of 100, both legs present at every strike.
func fiveStrikeChain() *models.ChainSnapshot {
	return &models.ChainSnapshot{
		ATMStrike:     100,
		UnderlyingLTP: 100.5,
		Rows: []models.StrikeRow{
			{Strike: 90, Call: leg("U90CE", 1, 1), Put: leg("U90PE", 2, 2)},
			{Strike: 95, Call: leg("U95CE", 1, 1), Put: leg("U95PE", 3, 3)},
			{Strike: 100, Call: leg("U100CE", 5, 5), Put: leg("U100PE", 5, 5)},
			{Strike: 105, Call: leg("U105CE", 3, 3), Put: leg("U105PE", 1, 1)},
			{Strike: 110, Call: leg("U110CE", 2, 2), Put: leg("U110PE", 1, 1)},
		},
	}
}

func TestSelectContractsOTMOnly(t *testing.T) {
	contracts := SelectContracts(fiveStrikeChain(), "UNDER", "NFO")
	require.Len(t, contracts, 4)

	bySymbol := make(map[string]models.Contract)
	for _, c := range contracts {
		bySymbol[c.Symbol] = c
	}

	assert.Equal(t, models.OptionTypeCall, bySymbol["U105CE"].Type)
	assert.Equal(t, models.OptionTypeCall, bySymbol["U110CE"].Type)
	assert.Equal(t, models.OptionTypePut, bySymbol["U90PE"].Type)
	assert.Equal(t, models.OptionTypePut, bySymbol["U95PE"].Type)

	// ATM legs excluded on both sides.
	assert.NotContains(t, bySymbol, "U100CE")
	assert.NotContains(t, bySymbol, "U100PE")
	// ITM legs excluded.
	assert.NotContains(t, bySymbol, "U90CE")
	assert.NotContains(t, bySymbol, "U110PE")

	for _, c := range contracts {
		assert.Equal(t, "UNDER", c.Underlying)
		assert.Equal(t, "NFO", c.Exchange)
	}
}

func TestSelectContractsMissingLegSkipped(t *testing.T) {
	chain := &models.ChainSnapshot{
		ATMStrike: 100,
		Rows: []models.StrikeRow{
			{Strike: 95, Put: leg("U95PE", 1, 1)},
			{Strike: 105},                        // neither leg quoted
			{Strike: 110, Put: leg("U110PE", 1, 1)}, // call missing, put is ITM
		},
	}
	contracts := SelectContracts(chain, "UNDER", "NFO")
	require.Len(t, contracts, 1)
	assert.Equal(t, "U95PE", contracts[0].Symbol)
}

func TestSelectContractsNilChain(t *testing.T) {
	assert.Empty(t, SelectContracts(nil, "UNDER", "NFO"))
}

func TestLegIndex(t *testing.T) {
	legs := LegIndex(fiveStrikeChain())
	assert.Len(t, legs, 10)
	assert.Equal(t, 3.0, legs["U105CE"].Open)
	assert.Equal(t, 2.0, legs["U90PE"].PrevClose)
}
