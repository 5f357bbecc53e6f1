package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Response status values used by every provider endpoint.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// ============ EXACT API Response Structures ============

// envelope is the common {status, message} wrapper on provider responses.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OptionChainResponse represents the API response for option chain requests.
type OptionChainResponse struct {
	envelope
	Data struct {
		ATMStrike     float64        `json:"atm_strike"`
		UnderlyingLTP float64        `json:"underlying_ltp"`
		Chain         []ChainRowData `json:"chain"`
	} `json:"data"`
}

// ChainRowData is one strike level in a chain response. Either leg may
// be absent.
type ChainRowData struct {
	Strike float64       `json:"strike"`
	Call   *ChainLegData `json:"call,omitempty"`
	Put    *ChainLegData `json:"put,omitempty"`
}

// ChainLegData holds the static per-leg fields of a chain response.
type ChainLegData struct {
	Symbol    string  `json:"symbol"`
	Open      float64 `json:"open"`
	PrevClose float64 `json:"prev_close"`
}

// UnderlyingsResponse represents the underlying list response.
type UnderlyingsResponse struct {
	envelope
	Underlyings []string `json:"underlyings"`
}

// ExpiriesResponse represents the expiry list response.
type ExpiriesResponse struct {
	envelope
	Expiries []string `json:"expiries"`
}

// historyRequest is the POST body for historical candle fetches.
type historyRequest struct {
	Symbol    string `json:"symbol"`
	Exchange  string `json:"exchange"`
	Interval  string `json:"interval"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// HistoryResponse represents the historical candle response.
type HistoryResponse struct {
	envelope
	Data []CandleRow `json:"data"`
}

// CandleRow tolerates the provider's alternative field spellings: the
// bar time may arrive as timestamp, date, or time, and the close price
// as close, c, or lastPrice.
type CandleRow struct {
	Timestamp *flexTime `json:"timestamp,omitempty"`
	Date      *flexTime `json:"date,omitempty"`
	TimeField *flexTime `json:"time,omitempty"`

	Close     *float64 `json:"close,omitempty"`
	C         *float64 `json:"c,omitempty"`
	LastPrice *float64 `json:"lastPrice,omitempty"`
}

// BarTime returns the bar timestamp, whichever field carried it.
func (r CandleRow) BarTime() (time.Time, bool) {
	for _, t := range []*flexTime{r.Timestamp, r.Date, r.TimeField} {
		if t != nil {
			return t.Time, true
		}
	}
	return time.Time{}, false
}

// ClosePrice returns the bar close, whichever field carried it.
func (r CandleRow) ClosePrice() (float64, bool) {
	for _, p := range []*float64{r.Close, r.C, r.LastPrice} {
		if p != nil {
			return *p, true
		}
	}
	return 0, false
}

// flexTime accepts unix seconds, unix milliseconds, or common string
// timestamp layouts.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				f.Time = t
				return nil
			}
		}
		return fmt.Errorf("unrecognized timestamp %q", s)
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("unrecognized timestamp %s: %w", b, err)
	}
	// Millisecond epochs are 13 digits into the 2200s; second epochs
	// stay under 11 until then.
	if n > 1e12 {
		f.Time = time.UnixMilli(n).UTC()
	} else {
		f.Time = time.Unix(n, 0).UTC()
	}
	return nil
}

// SymbolRef identifies one contract in a volatility batch request.
type SymbolRef struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

// volatilityRequest is the POST body for implied volatility batches.
type volatilityRequest struct {
	Symbols []SymbolRef `json:"symbols"`
}

// VolatilityResult is the per-symbol outcome inside a batch response.
type VolatilityResult struct {
	Symbol            string   `json:"symbol"`
	Status            string   `json:"status"`
	ImpliedVolatility *float64 `json:"impliedVolatility,omitempty"`
}

// BatchSummary counts the outcome of a volatility batch. Missing fields
// are derived from the data array.
type BatchSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// VolatilityBatch is the decoded result of one batch fetch.
type VolatilityBatch struct {
	Status  string             `json:"status"`
	Results []VolatilityResult `json:"data"`
	Summary BatchSummary       `json:"summary"`
}

// volatilityResponse is the raw wire form; Summary is optional.
type volatilityResponse struct {
	envelope
	Data    []VolatilityResult `json:"data"`
	Summary *BatchSummary      `json:"summary,omitempty"`
}

// normalize derives the summary from the data array when the provider
// omitted it or left fields zeroed.
func (v *volatilityResponse) normalize() *VolatilityBatch {
	batch := &VolatilityBatch{
		Status:  v.Status,
		Results: v.Data,
	}
	if v.Summary != nil {
		batch.Summary = *v.Summary
	}
	if batch.Summary.Total == 0 {
		batch.Summary.Total = len(v.Data)
	}
	if batch.Summary.Success == 0 {
		for _, r := range v.Data {
			if r.Status == StatusSuccess {
				batch.Summary.Success++
			}
		}
	}
	if batch.Summary.Failed == 0 {
		batch.Summary.Failed = batch.Summary.Total - batch.Summary.Success
	}
	return batch
}
