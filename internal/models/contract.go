// Package models defines the domain types shared across the monitor:
// option contracts, chain snapshots, quotes, and evaluated rows.
package models

import (
	"fmt"
	"time"
)

// OptionType represents the type of option contract
type OptionType string

const (
	// OptionTypeCall represents a call option contract
	OptionTypeCall OptionType = "call"
	// OptionTypePut represents a put option contract
	OptionTypePut OptionType = "put"
)

// Contract is a single monitored option leg. Contracts are created once
// per session from a chain snapshot and are immutable for the session's
// lifetime; the monitored set is replaced wholesale on restart.
type Contract struct {
	Symbol     string
	Type       OptionType
	Strike     float64
	Underlying string
	Exchange   string
}

// Key returns the quote-feed subscription key for the contract.
func (c Contract) Key() string {
	return FeedKey(c.Exchange, c.Symbol)
}

// FeedKey builds the exchange:symbol key used by the quote feed.
func FeedKey(exchange, symbol string) string {
	return fmt.Sprintf("%s:%s", exchange, symbol)
}

// Leg holds the static per-leg fields from a chain snapshot.
type Leg struct {
	Symbol    string
	Open      float64
	PrevClose float64
}

// StrikeRow is one strike level of a chain snapshot. Either leg may be
// missing; a missing leg is simply skipped by the strike selector.
type StrikeRow struct {
	Strike float64
	Call   *Leg
	Put    *Leg
}

// ChainSnapshot is the option chain as returned by the chain provider.
type ChainSnapshot struct {
	ATMStrike     float64
	UnderlyingLTP float64
	Rows          []StrikeRow
}

// Quote is the last-value-wins payload pushed by the quote feed.
type Quote struct {
	LTP            float64
	LastUpdateTime time.Time
}

// Candle is a single minute-resolution historical bar.
type Candle struct {
	Time  time.Time
	Close float64
}

// ReferencePoint is one resolved reference snapshot entry: a price and
// the capture timestamp it was stamped with.
type ReferencePoint struct {
	Price      float64
	CapturedAt time.Time
}
