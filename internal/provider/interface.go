package provider

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gopinathshiva/spikewatch/internal/models"
)

// Provider defines the interface for the market-data services consumed
// by the monitor. Implementations are black boxes behind documented
// request/response contracts.
type Provider interface {
	// Chain and list providers
	GetOptionChain(ctx context.Context, underlying, exchange, expiry string, strikeCount int) (*models.ChainSnapshot, error)
	GetUnderlyings(ctx context.Context, exchange string) ([]string, error)
	GetExpiries(ctx context.Context, exchange, underlying string) ([]string, error)

	// Historical candles
	GetHistory(ctx context.Context, symbol, exchange, interval string, start, end time.Time) ([]models.Candle, error)

	// Implied volatility batch
	GetImpliedVolatility(ctx context.Context, symbols []SymbolRef) (*VolatilityBatch, error)

	// Credential presence, checked at session start
	HasCredential() bool
}

// Ensure Client implements Provider at compile time.
var _ Provider = (*Client)(nil)

// IsPermanentAPIError checks if an error is a permanent API error that
// callers should not retry.
func IsPermanentAPIError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// 4xx is permanent except 429 Too Many Requests
		return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 429
	}
	return false
}

// CircuitBreakerProvider wraps a Provider with circuit breaker functionality
type CircuitBreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerProvider implements Provider at compile time.
var _ Provider = (*CircuitBreakerProvider)(nil)

// execBreaker is a generic helper for circuit breaker wrapper methods
func execBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	provider Provider,
	fn func(Provider) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(provider) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerProvider creates a CircuitBreakerProvider with sensible defaults
func NewCircuitBreakerProvider(p Provider) *CircuitBreakerProvider {
	return NewCircuitBreakerProviderWithSettings(p, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerProviderWithSettings creates a CircuitBreakerProvider with custom settings
func NewCircuitBreakerProviderWithSettings(p Provider, settings CircuitBreakerSettings) *CircuitBreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "ProviderCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerProvider{
		provider: p,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// GetOptionChain wraps the underlying provider call with circuit breaker
func (c *CircuitBreakerProvider) GetOptionChain(ctx context.Context, underlying, exchange, expiry string, strikeCount int) (*models.ChainSnapshot, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (*models.ChainSnapshot, error) {
		return p.GetOptionChain(ctx, underlying, exchange, expiry, strikeCount)
	})
}

// GetUnderlyings wraps the underlying provider call with circuit breaker
func (c *CircuitBreakerProvider) GetUnderlyings(ctx context.Context, exchange string) ([]string, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]string, error) {
		return p.GetUnderlyings(ctx, exchange)
	})
}

// GetExpiries wraps the underlying provider call with circuit breaker
func (c *CircuitBreakerProvider) GetExpiries(ctx context.Context, exchange, underlying string) ([]string, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]string, error) {
		return p.GetExpiries(ctx, exchange, underlying)
	})
}

// GetHistory wraps the underlying provider call with circuit breaker
func (c *CircuitBreakerProvider) GetHistory(ctx context.Context, symbol, exchange, interval string, start, end time.Time) ([]models.Candle, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]models.Candle, error) {
		return p.GetHistory(ctx, symbol, exchange, interval, start, end)
	})
}

// GetImpliedVolatility wraps the underlying provider call with circuit breaker
func (c *CircuitBreakerProvider) GetImpliedVolatility(ctx context.Context, symbols []SymbolRef) (*VolatilityBatch, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (*VolatilityBatch, error) {
		return p.GetImpliedVolatility(ctx, symbols)
	})
}

// HasCredential reports credential presence without touching the breaker.
func (c *CircuitBreakerProvider) HasCredential() bool {
	return c.provider.HasCredential()
}
