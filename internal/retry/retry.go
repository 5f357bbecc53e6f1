// Package retry provides bounded retries with jittered backoff for
// transient provider failures. Only start-time fetches use it; the
// volatility retry cycle has its own single-shot timer semantics.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/provider"
)

type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Do runs fn until it succeeds, a permanent error occurs, or the retry
// budget is exhausted. Each failed attempt is logged with its backoff.
func Do[T any](ctx context.Context, logger *log.Logger, cfg Config, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	opCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := opCtx.Err(); err != nil {
			return zero, fmt.Errorf("%s timed out after %v: %w", label, cfg.Timeout, err)
		}

		res, err := fn(opCtx)
		if err == nil {
			if attempt > 0 {
				logger.Printf("%s succeeded on attempt %d", label, attempt+1)
			}
			return res, nil
		}

		lastErr = err
		logger.Printf("%s attempt %d/%d failed: %v", label, attempt+1, cfg.MaxRetries+1, err)

		if !IsTransient(err) || attempt == cfg.MaxRetries {
			break
		}

		logger.Printf("Transient error, retrying %s in %v", label, backoff)
		select {
		case <-time.After(backoff):
			backoff = nextBackoff(backoff, cfg.MaxBackoff)
		case <-opCtx.Done():
			return zero, fmt.Errorf("%s canceled during backoff: %w", label, opCtx.Err())
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", label, cfg.MaxRetries+1, lastErr)
}

// nextBackoff grows the delay by 1.5x up to the cap, plus up to 25%
// jitter so concurrent callers do not synchronize.
func nextBackoff(current, max time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > max {
		backoff = max
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			log.Printf("Failed to generate jitter: %v", err)
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

// IsTransient reports whether an error is worth retrying. Permanent API
// errors (4xx other than 429) never are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if provider.IsPermanentAPIError(err) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
