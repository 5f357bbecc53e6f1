package retry

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopinathshiva/spikewatch/internal/provider"
)

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Timeout:        time.Second,
	}
}

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	res, err := Do(context.Background(), testLogger(), fastConfig(), "chain fetch",
		func(ctx context.Context) (string, error) {
			attempts++
			if attempts < 3 {
				return "", errors.New("connection refused")
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), testLogger(), fastConfig(), "chain fetch",
		func(ctx context.Context) (string, error) {
			attempts++
			return "", &provider.APIError{Status: 404, Body: "no such expiry"}
		})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustsBudget(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), testLogger(), fastConfig(), "chain fetch",
		func(ctx context.Context) (string, error) {
			attempts++
			return "", errors.New("timeout")
		})

	require.Error(t, err)
	assert.Equal(t, 4, attempts) // initial + 3 retries
	assert.Contains(t, err.Error(), "after 4 attempts")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"timeout", errors.New("request timeout"), true},
		{"rate limit status", &provider.APIError{Status: 429, Body: "slow down"}, true},
		{"server error status", &provider.APIError{Status: 503, Body: "unavailable"}, true},
		{"permanent 4xx", &provider.APIError{Status: 400, Body: "bad request"}, false},
		{"logical failure", errors.New("empty option chain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}
