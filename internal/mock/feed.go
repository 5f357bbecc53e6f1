package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/feed"
	"github.com/gopinathshiva/spikewatch/internal/models"
)

// Feed is a synthetic quote stream: every subscribed key ticks on an
// interval with a small random walk.
type Feed struct {
	interval time.Duration

	mu      sync.Mutex
	handler feed.Handler
	prices  map[string]float64
}

var _ feed.Stream = (*Feed)(nil)

func NewFeed(interval time.Duration) *Feed {
	return &Feed{
		interval: interval,
		prices:   make(map[string]float64),
	}
}

func (f *Feed) SetHandler(h feed.Handler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *Feed) Subscribe(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		if _, ok := f.prices[k]; !ok {
			f.prices[k] = 10 + secureFloat64()*100
		}
	}
	return nil
}

func (f *Feed) Unsubscribe(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.prices, k)
	}
	return nil
}

// Run pushes quotes until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			f.tick(now)
		}
	}
}

func (f *Feed) tick(now time.Time) {
	f.mu.Lock()
	h := f.handler
	updates := make(map[string]float64, len(f.prices))
	for k, p := range f.prices {
		p = math.Max(0.5, p+(secureFloat64()-0.5)*p*0.02)
		f.prices[k] = p
		updates[k] = p
	}
	f.mu.Unlock()

	if h == nil {
		return
	}
	for k, p := range updates {
		h(k, models.Quote{LTP: p, LastUpdateTime: now})
	}
}
