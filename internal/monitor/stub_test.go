package monitor

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/provider"
)

// stubProvider is a function-field test double for provider.Provider.
// Unset functions return empty results so tests only wire what they use.
type stubProvider struct {
	mu sync.Mutex

	chainFn       func(underlying, exchange, expiry string, strikeCount int) (*models.ChainSnapshot, error)
	historyFn     func(symbol string) ([]models.Candle, error)
	volatilityFn  func(symbols []provider.SymbolRef) (*provider.VolatilityBatch, error)
	underlyingsFn func(exchange string) ([]string, error)
	expiriesFn    func(exchange, underlying string) ([]string, error)
	noCredential  bool

	historyCalls    []string
	volatilityCalls [][]string
}

var _ provider.Provider = (*stubProvider)(nil)

func (p *stubProvider) GetOptionChain(ctx context.Context, underlying, exchange, expiry string, strikeCount int) (*models.ChainSnapshot, error) {
	if p.chainFn == nil {
		return &models.ChainSnapshot{}, nil
	}
	return p.chainFn(underlying, exchange, expiry, strikeCount)
}

func (p *stubProvider) GetHistory(ctx context.Context, symbol, exchange, interval string, start, end time.Time) ([]models.Candle, error) {
	p.mu.Lock()
	p.historyCalls = append(p.historyCalls, symbol)
	p.mu.Unlock()
	if p.historyFn == nil {
		return nil, nil
	}
	return p.historyFn(symbol)
}

func (p *stubProvider) GetImpliedVolatility(ctx context.Context, symbols []provider.SymbolRef) (*provider.VolatilityBatch, error) {
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Symbol)
	}
	p.mu.Lock()
	p.volatilityCalls = append(p.volatilityCalls, names)
	p.mu.Unlock()
	if p.volatilityFn == nil {
		return &provider.VolatilityBatch{Status: provider.StatusSuccess}, nil
	}
	return p.volatilityFn(symbols)
}

func (p *stubProvider) GetUnderlyings(ctx context.Context, exchange string) ([]string, error) {
	if p.underlyingsFn == nil {
		return nil, nil
	}
	return p.underlyingsFn(exchange)
}

func (p *stubProvider) GetExpiries(ctx context.Context, exchange, underlying string) ([]string, error) {
	if p.expiriesFn == nil {
		return nil, nil
	}
	return p.expiriesFn(exchange, underlying)
}

func (p *stubProvider) HasCredential() bool { return !p.noCredential }

func (p *stubProvider) historyCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.historyCalls)
}

func (p *stubProvider) volatilityCallLog() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]string, len(p.volatilityCalls))
	copy(out, p.volatilityCalls)
	return out
}

// stubStream records subscription traffic.
type stubStream struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
}

func (s *stubStream) Subscribe(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, keys...)
	return nil
}

func (s *stubStream) Unsubscribe(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = append(s.unsubscribed, keys...)
	return nil
}

func (s *stubStream) subscribedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.subscribed))
	copy(out, s.subscribed)
	return out
}

func (s *stubStream) unsubscribedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.unsubscribed))
	copy(out, s.unsubscribed)
	return out
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
