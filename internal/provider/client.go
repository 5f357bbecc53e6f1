// Package provider implements the market-data provider client used by
// the spike monitor: option chains, underlying/expiry lists, historical
// candles, and batched implied-volatility lookups.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/util"
)

// APIError represents an API error with status code and response body
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// Client talks to the provider's HTTP API.
type Client struct {
	client  *http.Client
	apiKey  string
	baseURL string
	timeout time.Duration
}

// NewClient creates a provider client with default settings.
func NewClient(apiKey, baseURL string) *Client {
	return NewClientWithTimeout(apiKey, baseURL, 10*time.Second)
}

// NewClientWithTimeout creates a provider client with a custom HTTP timeout.
func NewClientWithTimeout(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.client = hc
	}
	return c
}

// HasCredential reports whether an API key is configured. Session start
// is rejected when no credential is present.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// GetOptionChain retrieves the chain snapshot for an underlying and expiry.
// The raw YYYY-MM-DD expiry is pre-formatted to the provider's DDMMMYY
// convention before the request is issued.
func (c *Client) GetOptionChain(ctx context.Context, underlying, exchange, expiry string, strikeCount int) (*models.ChainSnapshot, error) {
	params := url.Values{}
	params.Set("underlying", underlying)
	params.Set("exchange", exchange)
	params.Set("expiry", util.FormatProviderExpiry(expiry))
	params.Set("strike_count", strconv.Itoa(strikeCount))
	endpoint := c.baseURL + "/optionchain?" + params.Encode()

	var response OptionChainResponse
	if err := c.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	if response.Status != StatusSuccess {
		return nil, fmt.Errorf("option chain fetch failed: %s", response.Message)
	}

	snap := &models.ChainSnapshot{
		ATMStrike:     response.Data.ATMStrike,
		UnderlyingLTP: response.Data.UnderlyingLTP,
		Rows:          make([]models.StrikeRow, 0, len(response.Data.Chain)),
	}
	for _, row := range response.Data.Chain {
		snap.Rows = append(snap.Rows, models.StrikeRow{
			Strike: row.Strike,
			Call:   toLeg(row.Call),
			Put:    toLeg(row.Put),
		})
	}
	return snap, nil
}

func toLeg(d *ChainLegData) *models.Leg {
	if d == nil {
		return nil
	}
	return &models.Leg{Symbol: d.Symbol, Open: d.Open, PrevClose: d.PrevClose}
}

// GetUnderlyings retrieves the tradable underlying list for an exchange.
// A non-success status is returned as an error so callers keep their
// stale list.
func (c *Client) GetUnderlyings(ctx context.Context, exchange string) ([]string, error) {
	params := url.Values{}
	params.Set("exchange", exchange)
	endpoint := c.baseURL + "/underlyings?" + params.Encode()

	var response UnderlyingsResponse
	if err := c.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	if response.Status != StatusSuccess {
		return nil, fmt.Errorf("underlyings fetch failed: %s", response.Message)
	}
	return response.Underlyings, nil
}

// GetExpiries retrieves available expiry dates for an underlying.
func (c *Client) GetExpiries(ctx context.Context, exchange, underlying string) ([]string, error) {
	params := url.Values{}
	params.Set("exchange", exchange)
	params.Set("underlying", underlying)
	endpoint := c.baseURL + "/expiries?" + params.Encode()

	var response ExpiriesResponse
	if err := c.makeRequestCtx(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	if response.Status != StatusSuccess {
		return nil, fmt.Errorf("expiries fetch failed: %s", response.Message)
	}
	return response.Expiries, nil
}

// GetHistory retrieves minute-resolution candles for a symbol. Rows with
// unrecognizable time or close fields are skipped.
func (c *Client) GetHistory(ctx context.Context, symbol, exchange, interval string, start, end time.Time) ([]models.Candle, error) {
	if interval == "" {
		interval = "1m"
	}
	body := historyRequest{
		Symbol:    symbol,
		Exchange:  exchange,
		Interval:  interval,
		StartDate: start.UTC().Format(time.RFC3339),
		EndDate:   end.UTC().Format(time.RFC3339),
	}
	endpoint := c.baseURL + "/history"

	var response HistoryResponse
	if err := c.makeRequestCtx(ctx, http.MethodPost, endpoint, body, &response); err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}
	if response.Status != StatusSuccess {
		return nil, fmt.Errorf("history fetch failed for %s: %s", symbol, response.Message)
	}

	candles := make([]models.Candle, 0, len(response.Data))
	for _, row := range response.Data {
		barTime, ok := row.BarTime()
		if !ok {
			continue
		}
		closePrice, ok := row.ClosePrice()
		if !ok {
			continue
		}
		candles = append(candles, models.Candle{Time: barTime, Close: closePrice})
	}
	return candles, nil
}

// GetImpliedVolatility fetches implied volatility for a batch of symbols.
// Both success and partial statuses return a batch; only the error status
// (or transport failure) returns an error.
func (c *Client) GetImpliedVolatility(ctx context.Context, symbols []SymbolRef) (*VolatilityBatch, error) {
	endpoint := c.baseURL + "/volatility"

	var response volatilityResponse
	if err := c.makeRequestCtx(ctx, http.MethodPost, endpoint, volatilityRequest{Symbols: symbols}, &response); err != nil {
		return nil, err
	}
	return response.normalize(), nil
}

func (c *Client) makeRequestCtx(ctx context.Context, method, endpoint string,
	body interface{}, response interface{}) error {
	var req *http.Request
	var err error

	if method == http.MethodPost && body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return merr
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Add("Content-Type", "application/json")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
		if err != nil {
			return err
		}
	}

	req.Header.Add("Authorization", "Bearer "+c.apiKey)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "spikewatch/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			// Log error but don't fail the operation
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		errBody, rerr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if rerr != nil {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> failed to read error body", method, endpoint)}
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s (retry-after: %s)", method, endpoint, string(errBody), ra)}
		}
		return &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("%s %s -> %s", method, endpoint, string(errBody))}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(response); err != nil && err != io.EOF {
		return err
	}
	return nil
}
