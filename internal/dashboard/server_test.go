package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/monitor"
)

type fakeService struct {
	startErr error
	id       string
	active   bool
	rows     []models.EvaluatedRow
	hidden   models.HiddenCounts
	summary  *monitor.Summary
	stopped  bool
	cfg      models.MonitorConfig
}

func (f *fakeService) Start(ctx context.Context, cfg models.MonitorConfig) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.cfg = cfg
	f.active = true
	return f.id, nil
}

func (f *fakeService) Stop()      { f.stopped = true; f.active = false }
func (f *fakeService) ID() string { return f.id }
func (f *fakeService) UpdateConfig(cfg models.MonitorConfig) error {
	f.cfg = cfg
	return nil
}
func (f *fakeService) Rows() ([]models.EvaluatedRow, models.HiddenCounts) {
	return f.rows, f.hidden
}
func (f *fakeService) Summary() (monitor.Summary, bool) {
	if f.summary == nil {
		return monitor.Summary{}, false
	}
	return *f.summary, true
}
func (f *fakeService) Active() bool                { return f.active }
func (f *fakeService) Config() models.MonitorConfig { return f.cfg }
func (f *fakeService) Underlyings(ctx context.Context, exchange string) []string {
	return []string{"UNDER"}
}
func (f *fakeService) Expiries(ctx context.Context, exchange, underlying string) []string {
	return []string{"2026-02-05"}
}

func testServer(svc MonitorService, token string) *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewServer(Config{Port: 0, AuthToken: token}, svc, logger)
}

func TestStartEndpointEnvelopes(t *testing.T) {
	svc := &fakeService{id: "abc-123"}
	srv := testServer(svc, "")

	body := `{"exchange":"NFO","underlying":"UNDER","expiry":"2026-02-05","strikeCount":10,"referenceBasis":"OPEN"}`
	req := httptest.NewRequest(http.MethodPost, "/api/monitor/start", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string            `json:"status"`
		Data   map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "abc-123", resp.Data["session"])
	assert.Equal(t, "UNDER", svc.cfg.Underlying)
}

func TestStartEndpointRejection(t *testing.T) {
	svc := &fakeService{startErr: errors.New("empty option chain for UNDER 2026-02-05")}
	srv := testServer(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/monitor/start", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "empty option chain")
}

func TestRowsEndpoint(t *testing.T) {
	svc := &fakeService{
		id:     "abc-123",
		active: true,
		rows: []models.EvaluatedRow{
			{Contract: models.Contract{Symbol: "U105CE", Strike: 105}, AllPass: true},
		},
		hidden:  models.HiddenCounts{Distance: 2, Premium: 1},
		summary: &monitor.Summary{Status: "partial", Total: 5, Success: 2, Failed: 3},
	}
	srv := testServer(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/monitor/rows", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string      `json:"status"`
		Data   rowsPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Active)
	require.Len(t, resp.Data.Rows, 1)
	assert.True(t, resp.Data.Rows[0].AllPass)
	assert.Equal(t, 2, resp.Data.Hidden.Distance)
	require.NotNil(t, resp.Data.IVSummary)
	assert.Equal(t, 3, resp.Data.IVSummary.Failed)
}

func TestAuthMiddleware(t *testing.T) {
	srv := testServer(&fakeService{}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/monitor/rows", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/monitor/rows", nil)
	req.Header.Set("X-Auth-Token", "secret")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open for probes.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnderlyingsRequiresExchange(t *testing.T) {
	srv := testServer(&fakeService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/underlyings", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/underlyings?exchange=NFO", nil)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNDER")
}
