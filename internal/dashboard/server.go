// Package dashboard exposes the monitoring session over a JSON API:
// session start/stop, the evaluated row table, and the underlying and
// expiry list providers.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/gopinathshiva/spikewatch/internal/models"
	"github.com/gopinathshiva/spikewatch/internal/monitor"
)

// MonitorService is the session surface the API drives.
type MonitorService interface {
	Start(ctx context.Context, cfg models.MonitorConfig) (string, error)
	Stop()
	UpdateConfig(cfg models.MonitorConfig) error
	Rows() ([]models.EvaluatedRow, models.HiddenCounts)
	Summary() (monitor.Summary, bool)
	Active() bool
	ID() string
	Config() models.MonitorConfig
	Underlyings(ctx context.Context, exchange string) []string
	Expiries(ctx context.Context, exchange, underlying string) []string
}

var _ MonitorService = (*monitor.Session)(nil)

type Server struct {
	router    *chi.Mux
	server    *http.Server
	session   MonitorService
	logger    *logrus.Logger
	port      int
	authToken string
}

type Config struct {
	Port      int
	AuthToken string
}

// rowsPayload is the full table response: visible rows, the per-gate
// hidden counters, and the latest volatility batch outcome.
type rowsPayload struct {
	Session   string                `json:"session,omitempty"`
	Active    bool                  `json:"active"`
	Rows      []models.EvaluatedRow `json:"rows"`
	Hidden    models.HiddenCounts   `json:"hidden"`
	IVSummary *monitor.Summary      `json:"ivSummary,omitempty"`
}

func NewServer(cfg Config, session MonitorService, logger *logrus.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		session:   session,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Post("/api/monitor/start", s.handleStart)
	s.router.Post("/api/monitor/stop", s.handleStop)
	s.router.Put("/api/monitor/config", s.handleUpdateConfig)
	s.router.Get("/api/monitor/rows", s.handleRows)
	s.router.Get("/api/underlyings", s.handleUnderlyings)
	s.router.Get("/api/expiries", s.handleExpiries)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.logger.Infof("Starting dashboard server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var cfg models.MonitorConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.session.Start(r.Context(), cfg)
	if err != nil {
		s.logger.WithError(err).Error("Failed to start monitoring session")
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.writeSuccess(w, map[string]string{"session": id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.session.Stop()
	s.writeSuccess(w, map[string]string{"session": s.session.ID()})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	// Start from the current config so a partial body only moves the
	// fields it names.
	cfg := s.session.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.session.UpdateConfig(cfg); err != nil {
		s.logger.WithError(err).Error("Failed to update monitor config")
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.writeSuccess(w, s.session.Config())
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	rows, hidden := s.session.Rows()
	payload := rowsPayload{
		Session: s.session.ID(),
		Active:  s.session.Active(),
		Rows:    rows,
		Hidden:  hidden,
	}
	if summary, ok := s.session.Summary(); ok {
		payload.IVSummary = &summary
	}

	s.writeSuccess(w, payload)
}

func (s *Server) handleUnderlyings(w http.ResponseWriter, r *http.Request) {
	exchange := r.URL.Query().Get("exchange")
	if exchange == "" {
		s.writeError(w, http.StatusBadRequest, "exchange is required")
		return
	}

	list := s.session.Underlyings(r.Context(), exchange)
	s.writeSuccess(w, map[string]interface{}{"underlyings": list})
}

func (s *Server) handleExpiries(w http.ResponseWriter, r *http.Request) {
	exchange := r.URL.Query().Get("exchange")
	underlying := r.URL.Query().Get("underlying")
	if exchange == "" || underlying == "" {
		s.writeError(w, http.StatusBadRequest, "exchange and underlying are required")
		return
	}

	list := s.session.Expiries(r.Context(), exchange, underlying)
	s.writeSuccess(w, map[string]interface{}{"expiries": list})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"active":    s.session.Active(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("Failed to encode health response")
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	payload := map[string]interface{}{"status": "success", "data": data}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	payload := map[string]string{"status": "error", "message": message}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode error response")
	}
}
