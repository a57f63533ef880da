// Package server exposes the tracker over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HossEz/stromtracker/pkg/model"
	"github.com/HossEz/stromtracker/pkg/prices"
	"github.com/HossEz/stromtracker/pkg/storage"
	"github.com/HossEz/stromtracker/pkg/tracker"
)

// Server provides the HTTP API: appliance and session management,
// summaries, settings, spot prices, health and metrics.
type Server struct {
	tracker *tracker.Tracker
	store   storage.Storage
	prices  *prices.Client
	mux     *http.ServeMux
	logger  *slog.Logger
}

// NewServer creates an API server.
func NewServer(t *tracker.Tracker, store storage.Storage, priceClient *prices.Client, logger *slog.Logger) *Server {
	s := &Server{
		tracker: t,
		store:   store,
		prices:  priceClient,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/v1/price/current", s.handleCurrentPrice)
	s.mux.HandleFunc("GET /api/v1/price/curve", s.handlePriceCurve)

	s.mux.HandleFunc("GET /api/v1/appliances", s.handleListAppliances)
	s.mux.HandleFunc("POST /api/v1/appliances", s.handleAddAppliance)
	s.mux.HandleFunc("DELETE /api/v1/appliances/{name}", s.handleDeleteAppliance)

	s.mux.HandleFunc("POST /api/v1/sessions/start", s.handleStartSession)
	s.mux.HandleFunc("GET /api/v1/sessions/status", s.handleSessionStatus)
	s.mux.HandleFunc("POST /api/v1/sessions/stop", s.handleStopSession)
	s.mux.HandleFunc("POST /api/v1/sessions/cancel", s.handleCancelSession)
	s.mux.HandleFunc("GET /api/v1/sessions/history", s.handleSessionHistory)

	s.mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	s.mux.HandleFunc("PATCH /api/v1/settings", s.handleUpdateSettings)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	region := r.URL.Query().Get("region")
	price, err := s.prices.CurrentPrice(ctx, region)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"region": region, "price_nok": price})
}

func (s *Server) handlePriceCurve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	region := r.URL.Query().Get("region")
	date := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, s.prices.Location())
		if err != nil {
			http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	curve, err := s.prices.DailyCurve(ctx, date, region)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, curve)
}

func (s *Server) handleListAppliances(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	appliances, err := s.store.ListAppliances(ctx, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliances)
}

func (s *Server) handleAddAppliance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var req struct {
		UserID   int64  `json:"user_id"`
		Name     string `json:"name"`
		LowWatt  int    `json:"low_watt"`
		HighWatt int    `json:"high_watt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.LowWatt <= 0 || req.HighWatt < req.LowWatt {
		http.Error(w, "name required, 0 < low_watt <= high_watt", http.StatusBadRequest)
		return
	}

	appliance := &model.Appliance{
		UserID:   req.UserID,
		Name:     req.Name,
		LowWatt:  req.LowWatt,
		HighWatt: req.HighWatt,
	}
	if err := s.store.AddAppliance(ctx, appliance); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, appliance)
}

func (s *Server) handleDeleteAppliance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteAppliance(ctx, userID, r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var req struct {
		UserID    int64          `json:"user_id"`
		Appliance string         `json:"appliance"`
		WattMode  model.WattMode `json:"watt_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.WattMode == "" {
		req.WattMode = model.WattAvg
	}

	session, err := s.tracker.StartSession(ctx, req.UserID, req.Appliance, req.WattMode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	session, estimate, fired, err := s.tracker.Status(ctx, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if session == nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session":  session,
		"estimate": estimate,
		"alerts":   fired,
	})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, result, fired, err := s.tracker.StopSession(ctx, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"result":  result,
		"alerts":  fired,
	})
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.tracker.CancelSession(ctx, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := s.tracker.History(ctx, userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	now := time.Now().In(s.prices.Location())
	year := now.Year()
	month := now.Month()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 1 || parsed > 12 {
			http.Error(w, "invalid month", http.StatusBadRequest)
			return
		}
		month = time.Month(parsed)
	}

	summary, err := s.tracker.Summary(ctx, userID, year, month)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var patch model.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.Region != nil {
		if _, err := prices.Lookup(*patch.Region); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if patch.PeriodStartDay != nil && (*patch.PeriodStartDay < 1 || *patch.PeriodStartDay > 28) {
		http.Error(w, "period_start_day must be 1-28", http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateSettings(ctx, userID, patch); err != nil {
		s.writeError(w, err)
		return
	}
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prices.ErrInvalidRegion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, prices.ErrPriceUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, tracker.ErrNoActiveSession):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrApplianceExists), errors.Is(err, storage.ErrActiveSession):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 15*time.Second)
}
