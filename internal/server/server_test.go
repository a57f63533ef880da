package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HossEz/stromtracker/internal/server"
	"github.com/HossEz/stromtracker/pkg/engine"
	"github.com/HossEz/stromtracker/pkg/model"
	"github.com/HossEz/stromtracker/pkg/prices"
	"github.com/HossEz/stromtracker/pkg/report"
	"github.com/HossEz/stromtracker/pkg/storage"
	"github.com/HossEz/stromtracker/pkg/tracker"
)

// newTestAPI wires a full server against a temp database and a stub
// price upstream serving a flat-priced day for any date.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		day := time.Now().UTC()
		entries := make([]map[string]any, 0, 24)
		for h := 0; h < 24; h++ {
			entries = append(entries, map[string]any{
				"NOK_per_kWh": 0.8,
				"time_start":  time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, time.UTC).Format(time.RFC3339),
			})
		}
		json.NewEncoder(w).Encode(entries)
	}))
	t.Cleanup(upstream.Close)

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := prices.NewClient(upstream.URL, time.Second, store, time.UTC, logger)
	eng := engine.New(client, logger)
	agg := report.New(store, time.UTC, logger)
	tr := tracker.New(store, eng, agg, nil, time.UTC, logger)

	return server.NewServer(tr, store, client, logger).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestAPI(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	rec := doJSON(t, newTestAPI(t), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stromtracker_")
}

func TestAppliancesAPI(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/appliances",
		`{"user_id":1,"name":"heater","low_watt":750,"high_watt":1500}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.Appliance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "heater", created.Name)

	// Duplicate name conflicts.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/appliances",
		`{"user_id":1,"name":"Heater","low_watt":1,"high_watt":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Watt bounds are validated.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/appliances",
		`{"user_id":1,"name":"broken","low_watt":1500,"high_watt":750}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/appliances?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Appliance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	// user_id is mandatory on reads.
	rec = doJSON(t, api, http.MethodGet, "/api/v1/appliances", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, api, http.MethodDelete, "/api/v1/appliances/heater?user_id=1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, api, http.MethodDelete, "/api/v1/appliances/heater?user_id=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsAPI(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/appliances",
		`{"user_id":1,"name":"heater","low_watt":750,"high_watt":1500}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// No active session yet.
	rec = doJSON(t, api, http.MethodGet, "/api/v1/sessions/status?user_id=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sessions/stop", `{"user_id":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Start defaults to avg mode.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/sessions/start",
		`{"user_id":1,"appliance":"heater"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, model.WattAvg, started.WattMode)
	assert.Equal(t, 1125, started.Watts)

	// Second start conflicts.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/sessions/start",
		`{"user_id":1,"appliance":"heater","watt_mode":"low"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/sessions/status?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Session  model.Session            `json:"session"`
		Estimate *model.ConsumptionResult `json:"estimate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, started.ID, status.Session.ID)
	require.NotNil(t, status.Estimate)

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sessions/stop", `{"user_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var stopped struct {
		Session model.Session            `json:"session"`
		Result  *model.ConsumptionResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stopped))
	require.NotNil(t, stopped.Session.EndTime)
	require.NotNil(t, stopped.Result)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/sessions/history?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)
}

func TestSummaryAPI(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/summary?user_id=1&year=2025&month=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary model.PeriodSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2025, summary.Year)
	assert.Equal(t, 3, summary.Month)
	assert.Equal(t, 0, summary.SessionCount)
	assert.Equal(t, "NO1", summary.Region)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/summary?user_id=1&month=13", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsAPI(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/settings?user_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var settings model.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, "NO1", settings.Region)
	assert.Equal(t, 1.0, settings.FixedCostNOK)

	rec = doJSON(t, api, http.MethodPatch, "/api/v1/settings?user_id=1",
		`{"budget_nok":500,"region":"NO4","period_start_day":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, 500.0, settings.BudgetNOK)
	assert.Equal(t, "NO4", settings.Region)
	assert.Equal(t, 5, settings.PeriodStartDay)

	rec = doJSON(t, api, http.MethodPatch, "/api/v1/settings?user_id=1", `{"region":"SE3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, api, http.MethodPatch, "/api/v1/settings?user_id=1", `{"period_start_day":29}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriceAPI(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/price/current?region=NO1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var current struct {
		Region   string  `json:"region"`
		PriceNOK float64 `json:"price_nok"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, "NO1", current.Region)
	assert.Equal(t, 1.0, current.PriceNOK) // 0.8 raw * 1.25 MVA

	rec = doJSON(t, api, http.MethodGet, "/api/v1/price/curve?region=NO1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var curve model.PriceCurve
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &curve))
	assert.Len(t, curve.Prices, 24)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/price/current?region=SE3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, api, http.MethodGet, "/api/v1/price/curve?region=NO1&date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
