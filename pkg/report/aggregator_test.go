package report_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HossEz/stromtracker/pkg/model"
	"github.com/HossEz/stromtracker/pkg/report"
	"github.com/HossEz/stromtracker/pkg/storage"
)

const testUser int64 = 1

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedSession inserts one completed session ending at the given instant.
func seedSession(t *testing.T, store *storage.SQLite, applianceID string, end time.Time, kwh, spot, fixed float64) {
	t.Helper()
	ctx := context.Background()
	sess := &model.Session{
		UserID:      testUser,
		ApplianceID: applianceID,
		StartTime:   end.Add(-time.Hour),
		WattMode:    model.WattHigh,
		Watts:       1500,
	}
	require.NoError(t, store.StartSession(ctx, sess))
	require.NoError(t, store.FinalizeSession(ctx, sess.ID, end, model.ConsumptionResult{
		EnergyKWh: kwh, SpotCostNOK: spot, FixedCostNOK: fixed, TotalCostNOK: spot + fixed,
	}))
}

func TestSummarize(t *testing.T) {
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	heater := &model.Appliance{UserID: testUser, Name: "heater", LowWatt: 750, HighWatt: 1500}
	require.NoError(t, store.AddAppliance(ctx, heater))

	// Billing window for March with start day 5: Feb 5 through Mar 4.
	seedSession(t, store, heater.ID, time.Date(2025, 2, 4, 23, 0, 0, 0, time.UTC), 9, 9, 9)   // before window
	seedSession(t, store, heater.ID, time.Date(2025, 2, 5, 8, 0, 0, 0, time.UTC), 2.0, 3, 2)  // first day
	seedSession(t, store, heater.ID, time.Date(2025, 3, 4, 23, 30, 0, 0, time.UTC), 1.5, 2, 1.5) // last day, late evening
	seedSession(t, store, heater.ID, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), 9, 9, 9)    // next window

	agg := report.New(store, time.UTC, testLogger())

	summary, err := agg.Summarize(ctx, testUser, 2025, time.March, 5, 20)
	require.NoError(t, err)

	assert.Equal(t, 2025, summary.Year)
	assert.Equal(t, 3, summary.Month)
	assert.Equal(t, 2, summary.SessionCount)
	assert.Equal(t, 3.5, summary.TotalKWh)
	assert.Equal(t, 5.0, summary.SpotCostNOK)
	assert.Equal(t, 3.5, summary.FixedCostNOK)
	assert.Equal(t, 8.5, summary.TotalCostNOK)
	assert.Equal(t, 2.43, summary.AvgPriceNOK) // 8.5 / 3.5
	assert.Equal(t, 20.0, summary.BudgetNOK)
	assert.Equal(t, 11.5, summary.RemainingNOK)
}

func TestSummarize_EmptyWindow(t *testing.T) {
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	agg := report.New(store, time.UTC, testLogger())

	summary, err := agg.Summarize(context.Background(), testUser, 2025, time.March, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SessionCount)
	assert.Equal(t, 0.0, summary.TotalKWh)
	assert.Equal(t, 0.0, summary.TotalCostNOK)
	assert.Equal(t, 0.0, summary.AvgPriceNOK)
	// No budget set: no remaining figure either.
	assert.Equal(t, 0.0, summary.BudgetNOK)
	assert.Equal(t, 0.0, summary.RemainingNOK)
}
