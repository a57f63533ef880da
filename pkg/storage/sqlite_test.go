package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HossEz/stromtracker/pkg/model"
	"github.com/HossEz/stromtracker/pkg/storage"
)

const testUser int64 = 1

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addAppliance(t *testing.T, store *storage.SQLite, name string) *model.Appliance {
	t.Helper()
	a := &model.Appliance{UserID: testUser, Name: name, LowWatt: 750, HighWatt: 1500}
	require.NoError(t, store.AddAppliance(context.Background(), a))
	return a
}

func TestAppliances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	added := addAppliance(t, store, "heater")
	assert.NotEmpty(t, added.ID)
	assert.False(t, added.CreatedAt.IsZero())

	got, err := store.GetAppliance(ctx, testUser, "heater")
	require.NoError(t, err)
	assert.Equal(t, added.ID, got.ID)
	assert.Equal(t, 750, got.LowWatt)
	assert.Equal(t, 1500, got.HighWatt)

	// Name lookup is case-insensitive.
	got, err = store.GetAppliance(ctx, testUser, "HEATER")
	require.NoError(t, err)
	assert.Equal(t, added.ID, got.ID)

	_, err = store.GetAppliance(ctx, testUser, "toaster")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Duplicate names collide regardless of case.
	err = store.AddAppliance(ctx, &model.Appliance{UserID: testUser, Name: "Heater", LowWatt: 1, HighWatt: 2})
	assert.ErrorIs(t, err, storage.ErrApplianceExists)

	// Same name under another user is fine.
	err = store.AddAppliance(ctx, &model.Appliance{UserID: 2, Name: "heater", LowWatt: 1, HighWatt: 2})
	require.NoError(t, err)

	addAppliance(t, store, "dishwasher")
	list, err := store.ListAppliances(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "dishwasher", list[0].Name)
	assert.Equal(t, "heater", list[1].Name)

	require.NoError(t, store.DeleteAppliance(ctx, testUser, "dishwasher"))
	assert.ErrorIs(t, store.DeleteAppliance(ctx, testUser, "dishwasher"), storage.ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	heater := addAppliance(t, store, "heater")

	active, err := store.ActiveSession(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, active)

	sess := &model.Session{
		UserID:      testUser,
		ApplianceID: heater.ID,
		WattMode:    model.WattAvg,
		Watts:       1125,
	}
	require.NoError(t, store.StartSession(ctx, sess))
	assert.NotEmpty(t, sess.ID)
	assert.False(t, sess.StartTime.IsZero())

	// Only one active session per user.
	err = store.StartSession(ctx, &model.Session{
		UserID: testUser, ApplianceID: heater.ID, WattMode: model.WattLow, Watts: 750,
	})
	assert.ErrorIs(t, err, storage.ErrActiveSession)

	active, err = store.ActiveSession(ctx, testUser)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sess.ID, active.ID)
	assert.Equal(t, "heater", active.ApplianceName)
	assert.Nil(t, active.EndTime)

	end := sess.StartTime.Add(2 * time.Hour)
	result := model.ConsumptionResult{
		EnergyKWh: 2.25, SpotCostNOK: 2.72, FixedCostNOK: 2.25, TotalCostNOK: 4.97,
	}
	require.NoError(t, store.FinalizeSession(ctx, sess.ID, end, result))

	// Already finalized.
	assert.ErrorIs(t, store.FinalizeSession(ctx, sess.ID, end, result), storage.ErrNotFound)

	active, err = store.ActiveSession(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, active)

	recent, err := store.RecentSessions(ctx, testUser, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 2.25, recent[0].EnergyKWh)
	assert.Equal(t, 4.97, recent[0].TotalCostNOK)
	require.NotNil(t, recent[0].EndTime)
	assert.True(t, recent[0].EndTime.Equal(end))
}

func TestCancelSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	heater := addAppliance(t, store, "heater")

	sess := &model.Session{UserID: testUser, ApplianceID: heater.ID, WattMode: model.WattLow, Watts: 750}
	require.NoError(t, store.StartSession(ctx, sess))
	require.NoError(t, store.CancelSession(ctx, sess.ID, sess.StartTime.Add(time.Minute)))

	active, err := store.ActiveSession(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, active)

	// Cancelled sessions never show up in history.
	recent, err := store.RecentSessions(ctx, testUser, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	// A new session can start after the cancel.
	require.NoError(t, store.StartSession(ctx, &model.Session{
		UserID: testUser, ApplianceID: heater.ID, WattMode: model.WattLow, Watts: 750,
	}))

	assert.ErrorIs(t, store.CancelSession(ctx, sess.ID, time.Now()), storage.ErrNotFound)
}

// finishSession inserts a completed session ending at the given instant.
func finishSession(t *testing.T, store *storage.SQLite, applianceID string, end time.Time, cost float64) {
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
		EnergyKWh: 1.5, SpotCostNOK: cost / 2, FixedCostNOK: cost / 2, TotalCostNOK: cost,
	}))
}

func TestSessionsEndedBetween(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	heater := addAppliance(t, store, "heater")

	windowStart := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	finishSession(t, store, heater.ID, windowStart.Add(-time.Second), 10) // before
	finishSession(t, store, heater.ID, windowStart, 20)                   // first instant, included
	finishSession(t, store, heater.ID, windowStart.AddDate(0, 0, 10), 30) // inside
	finishSession(t, store, heater.ID, windowEnd, 40)                     // end bound, excluded

	got, err := store.SessionsEndedBetween(ctx, testUser, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first.
	assert.Equal(t, 30.0, got[0].TotalCostNOK)
	assert.Equal(t, 20.0, got[1].TotalCostNOK)
}

func TestClearSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	heater := addAppliance(t, store, "heater")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	finishSession(t, store, heater.ID, base, 10)
	finishSession(t, store, heater.ID, base.AddDate(0, 0, 1), 20)
	finishSession(t, store, heater.ID, base.AddDate(0, 0, 2), 30)

	deleted, err := store.ClearSessions(ctx, testUser, base, base.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	recent, err := store.RecentSessions(ctx, testUser, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 30.0, recent[0].TotalCostNOK)

	// Zero bounds wipe everything for the user.
	deleted, err = store.ClearSessions(ctx, testUser, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// First access creates the defaults.
	st, err := store.GetSettings(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, testUser, st.UserID)
	assert.Equal(t, 1.0, st.FixedCostNOK)
	assert.Equal(t, 0.0, st.BudgetNOK)
	assert.Equal(t, 1, st.PeriodStartDay)
	assert.Equal(t, "NO1", st.Region)
	assert.Equal(t, 0, st.MaxDurationHours)

	budget := 500.0
	region := "NO4"
	require.NoError(t, store.UpdateSettings(ctx, testUser, model.SettingsPatch{
		BudgetNOK: &budget,
		Region:    &region,
	}))

	st, err = store.GetSettings(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 500.0, st.BudgetNOK)
	assert.Equal(t, "NO4", st.Region)
	// Untouched fields keep their values.
	assert.Equal(t, 1.0, st.FixedCostNOK)
	assert.Equal(t, 1, st.PeriodStartDay)

	// An empty patch is a no-op.
	require.NoError(t, store.UpdateSettings(ctx, testUser, model.SettingsPatch{}))
}

func TestPriceCurveCache(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := store.GetPriceCurve(ctx, day, "NO1")
	require.NoError(t, err)
	assert.Nil(t, got)

	curve := model.PriceCurve{Date: day, Region: "NO1", Prices: map[int]float64{}}
	for h := 0; h < 24; h++ {
		curve.Prices[h] = 1.21
	}
	require.NoError(t, store.PutPriceCurve(ctx, curve))

	got, err = store.GetPriceCurve(ctx, day, "NO1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, curve.Prices, got.Prices)

	// Same date, other region is a separate key.
	got, err = store.GetPriceCurve(ctx, day, "NO4")
	require.NoError(t, err)
	assert.Nil(t, got)

	// A rewrite fully replaces the stored curve.
	replacement := model.PriceCurve{Date: day, Region: "NO1", Prices: map[int]float64{10: 2.5}}
	require.NoError(t, store.PutPriceCurve(ctx, replacement))

	got, err = store.GetPriceCurve(ctx, day, "NO1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, map[int]float64{10: 2.5}, got.Prices)
}
