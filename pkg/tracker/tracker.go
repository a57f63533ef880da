// Package tracker orchestrates the appliance session lifecycle: start,
// live estimates, finalization with computed costs, and alert dispatch.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HossEz/stromtracker/pkg/alerts"
	"github.com/HossEz/stromtracker/pkg/engine"
	"github.com/HossEz/stromtracker/pkg/model"
	"github.com/HossEz/stromtracker/pkg/report"
	"github.com/HossEz/stromtracker/pkg/storage"
)

// ErrNoActiveSession is returned by operations that require a running
// session when the user has none.
var ErrNoActiveSession = errors.New("no active session")

// Tracker wires storage, the cost engine, the aggregator and the alert
// notifiers into the session lifecycle.
type Tracker struct {
	store      storage.Storage
	engine     *engine.Engine
	aggregator *report.Aggregator
	notifiers  []alerts.Notifier
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a tracker. loc is the pricing timezone used to anchor
// "current billing period" lookups.
func New(store storage.Storage, eng *engine.Engine, agg *report.Aggregator, notifiers []alerts.Notifier, loc *time.Location, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:      store,
		engine:     eng,
		aggregator: agg,
		notifiers:  notifiers,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// StartSession begins tracking an appliance for the user. The watt mode
// is resolved to a concrete wattage at start so the declared ratings can
// change later without rewriting history.
func (t *Tracker) StartSession(ctx context.Context, userID int64, applianceName string, mode model.WattMode) (*model.Session, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid watt mode %q", mode)
	}

	appliance, err := t.store.GetAppliance(ctx, userID, applianceName)
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		UserID:        userID,
		ApplianceID:   appliance.ID,
		ApplianceName: appliance.Name,
		StartTime:     t.now().UTC(),
		WattMode:      mode,
		Watts:         model.ResolveWatts(appliance.LowWatt, appliance.HighWatt, mode),
	}
	if err := t.store.StartSession(ctx, session); err != nil {
		return nil, err
	}

	t.logger.Info("session started",
		"user_id", userID,
		"appliance", appliance.Name,
		"watt_mode", mode,
		"watts", session.Watts,
	)
	return session, nil
}

// Status returns the active session together with a cost-so-far
// estimate and any runtime advisories. All three are nil/empty when no
// session is active.
func (t *Tracker) Status(ctx context.Context, userID int64) (*model.Session, *model.ConsumptionResult, []alerts.Alert, error) {
	session, err := t.store.ActiveSession(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	if session == nil {
		return nil, nil, nil, nil
	}

	settings, err := t.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}

	estimate, err := t.engine.Estimate(ctx, session.StartTime, session.Watts, settings.FixedCostNOK, settings.Region)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("estimate session cost: %w", err)
	}

	now := t.now()
	var fired []alerts.Alert
	if a := alerts.CheckRuntime(*session, now); a != nil {
		fired = append(fired, *a)
	}
	if a := alerts.CheckMaxDuration(*session, now, settings.MaxDurationHours); a != nil {
		fired = append(fired, *a)
	}
	t.dispatch(ctx, fired)

	return session, &estimate, fired, nil
}

// StopSession finalizes the active session: computes its cost over the
// hourly curves, persists the result, and evaluates the billing-period
// budget. The budget alert, if any, is dispatched and returned.
func (t *Tracker) StopSession(ctx context.Context, userID int64) (*model.Session, *model.ConsumptionResult, []alerts.Alert, error) {
	session, err := t.store.ActiveSession(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	if session == nil {
		return nil, nil, nil, ErrNoActiveSession
	}

	settings, err := t.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}

	end := t.now().UTC()
	interval := model.Interval{Start: session.StartTime, End: end}
	result, err := t.engine.Cost(ctx, interval, session.Watts, settings.FixedCostNOK, settings.Region)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compute session cost: %w", err)
	}

	if err := t.store.FinalizeSession(ctx, session.ID, end, result); err != nil {
		return nil, nil, nil, err
	}

	session.EndTime = &end
	session.EnergyKWh = result.EnergyKWh
	session.SpotCostNOK = result.SpotCostNOK
	session.FixedCostNOK = result.FixedCostNOK
	session.TotalCostNOK = result.TotalCostNOK

	t.logger.Info("session finalized",
		"user_id", userID,
		"appliance", session.ApplianceName,
		"hours", result.Hours,
		"energy_kwh", result.EnergyKWh,
		"total_cost_nok", result.TotalCostNOK,
		"degraded", result.Degraded,
	)

	var fired []alerts.Alert
	local := end.In(t.loc)
	summary, err := t.aggregator.Summarize(ctx, userID, local.Year(), local.Month(), settings.PeriodStartDay, settings.BudgetNOK)
	if err != nil {
		t.logger.Error("budget check failed", "user_id", userID, "error", err)
	} else if a := alerts.CheckBudget(summary); a != nil {
		fired = append(fired, *a)
	}
	t.dispatch(ctx, fired)

	return session, &result, fired, nil
}

// CancelSession aborts the active session without recording costs.
func (t *Tracker) CancelSession(ctx context.Context, userID int64) (*model.Session, error) {
	session, err := t.store.ActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}

	end := t.now().UTC()
	if err := t.store.CancelSession(ctx, session.ID, end); err != nil {
		return nil, err
	}
	session.EndTime = &end
	session.Cancelled = true

	t.logger.Info("session cancelled", "user_id", userID, "appliance", session.ApplianceName)
	return session, nil
}

// Summary builds the billing-period summary for (year, month) using the
// user's configured period start day and budget.
func (t *Tracker) Summary(ctx context.Context, userID int64, year int, month time.Month) (model.PeriodSummary, error) {
	settings, err := t.store.GetSettings(ctx, userID)
	if err != nil {
		return model.PeriodSummary{}, err
	}

	summary, err := t.aggregator.Summarize(ctx, userID, year, month, settings.PeriodStartDay, settings.BudgetNOK)
	if err != nil {
		return model.PeriodSummary{}, err
	}
	summary.Region = settings.Region
	return summary, nil
}

// History returns the user's most recently completed sessions.
func (t *Tracker) History(ctx context.Context, userID int64, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 10
	}
	return t.store.RecentSessions(ctx, userID, limit)
}

func (t *Tracker) dispatch(ctx context.Context, fired []alerts.Alert) {
	for _, alert := range fired {
		for _, notifier := range t.notifiers {
			if err := notifier.Send(ctx, alert); err != nil {
				t.logger.Error("send alert failed",
					"notifier", notifier.Name(),
					"kind", alert.Kind,
					"error", err,
				)
			}
		}
	}
}
