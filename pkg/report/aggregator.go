// Package report rolls completed sessions into billing-period summaries.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HossEz/stromtracker/pkg/model"
)

// SessionSource is the slice of the persistence layer the aggregator
// reads from.
type SessionSource interface {
	SessionsEndedBetween(ctx context.Context, userID int64, start, end time.Time) ([]model.Session, error)
}

// Aggregator summarizes completed sessions per billing window.
type Aggregator struct {
	store  SessionSource
	loc    *time.Location
	logger *slog.Logger
}

// New creates an aggregator. loc is the timezone billing windows are
// anchored in.
func New(store SessionSource, loc *time.Location, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, loc: loc, logger: logger}
}

// Summarize aggregates all completed, non-cancelled sessions whose end
// falls inside the billing window for (year, month). A budget of zero
// means none is set. An empty window yields a zero-valued summary, not
// an error.
func (a *Aggregator) Summarize(ctx context.Context, userID int64, year int, month time.Month, periodStartDay int, budget float64) (model.PeriodSummary, error) {
	window := Window(year, month, periodStartDay, a.loc)

	// The window is an inclusive date range; sessions ending any time on
	// the last day belong to it.
	sessions, err := a.store.SessionsEndedBetween(ctx, userID, window.Start, window.End.AddDate(0, 0, 1))
	if err != nil {
		return model.PeriodSummary{}, fmt.Errorf("load sessions for window: %w", err)
	}

	summary := model.PeriodSummary{
		Year:      year,
		Month:     int(month),
		BudgetNOK: budget,
	}

	var totalKWh, spotCost, fixedCost, totalCost float64
	for _, s := range sessions {
		totalKWh += s.EnergyKWh
		spotCost += s.SpotCostNOK
		fixedCost += s.FixedCostNOK
		totalCost += s.TotalCostNOK
	}

	avgPrice := 0.0
	if totalKWh > 0 {
		avgPrice = totalCost / totalKWh
	}

	summary.SessionCount = len(sessions)
	summary.TotalKWh = round(totalKWh, 2)
	summary.SpotCostNOK = round(spotCost, 2)
	summary.FixedCostNOK = round(fixedCost, 2)
	summary.TotalCostNOK = round(totalCost, 2)
	summary.AvgPriceNOK = round(avgPrice, 2)
	if budget > 0 {
		summary.RemainingNOK = round(budget-totalCost, 2)
	}

	a.logger.Debug("period summarized",
		"user_id", userID,
		"window_start", window.Start.Format("2006-01-02"),
		"window_end", window.End.Format("2006-01-02"),
		"sessions", summary.SessionCount,
		"total_cost_nok", summary.TotalCostNOK,
	)

	return summary, nil
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
