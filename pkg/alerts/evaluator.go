// Package alerts holds the stateless threshold checks over period
// summaries and active sessions, plus the notifiers that deliver them.
package alerts

import (
	"fmt"
	"time"

	"github.com/HossEz/stromtracker/pkg/model"
)

const (
	// BudgetWarningPct is the budget usage at which a warning fires.
	BudgetWarningPct = 80.0

	// LongRunningHours is the session length after which the
	// long-running advisory fires.
	LongRunningHours = 2.0
)

// CheckBudget inspects a period summary against its budget. It returns
// at most one alert: exceeded at 100% or more, a warning at 80% or
// more, nil below that or when no budget is set.
func CheckBudget(summary model.PeriodSummary) *Alert {
	if summary.BudgetNOK <= 0 {
		return nil
	}

	pct := summary.TotalCostNOK / summary.BudgetNOK * 100
	switch {
	case pct >= 100:
		return &Alert{
			Kind:      KindBudget,
			Level:     AlertExceeded,
			BudgetNOK: summary.BudgetNOK,
			SpentNOK:  summary.TotalCostNOK,
			UsagePct:  pct,
			Message: fmt.Sprintf("Budget exceeded! %.2f kr / %.2f kr (%.0f%%)",
				summary.TotalCostNOK, summary.BudgetNOK, pct),
		}
	case pct >= BudgetWarningPct:
		return &Alert{
			Kind:      KindBudget,
			Level:     AlertWarning,
			BudgetNOK: summary.BudgetNOK,
			SpentNOK:  summary.TotalCostNOK,
			UsagePct:  pct,
			Message: fmt.Sprintf("Budget warning: %.0f%% used. %.2f kr remaining.",
				pct, summary.BudgetNOK-summary.TotalCostNOK),
		}
	default:
		return nil
	}
}

// CheckRuntime flags an active session that has been running for two
// hours or more.
func CheckRuntime(session model.Session, now time.Time) *Alert {
	hours := session.Elapsed(now).Hours()
	if hours < LongRunningHours {
		return nil
	}
	return &Alert{
		Kind:         KindLongRunning,
		Level:        AlertWarning,
		Appliance:    session.ApplianceName,
		ElapsedHours: hours,
		Message: fmt.Sprintf("Long session: %s has been running for %.1f hours. Stop it when done or cancel to abort.",
			session.ApplianceName, hours),
	}
}

// CheckMaxDuration recommends stopping a session that has reached the
// user's configured maximum duration. A maxHours of zero disables the
// check.
func CheckMaxDuration(session model.Session, now time.Time, maxHours int) *Alert {
	if maxHours <= 0 {
		return nil
	}
	hours := session.Elapsed(now).Hours()
	if hours < float64(maxHours) {
		return nil
	}
	return &Alert{
		Kind:         KindMaxDuration,
		Level:        AlertExceeded,
		Appliance:    session.ApplianceName,
		ElapsedHours: hours,
		LimitHours:   maxHours,
		Message: fmt.Sprintf("Max duration reached: %s has been running for %.1fh (limit: %dh). Session should be stopped.",
			session.ApplianceName, hours, maxHours),
	}
}

// Evaluate runs all applicable checks. session may be nil when no
// session is active. The checks are independent; any combination may
// fire in one cycle.
func Evaluate(summary model.PeriodSummary, session *model.Session, now time.Time, maxHours int) []Alert {
	var out []Alert
	if a := CheckBudget(summary); a != nil {
		out = append(out, *a)
	}
	if session != nil {
		if a := CheckRuntime(*session, now); a != nil {
			out = append(out, *a)
		}
		if a := CheckMaxDuration(*session, now, maxHours); a != nil {
			out = append(out, *a)
		}
	}
	return out
}
