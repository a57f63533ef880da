package report

import (
	"time"

	"github.com/HossEz/stromtracker/pkg/model"
)

// Window derives the concrete billing window for (year, month) given the
// user's period start day.
//
// Day 1 yields the calendar month. Any other day d yields the window
// from day d of the previous month through day d-1 of the target month.
// The day-1 case deliberately ends on the last day of the target month
// rather than day 0 of it; billing periods anchored mid-month are
// asymmetric with calendar months by policy.
func Window(year int, month time.Month, periodStartDay int, loc *time.Location) model.BillingWindow {
	if periodStartDay <= 1 {
		start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		end := start.AddDate(0, 1, -1)
		return model.BillingWindow{Start: start, End: end}
	}

	start := time.Date(year, month-1, periodStartDay, 0, 0, 0, 0, loc)
	end := time.Date(year, month, periodStartDay-1, 0, 0, 0, 0, loc)
	return model.BillingWindow{Start: start, End: end}
}
