package model

import (
	"fmt"
	"time"
)

// WattMode selects which declared power rating a tracking session uses.
type WattMode string

const (
	WattLow  WattMode = "low"
	WattHigh WattMode = "high"
	WattAvg  WattMode = "avg"
)

// Valid reports whether the mode is one of low, high or avg.
func (m WattMode) Valid() bool {
	return m == WattLow || m == WattHigh || m == WattAvg
}

// ResolveWatts maps a watt mode to a concrete wattage. The average mode
// uses integer floor division.
func ResolveWatts(lowWatt, highWatt int, mode WattMode) int {
	switch mode {
	case WattLow:
		return lowWatt
	case WattHigh:
		return highWatt
	default:
		return (lowWatt + highWatt) / 2
	}
}

// Appliance is a user-registered device with a low and high power rating.
type Appliance struct {
	ID        string    `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	LowWatt   int       `json:"low_watt" db:"low_watt"`
	HighWatt  int       `json:"high_watt" db:"high_watt"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Session is a single tracked run of an appliance. EndTime is nil while
// the session is still active; the cost fields are filled in when the
// session is finalized.
type Session struct {
	ID            string     `json:"id" db:"id"`
	UserID        int64      `json:"user_id" db:"user_id"`
	ApplianceID   string     `json:"appliance_id" db:"appliance_id"`
	ApplianceName string     `json:"appliance_name,omitempty" db:"appliance_name"`
	StartTime     time.Time  `json:"start_time" db:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty" db:"end_time"`
	WattMode      WattMode   `json:"watt_mode" db:"watt_mode"`
	Watts         int        `json:"watts" db:"watts"`
	EnergyKWh     float64    `json:"energy_kwh" db:"energy_kwh"`
	SpotCostNOK   float64    `json:"spot_cost_nok" db:"spot_cost_nok"`
	FixedCostNOK  float64    `json:"fixed_cost_nok" db:"fixed_cost_nok"`
	TotalCostNOK  float64    `json:"total_cost_nok" db:"total_cost_nok"`
	Cancelled     bool       `json:"cancelled" db:"cancelled"`
}

// Elapsed returns how long the session has been running at the given
// instant, or the final duration once the session has ended.
func (s Session) Elapsed(now time.Time) time.Duration {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	if end.Before(s.StartTime) {
		return 0
	}
	return end.Sub(s.StartTime)
}

// Settings holds per-user configuration. A BudgetNOK of zero means no
// budget is set; a MaxDurationHours of zero disables the auto-stop check.
type Settings struct {
	UserID           int64   `json:"user_id" db:"user_id"`
	FixedCostNOK     float64 `json:"fixed_cost_nok" db:"fixed_cost_nok"`
	BudgetNOK        float64 `json:"budget_nok" db:"budget_nok"`
	PeriodStartDay   int     `json:"period_start_day" db:"period_start_day"`
	Region           string  `json:"region" db:"region"`
	MaxDurationHours int     `json:"max_duration_hours" db:"max_duration_hours"`
}

// SettingsPatch is a partial settings update; nil fields are left as-is.
type SettingsPatch struct {
	FixedCostNOK     *float64 `json:"fixed_cost_nok,omitempty"`
	BudgetNOK        *float64 `json:"budget_nok,omitempty"`
	PeriodStartDay   *int     `json:"period_start_day,omitempty"`
	Region           *string  `json:"region,omitempty"`
	MaxDurationHours *int     `json:"max_duration_hours,omitempty"`
}

// PriceCurve holds one day's hourly spot prices for a region, MVA
// included. Curves are immutable once cached: settled prices for a past
// day never change.
type PriceCurve struct {
	Date   time.Time       `json:"date"`
	Region string          `json:"region"`
	Prices map[int]float64 `json:"prices"`
}

// Price returns the price for an hour of day (0-23) and whether the
// curve has an entry for it.
func (c PriceCurve) Price(hour int) (float64, bool) {
	p, ok := c.Prices[hour]
	return p, ok
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Hours returns the interval length in hours, or 0 for degenerate
// intervals (End <= Start).
func (iv Interval) Hours() float64 {
	if !iv.End.After(iv.Start) {
		return 0
	}
	return iv.End.Sub(iv.Start).Hours()
}

// HourCost is the contribution of a single clock-hour bucket to a cost
// calculation.
type HourCost struct {
	HourStart time.Time `json:"hour_start"`
	Fraction  float64   `json:"fraction"`
	PriceNOK  float64   `json:"price_nok"`
	EnergyKWh float64   `json:"energy_kwh"`
	CostNOK   float64   `json:"cost_nok"`
}

// ConsumptionResult is the outcome of a cost calculation over one
// interval. Degraded is set when a fallback price stood in for missing
// hourly prices.
type ConsumptionResult struct {
	Hours        float64    `json:"hours"`
	EnergyKWh    float64    `json:"energy_kwh"`
	SpotCostNOK  float64    `json:"spot_cost_nok"`
	FixedCostNOK float64    `json:"fixed_cost_nok"`
	TotalCostNOK float64    `json:"total_cost_nok"`
	AvgSpotPrice float64    `json:"avg_spot_price"`
	Degraded     bool       `json:"degraded,omitempty"`
	Breakdown    []HourCost `json:"breakdown,omitempty"`
}

// BillingWindow is a concrete billing period: the inclusive date range
// [Start, End], both at midnight in the pricing timezone.
type BillingWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PeriodSummary aggregates the completed sessions of one billing window.
type PeriodSummary struct {
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	SessionCount int     `json:"session_count"`
	TotalKWh     float64 `json:"total_kwh"`
	SpotCostNOK  float64 `json:"spot_cost_nok"`
	FixedCostNOK float64 `json:"fixed_cost_nok"`
	TotalCostNOK float64 `json:"total_cost_nok"`
	AvgPriceNOK  float64 `json:"avg_price_nok"`
	BudgetNOK    float64 `json:"budget_nok,omitempty"`
	RemainingNOK float64 `json:"remaining_nok,omitempty"`
	Region       string  `json:"region,omitempty"`
}

// DayOf truncates an instant to midnight in its own location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatHours renders a duration in hours as "2h 15m".
func FormatHours(hours float64) string {
	totalMinutes := int(hours * 60)
	h := totalMinutes / 60
	m := totalMinutes % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
