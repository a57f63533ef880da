package alerts

import "context"

// AlertLevel indicates the severity of an alert.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"  // Approaching a configured limit
	AlertExceeded AlertLevel = "exceeded" // Limit crossed
)

// AlertKind identifies which check produced an alert.
type AlertKind string

const (
	KindBudget      AlertKind = "budget"
	KindLongRunning AlertKind = "long_running"
	KindMaxDuration AlertKind = "max_duration"
)

// Alert is a single advisory produced by a threshold check.
type Alert struct {
	Kind         AlertKind  `json:"kind"`
	Level        AlertLevel `json:"level"`
	Message      string     `json:"message"`
	BudgetNOK    float64    `json:"budget_nok,omitempty"`
	SpentNOK     float64    `json:"spent_nok,omitempty"`
	UsagePct     float64    `json:"usage_pct,omitempty"`
	Appliance    string     `json:"appliance,omitempty"`
	ElapsedHours float64    `json:"elapsed_hours,omitempty"`
	LimitHours   int        `json:"limit_hours,omitempty"`
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
