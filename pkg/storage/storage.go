package storage

import (
	"context"
	"errors"
	"time"

	"github.com/HossEz/stromtracker/pkg/model"
)

var (
	// ErrNotFound is returned when an appliance, session or setting does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrApplianceExists is returned when adding an appliance whose name
	// (case-insensitive) is already registered for the user.
	ErrApplianceExists = errors.New("appliance already exists")

	// ErrActiveSession is returned when starting a session while another
	// one is still running for the user.
	ErrActiveSession = errors.New("another session is already active")
)

// Storage defines the persistence layer for appliances, sessions,
// settings and cached price curves.
type Storage interface {
	// AddAppliance registers a new appliance for a user.
	AddAppliance(ctx context.Context, appliance *model.Appliance) error

	// GetAppliance looks an appliance up by case-insensitive name.
	GetAppliance(ctx context.Context, userID int64, name string) (*model.Appliance, error)

	// ListAppliances returns a user's appliances ordered by name.
	ListAppliances(ctx context.Context, userID int64) ([]model.Appliance, error)

	// DeleteAppliance removes an appliance by case-insensitive name.
	DeleteAppliance(ctx context.Context, userID int64, name string) error

	// StartSession persists a new active session. At most one active
	// session per user is allowed.
	StartSession(ctx context.Context, session *model.Session) error

	// ActiveSession returns the user's running session, or nil.
	ActiveSession(ctx context.Context, userID int64) (*model.Session, error)

	// FinalizeSession ends a session and records its computed costs.
	FinalizeSession(ctx context.Context, id string, endTime time.Time, result model.ConsumptionResult) error

	// CancelSession ends a session without recording costs.
	CancelSession(ctx context.Context, id string, endTime time.Time) error

	// SessionsEndedBetween returns completed, non-cancelled sessions whose
	// end time falls in [start, end), newest first.
	SessionsEndedBetween(ctx context.Context, userID int64, start, end time.Time) ([]model.Session, error)

	// RecentSessions returns the most recently completed sessions.
	RecentSessions(ctx context.Context, userID int64, limit int) ([]model.Session, error)

	// ClearSessions deletes a user's sessions; with non-zero bounds only
	// those that ended in [start, end). Returns the number deleted.
	ClearSessions(ctx context.Context, userID int64, start, end time.Time) (int64, error)

	// GetSettings returns the user's settings, creating defaults on
	// first access.
	GetSettings(ctx context.Context, userID int64) (*model.Settings, error)

	// UpdateSettings applies a partial settings update.
	UpdateSettings(ctx context.Context, userID int64, patch model.SettingsPatch) error

	// GetPriceCurve returns the cached curve for (date, region), or nil
	// on a cache miss.
	GetPriceCurve(ctx context.Context, date time.Time, region string) (*model.PriceCurve, error)

	// PutPriceCurve atomically replaces the full curve for its
	// (date, region) key.
	PutPriceCurve(ctx context.Context, curve model.PriceCurve) error

	// Close releases resources.
	Close() error
}
