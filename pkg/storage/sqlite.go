package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HossEz/stromtracker/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) AddAppliance(ctx context.Context, appliance *model.Appliance) error {
	if appliance.ID == "" {
		appliance.ID = uuid.New().String()
	}
	if appliance.CreatedAt.IsZero() {
		appliance.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appliances (id, user_id, name, low_watt, high_watt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		appliance.ID, appliance.UserID, appliance.Name,
		appliance.LowWatt, appliance.HighWatt, appliance.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("appliance %q: %w", appliance.Name, ErrApplianceExists)
	}
	if err != nil {
		return fmt.Errorf("insert appliance: %w", err)
	}
	return nil
}

func (s *SQLite) GetAppliance(ctx context.Context, userID int64, name string) (*model.Appliance, error) {
	var a model.Appliance
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, low_watt, high_watt, created_at
		 FROM appliances WHERE user_id = ? AND name = ?`, userID, name,
	).Scan(&a.ID, &a.UserID, &a.Name, &a.LowWatt, &a.HighWatt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("appliance %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get appliance: %w", err)
	}
	return &a, nil
}

func (s *SQLite) ListAppliances(ctx context.Context, userID int64) ([]model.Appliance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, low_watt, high_watt, created_at
		 FROM appliances WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list appliances: %w", err)
	}
	defer rows.Close()

	var appliances []model.Appliance
	for rows.Next() {
		var a model.Appliance
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.LowWatt, &a.HighWatt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan appliance row: %w", err)
		}
		appliances = append(appliances, a)
	}
	return appliances, rows.Err()
}

func (s *SQLite) DeleteAppliance(ctx context.Context, userID int64, name string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM appliances WHERE user_id = ? AND name = ?", userID, name)
	if err != nil {
		return fmt.Errorf("delete appliance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appliance %q: %w", name, ErrNotFound)
	}
	return nil
}

func (s *SQLite) StartSession(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.StartTime.IsZero() {
		session.StartTime = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, appliance_id, start_time, watt_mode, watts)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.ApplianceID,
		session.StartTime.UTC(), session.WattMode, session.Watts,
	)
	if isUniqueViolation(err) {
		return ErrActiveSession
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLite) ActiveSession(ctx context.Context, userID int64) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, sessionQuery+
		` WHERE s.user_id = ? AND s.end_time IS NULL AND s.cancelled = 0`, userID)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return session, nil
}

func (s *SQLite) FinalizeSession(ctx context.Context, id string, endTime time.Time, result model.ConsumptionResult) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET end_time = ?, energy_kwh = ?, spot_cost_nok = ?, fixed_cost_nok = ?, total_cost_nok = ?
		 WHERE id = ? AND end_time IS NULL`,
		endTime.UTC(), result.EnergyKWh, result.SpotCostNOK,
		result.FixedCostNOK, result.TotalCostNOK, id,
	)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) CancelSession(ctx context.Context, id string, endTime time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET cancelled = 1, end_time = ? WHERE id = ? AND end_time IS NULL`,
		endTime.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) SessionsEndedBetween(ctx context.Context, userID int64, start, end time.Time) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionQuery+
		` WHERE s.user_id = ? AND s.end_time IS NOT NULL AND s.cancelled = 0
		  AND s.end_time >= ? AND s.end_time < ?
		 ORDER BY s.end_time DESC`,
		userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (s *SQLite) RecentSessions(ctx context.Context, userID int64, limit int) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionQuery+
		` WHERE s.user_id = ? AND s.end_time IS NOT NULL AND s.cancelled = 0
		 ORDER BY s.end_time DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (s *SQLite) ClearSessions(ctx context.Context, userID int64, start, end time.Time) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if start.IsZero() && end.IsZero() {
		res, err = s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM sessions
			 WHERE user_id = ? AND end_time IS NOT NULL AND end_time >= ? AND end_time < ?`,
			userID, start.UTC(), end.UTC())
	}
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return deleted, nil
}

func (s *SQLite) GetSettings(ctx context.Context, userID int64) (*model.Settings, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_settings (user_id) VALUES (?)", userID)
	if err != nil {
		return nil, fmt.Errorf("create default settings: %w", err)
	}

	var st model.Settings
	err = s.db.QueryRowContext(ctx,
		`SELECT user_id, fixed_cost_nok, budget_nok, period_start_day, region, max_duration_hours
		 FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &st.FixedCostNOK, &st.BudgetNOK,
		&st.PeriodStartDay, &st.Region, &st.MaxDurationHours)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &st, nil
}

func (s *SQLite) UpdateSettings(ctx context.Context, userID int64, patch model.SettingsPatch) error {
	// Ensure the row exists so a partial update never silently no-ops.
	if _, err := s.GetSettings(ctx, userID); err != nil {
		return err
	}

	var sets []string
	var args []any
	if patch.FixedCostNOK != nil {
		sets = append(sets, "fixed_cost_nok = ?")
		args = append(args, *patch.FixedCostNOK)
	}
	if patch.BudgetNOK != nil {
		sets = append(sets, "budget_nok = ?")
		args = append(args, *patch.BudgetNOK)
	}
	if patch.PeriodStartDay != nil {
		sets = append(sets, "period_start_day = ?")
		args = append(args, *patch.PeriodStartDay)
	}
	if patch.Region != nil {
		sets = append(sets, "region = ?")
		args = append(args, *patch.Region)
	}
	if patch.MaxDurationHours != nil {
		sets = append(sets, "max_duration_hours = ?")
		args = append(args, *patch.MaxDurationHours)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, userID)
	query := "UPDATE user_settings SET " + strings.Join(sets, ", ") + " WHERE user_id = ?"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func (s *SQLite) GetPriceCurve(ctx context.Context, date time.Time, region string) (*model.PriceCurve, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT hour, price_nok FROM price_cache WHERE date = ? AND region = ?",
		dateKey(date), region)
	if err != nil {
		return nil, fmt.Errorf("query price cache: %w", err)
	}
	defer rows.Close()

	prices := make(map[int]float64)
	for rows.Next() {
		var hour int
		var price float64
		if err := rows.Scan(&hour, &price); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		prices[hour] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, nil
	}

	return &model.PriceCurve{Date: model.DayOf(date), Region: region, Prices: prices}, nil
}

func (s *SQLite) PutPriceCurve(ctx context.Context, curve model.PriceCurve) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin curve write: %w", err)
	}

	key := dateKey(curve.Date)
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM price_cache WHERE date = ? AND region = ?", key, curve.Region); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replace price curve: %w", err)
	}

	cachedAt := time.Now().UTC()
	hours := make([]int, 0, len(curve.Prices))
	for hour := range curve.Prices {
		hours = append(hours, hour)
	}
	sort.Ints(hours)

	for _, hour := range hours {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO price_cache (date, region, hour, price_nok, cached_at)
			 VALUES (?, ?, ?, ?, ?)`,
			key, curve.Region, hour, curve.Prices[hour], cachedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert price row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit price curve: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// dateKey is the single place a curve date becomes a cache key.
func dateKey(date time.Time) string {
	return date.Format("2006-01-02")
}

const sessionQuery = `SELECT s.id, s.user_id, s.appliance_id, a.name, s.start_time, s.end_time,
	s.watt_mode, s.watts, s.energy_kwh, s.spot_cost_nok, s.fixed_cost_nok, s.total_cost_nok, s.cancelled
	FROM sessions s JOIN appliances a ON s.appliance_id = a.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		sess    model.Session
		endTime sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.ApplianceID, &sess.ApplianceName,
		&sess.StartTime, &endTime, &sess.WattMode, &sess.Watts,
		&sess.EnergyKWh, &sess.SpotCostNOK, &sess.FixedCostNOK, &sess.TotalCostNOK, &sess.Cancelled)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		t := endTime.Time
		sess.EndTime = &t
	}
	return &sess, nil
}

func collectSessions(rows *sql.Rows) ([]model.Session, error) {
	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
