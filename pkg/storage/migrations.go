package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS appliances (
		id         TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		name       TEXT NOT NULL COLLATE NOCASE,
		low_watt   INTEGER NOT NULL,
		high_watt  INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, name)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		user_id        INTEGER NOT NULL,
		appliance_id   TEXT NOT NULL REFERENCES appliances(id),
		start_time     DATETIME NOT NULL,
		end_time       DATETIME,
		watt_mode      TEXT NOT NULL CHECK(watt_mode IN ('low', 'high', 'avg')),
		watts          INTEGER NOT NULL,
		energy_kwh     REAL NOT NULL DEFAULT 0.0,
		spot_cost_nok  REAL NOT NULL DEFAULT 0.0,
		fixed_cost_nok REAL NOT NULL DEFAULT 0.0,
		total_cost_nok REAL NOT NULL DEFAULT 0.0,
		cancelled      INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_end_time ON sessions(end_time);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active
		ON sessions(user_id) WHERE end_time IS NULL AND cancelled = 0;

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id            INTEGER PRIMARY KEY,
		fixed_cost_nok     REAL NOT NULL DEFAULT 1.0,
		budget_nok         REAL NOT NULL DEFAULT 0.0,
		period_start_day   INTEGER NOT NULL DEFAULT 1,
		region             TEXT NOT NULL DEFAULT 'NO1',
		max_duration_hours INTEGER NOT NULL DEFAULT 0,
		created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS price_cache (
		date      TEXT NOT NULL,
		region    TEXT NOT NULL,
		hour      INTEGER NOT NULL,
		price_nok REAL NOT NULL,
		cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (date, region, hour)
	);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
