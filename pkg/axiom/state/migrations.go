package state

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration is one versioned schema change. Migrations run inside a
// transaction at store open, in ascending version order; a failure aborts
// the open.
type Migration interface {
	Version() int
	Description() string
	Apply(tx *sql.Tx) error
}

// migrations returns the full migration chain, in order.
func migrations() []Migration {
	return []Migration{
		initialMigration{},
		futureExpansionMigration{},
	}
}

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL,
	description TEXT NOT NULL
)`

// runMigrations brings the schema up to the latest version.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(createVersionTable); err != nil {
		return &DatabaseMigrationError{Err: fmt.Errorf("create schema_version table: %w", err)}
	}

	var current sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&current); err != nil {
		return &DatabaseMigrationError{Err: fmt.Errorf("read schema version: %w", err)}
	}

	for _, m := range migrations() {
		if current.Valid && int64(m.Version()) <= current.Int64 {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return &DatabaseMigrationError{Version: m.Version(), Err: err}
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := m.Apply(tx); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO schema_version (version, applied_at, description) VALUES (?, ?, ?)`,
		m.Version(), time.Now().UTC().Format(time.RFC3339Nano), m.Description(),
	)
	if err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	return tx.Commit()
}

// initialMigration creates the core conversation and event tables.
type initialMigration struct{}

func (initialMigration) Version() int        { return 1 }
func (initialMigration) Description() string { return "Initial schema creation" }

func (initialMigration) Apply(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			user_input TEXT NOT NULL,
			assistant_response TEXT NOT NULL,
			detected_intent TEXT,
			processing_time INTEGER,
			timestamp TEXT NOT NULL,
			metadata TEXT,
			CONSTRAINT idx_session_timestamp UNIQUE (session_id, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timestamp ON conversations(timestamp)`,
		`CREATE TABLE IF NOT EXISTS system_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			payload TEXT,
			timestamp TEXT NOT NULL,
			source TEXT NOT NULL,
			correlation_id TEXT,
			CONSTRAINT idx_event_type_timestamp UNIQUE (event_type, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_correlation_id ON system_events(correlation_id)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// futureExpansionMigration adds sensor data and alert tables.
type futureExpansionMigration struct{}

func (futureExpansionMigration) Version() int        { return 2 }
func (futureExpansionMigration) Description() string { return "Add future expansion tables" }

func (futureExpansionMigration) Apply(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sensor_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sensor_id TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT,
			timestamp TEXT NOT NULL,
			metadata TEXT,
			CONSTRAINT idx_sensor_timestamp UNIQUE (sensor_id, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			resolved_at TEXT,
			metadata TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
