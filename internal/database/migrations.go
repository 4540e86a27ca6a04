package database

import (
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

const schemaVersionSQL = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
`

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_analyses_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS analyses (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL DEFAULT '',
				score REAL NOT NULL,
				verdict TEXT NOT NULL,
				labels TEXT NOT NULL DEFAULT '[]',
				rationale TEXT NOT NULL DEFAULT '',
				evidence TEXT NOT NULL DEFAULT '[]',
				llm_score REAL NOT NULL DEFAULT 50,
				ml_score REAL,
				ml_verdict TEXT NOT NULL DEFAULT '',
				flags TEXT NOT NULL DEFAULT '[]',
				explanation TEXT NOT NULL DEFAULT '{}',
				model TEXT NOT NULL DEFAULT '',
				latency_ms INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
			CREATE INDEX IF NOT EXISTS idx_analyses_verdict ON analyses(verdict);
		`,
	},
	{
		Version: 2,
		Name:    "create_reference_articles_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS reference_articles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL,
				body TEXT NOT NULL DEFAULT '',
				label TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				UNIQUE (title, source)
			);
		`,
	},
	{
		Version: 3,
		Name:    "create_feedback_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS feedback (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				analysis_id TEXT NOT NULL,
				original_score REAL NOT NULL DEFAULT 0,
				correct_score REAL NOT NULL DEFAULT 0,
				original_verdict TEXT NOT NULL DEFAULT '',
				correct_verdict TEXT NOT NULL DEFAULT '',
				user_feedback TEXT NOT NULL DEFAULT '',
				timestamp DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_feedback_analysis_id ON feedback(analysis_id);
		`,
	},
	{
		Version: 4,
		Name:    "create_calibration_logs_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS calibration_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp DATETIME NOT NULL,
				total_analyses INTEGER NOT NULL,
				calibrated_analyses INTEGER NOT NULL,
				calibration_rate REAL NOT NULL,
				average_accuracy REAL NOT NULL,
				results TEXT NOT NULL DEFAULT '[]'
			);
		`,
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.conn.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Info("checking schema version", "current_version", currentVersion, "latest_version", len(migrations))

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("applying migration", "version", migration.Version, "name", migration.Name)
		tx, err := db.conn.Beginx()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(db.conn.Rebind("INSERT INTO schema_version (version) VALUES (?)"), migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the latest applied migration version
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.conn.Get(&version, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	return version, err
}
