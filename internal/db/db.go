package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"frontier-engine/internal/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

func dbPath() string {
	// Prefer working directory so the DB is stable across go run / go build.
	// Fall back to executable directory for deployed builds.
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "frontier.db")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "frontier.db")
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// An empty path uses frontier.db in the working directory.
func Open(path string) (*DB, error) {
	if path == "" {
		path = dbPath()
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS frontier_runs (
				id             TEXT PRIMARY KEY,
				created_at     TEXT NOT NULL,
				assets_json    TEXT NOT NULL,
				trials         INTEGER NOT NULL,
				workers        INTEGER NOT NULL,
				seed           TEXT NOT NULL,
				risk_free      REAL NOT NULL,
				sampler        TEXT NOT NULL,
				optimal_index  INTEGER NOT NULL,
				opt_return     REAL,
				opt_volatility REAL,
				opt_sharpe     REAL,
				weights_json   TEXT NOT NULL DEFAULT '[]',
				minvar_index   INTEGER NOT NULL DEFAULT 0,
				duration_ms    INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_runs_created ON frontier_runs(created_at);

			CREATE TABLE IF NOT EXISTS frontier_trials (
				run_id       TEXT NOT NULL REFERENCES frontier_runs(id) ON DELETE CASCADE,
				idx          INTEGER NOT NULL,
				ret          REAL NOT NULL,
				volatility   REAL NOT NULL,
				sharpe       REAL,
				weights_json TEXT NOT NULL,
				PRIMARY KEY (run_id, idx)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			ALTER TABLE frontier_runs ADD COLUMN label TEXT NOT NULL DEFAULT '';
			ALTER TABLE frontier_runs ADD COLUMN mean_returns_json TEXT NOT NULL DEFAULT '[]';

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (run labels)")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}
