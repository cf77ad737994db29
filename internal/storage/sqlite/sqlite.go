package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/goodtune/tvbudget/internal/storage"
	_ "modernc.org/sqlite"
)

// Store implements the storage.Store interface on an embedded SQLite database
type Store struct {
	db           *sql.DB
	accumulators *accumulatorStore
	themeCache   *themeCacheStore
	sessions     *sessionLogStore
}

// Open creates a new database connection and runs migrations
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := storage.EnsureDir(filepath.Dir(dbPath)); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite limitation
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:           db,
		accumulators: &accumulatorStore{db: db},
		themeCache:   &themeCacheStore{db: db},
		sessions:     &sessionLogStore{db: db},
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Accumulators returns the AccumulatorStore implementation
func (s *Store) Accumulators() storage.AccumulatorStore {
	return s.accumulators
}

// ThemeCache returns the ThemeCacheStore implementation
func (s *Store) ThemeCache() storage.ThemeCacheStore {
	return s.themeCache
}

// Sessions returns the SessionLogStore implementation
func (s *Store) Sessions() storage.SessionLogStore {
	return s.sessions
}

type migration struct {
	version int
	sql     string
}

// runMigrations applies all database migrations in version order
func runMigrations(db *sql.DB) error {
	// Create migrations table
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

var migrations = []migration{
	{1, migration001Accumulators},
	{2, migration002ThemeCache},
	{3, migration003SessionLog},
}

// Migration schemas
const migration001Accumulators = `
CREATE TABLE IF NOT EXISTS accumulators (
	theme TEXT PRIMARY KEY,
	cumulative_seconds REAL NOT NULL DEFAULT 0,
	limit_seconds REAL, -- NULL when the theme has no configured limit
	last_update TEXT NOT NULL,
	last_alert_at TEXT
);
`

const migration002ThemeCache = `
CREATE TABLE IF NOT EXISTS theme_cache (
	video_id TEXT PRIMARY KEY,
	theme TEXT NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT -- NULL never expires
);
`

const migration003SessionLog = `
CREATE TABLE IF NOT EXISTS session_log (
	id TEXT PRIMARY KEY,
	video_id TEXT NOT NULL,
	theme TEXT NOT NULL,
	title TEXT,
	channel TEXT,
	started_at TEXT NOT NULL,
	ended_at TEXT NOT NULL,
	duration_seconds REAL NOT NULL
);

CREATE INDEX idx_session_log_ended ON session_log(ended_at);
`
