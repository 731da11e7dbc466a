package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"groundlink/internal/config"
)

// Store manages coordination state backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the coordination database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Counts summarizes entity totals for the status surface.
type Counts struct {
	Missions          int `json:"missions"`
	ExecutingMissions int `json:"executing_missions"`
	ActiveSessions    int `json:"active_sessions"`
	ProcessingJobs    int `json:"processing_jobs"`
	Devices           int `json:"devices"`
}

// CountEntities aggregates totals across the coordination tables.
func (s *Store) CountEntities(ctx context.Context) (Counts, error) {
	var counts Counts
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(1) FROM missions", &counts.Missions},
		{"SELECT COUNT(1) FROM missions WHERE status = 'executing'", &counts.ExecutingMissions},
		{"SELECT COUNT(1) FROM capture_sessions WHERE status = 'active'", &counts.ActiveSessions},
		{"SELECT COUNT(1) FROM processing_jobs WHERE status = 'processing'", &counts.ProcessingJobs},
		{"SELECT COUNT(1) FROM devices", &counts.Devices},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return Counts{}, fmt.Errorf("count entities: %w", err)
		}
	}
	return counts, nil
}
