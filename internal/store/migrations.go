package store

import (
	"fmt"
	"log"
)

// migration represents a single schema migration
type migration struct {
	version int
	name    string
	up      func() error
}

// runMigrations applies the migrations the database has not seen yet
func (s *Store) runMigrations() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	migrations := []migration{
		{version: 1, name: "records", up: s.migration001Records},
		{version: 2, name: "records_search_indexes", up: s.migration002SearchIndexes},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		log.Printf("Running migration %d: %s", m.version, m.name)
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
	}

	return nil
}

func (s *Store) migration001Records() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			ordinal INTEGER PRIMARY KEY,
			location TEXT NOT NULL,
			page TEXT NOT NULL,
			title TEXT NOT NULL,
			text TEXT NOT NULL,
			category TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create index_meta table: %w", err)
	}
	return nil
}

func (s *Store) migration002SearchIndexes() error {
	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_location
		ON records(location)
	`); err != nil {
		return fmt.Errorf("failed to create location index: %w", err)
	}
	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_records_category
		ON records(category)
	`); err != nil {
		return fmt.Errorf("failed to create category index: %w", err)
	}
	return nil
}
