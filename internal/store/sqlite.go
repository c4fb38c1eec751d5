/*
Package store exports search indexes to SQLite for use outside the server.

The database is written with modernc.org/sqlite (a pure Go, CGo-free
implementation). Each export replaces the previous records wholesale inside a
single transaction, mirroring how the documentation generator replaces the
search index on every build.
*/
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/docindex/mcp-server/internal/searchindex"
)

var ErrNotExported = errors.New("database holds no exported search index")

// Meta describes the export currently held by the database
type Meta struct {
	SchemaVersion int       `json:"schema_version"`
	BuildID       string    `json:"build_id"`
	Records       int       `json:"records"`
	Digest        string    `json:"digest"` // sha256 of the canonical search_index.js
	ExportedAt    time.Time `json:"exported_at"`
}

// Match is a record found by SearchLike
type Match struct {
	Ordinal int                `json:"ordinal"`
	Record  searchindex.Record `json:"record"`
}

// Store is a SQLite database holding one exported search index
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies migrations
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Replace swaps the stored records for those of idx in one transaction
func (s *Store) Replace(ctx context.Context, idx *searchindex.Index, buildID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (ordinal, location, page, title, text, category)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for n := 0; n < idx.Len(); n++ {
		rec := idx.At(n)
		if _, err := stmt.ExecContext(ctx, n, rec.Location, rec.Page, rec.Title, rec.Text, rec.Category); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", n, err)
		}
	}

	meta := map[string]string{
		"schema_version": strconv.Itoa(searchindex.IndexSchemaVersion),
		"build_id":       buildID,
		"records":        strconv.Itoa(idx.Len()),
		"digest":         idx.Digest(),
		"exported_at":    time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO index_meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}
	return nil
}

// Index reads the stored records back in document order
func (s *Store) Index(ctx context.Context) (*searchindex.Index, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT location, page, title, text, category FROM records ORDER BY ordinal")
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var docs []searchindex.Record
	for rows.Next() {
		var rec searchindex.Record
		if err := rows.Scan(&rec.Location, &rec.Page, &rec.Title, &rec.Text, &rec.Category); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		docs = append(docs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return searchindex.New(docs), nil
}

// Meta returns the metadata of the current export
func (s *Store) Meta(ctx context.Context) (Meta, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM index_meta")
	if err != nil {
		return Meta{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Meta{}, fmt.Errorf("failed to scan metadata: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return Meta{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	if len(values) == 0 {
		return Meta{}, ErrNotExported
	}

	meta := Meta{BuildID: values["build_id"], Digest: values["digest"]}
	meta.SchemaVersion, _ = strconv.Atoi(values["schema_version"])
	meta.Records, _ = strconv.Atoi(values["records"])
	meta.ExportedAt, _ = time.Parse(time.RFC3339, values["exported_at"])
	return meta, nil
}

// SearchLike finds records whose title or text contains text, using
// SQLite's LIKE (case-insensitive for ASCII only). Results are in document order.
func (s *Store) SearchLike(ctx context.Context, text string, limit int) ([]Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Match{}, nil
	}
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	pattern := "%" + escapeLike(text) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, location, page, title, text, category
		FROM records
		WHERE title LIKE ? ESCAPE '\' OR text LIKE ? ESCAPE '\'
		ORDER BY ordinal
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Ordinal, &m.Record.Location, &m.Record.Page, &m.Record.Title, &m.Record.Text, &m.Record.Category); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Export writes idx into the database at path under a new build id,
// replacing whatever an earlier export left there
func Export(ctx context.Context, path string, idx *searchindex.Index) (string, error) {
	s, err := Open(path)
	if err != nil {
		return "", err
	}
	defer s.Close()

	buildID := uuid.New().String()
	if err := s.Replace(ctx, idx, buildID); err != nil {
		return "", err
	}
	return buildID, nil
}

// Load reads the search index exported to the database at path
func Load(ctx context.Context, path string) (*searchindex.Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to access database: %w", err)
	}
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if _, err := s.Meta(ctx); err != nil {
		return nil, err
	}
	return s.Index(ctx)
}
