// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

// Package cache stores raw search results in a local SQLite database so
// the most recent result for a query survives server outages.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_results (
	query      TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);`

// Store is a SQLite-backed search result cache. One row per compiled
// query; a repeated query overwrites its previous result.
type Store struct {
	db *sql.DB
}

// NewStore opens (and creates, if needed) the cache database at path.
// The path ":memory:" yields a throwaway in-process cache.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.NewInternalError("opening cache database", err)
	}
	// The modernc driver does not support concurrent writers on one
	// connection pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, domain.NewInternalError("creating cache schema", err)
	}
	return &Store{db: db}, nil
}

// Put stores the payload for a query, replacing any previous result.
func (s *Store) Put(ctx context.Context, query string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_results (query, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		query, payload, time.Now().Unix())
	if err != nil {
		return domain.NewInternalError("writing cache entry", err)
	}
	return nil
}

// Get returns the stored payload for a query, or a not-found error.
func (s *Store) Get(ctx context.Context, query string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM search_results WHERE query = ?`, query).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("no cached result for query")
	}
	if err != nil {
		return nil, domain.NewInternalError("reading cache entry", err)
	}
	return payload, nil
}

// Prune deletes entries fetched before the cutoff and reports how many
// were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM search_results WHERE fetched_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, domain.NewInternalError("pruning cache", err)
	}
	return result.RowsAffected()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
