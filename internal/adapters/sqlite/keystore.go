// Package sqlite provides the durable, single-device session record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/target/estate-portal/internal/migrate"
	"github.com/target/estate-portal/internal/ports"
)

const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// KeyStore persists session entries in a local sqlite file.
type KeyStore struct {
	db *sql.DB
}

var (
	_ ports.KeyStore      = (*KeyStore)(nil)
	_ ports.EventRecorder = (*KeyStore)(nil)
)

// Open opens (creating if needed) the sqlite file at path and applies migrations.
func Open(ctx context.Context, path string) (*KeyStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	db, err := sql.Open("sqlite", cleanPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps BEGIN/COMMIT pairs from interleaving across connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate.Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &KeyStore{db: db}, nil
}

// Close closes the sqlite handle.
func (s *KeyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the entries present for keys.
func (s *KeyStore) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	//nolint:gosec // placeholders only, values are bound
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM session_entries WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}
	return out, nil
}

// Set upserts every entry in a single transaction.
func (s *KeyStore) Set(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		for k, v := range entries {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO session_entries (key, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v, now); err != nil {
				return fmt.Errorf("upsert %s: %w", k, err)
			}
		}
		return nil
	})
}

// Delete removes keys in a single transaction.
func (s *KeyStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_entries WHERE key = ?`, k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// RecordEvent appends a session transition to the local audit trail.
func (s *KeyStore) RecordEvent(ctx context.Context, ev ports.SessionEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_events (kind, category, occurred_at) VALUES (?, ?, ?)`,
		ev.Kind, ev.Category, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record session event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *KeyStore) RecentEvents(ctx context.Context, limit int) ([]ports.SessionEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, category, occurred_at FROM session_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list session events: %w", err)
	}
	defer rows.Close()

	var events []ports.SessionEvent
	for rows.Next() {
		var ev ports.SessionEvent
		var at string
		if err := rows.Scan(&ev.Kind, &ev.Category, &at); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		if parsed, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			ev.At = parsed
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *KeyStore) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
