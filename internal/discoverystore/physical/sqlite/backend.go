// Package sqlite provides a SQLite-backed discovery cache: durable like
// badger, but a single portable file that plain sqlite tooling can
// inspect.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gezibash/arc-node/internal/discoverystore/physical"
	"github.com/gezibash/arc-node/internal/storage"
)

const (
	KeyPath        = "path"
	KeyJournalMode = "journal_mode"
	KeyBusyTimeout = "busy_timeout"
	KeyMaxTTL      = "max_ttl"
)

func init() {
	physical.Register("sqlite", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SQLite backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:        "~/.arc/discovery-cache.db",
		KeyJournalMode: "wal",
		KeyBusyTimeout: "5000",
		KeyMaxTTL:      "1h",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS cache (
    key          TEXT PRIMARY KEY,
    payload      BLOB NOT NULL,
    cached_at_ms INTEGER NOT NULL,
    expires_at   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache(expires_at) WHERE expires_at > 0;
`

// NewFactory creates a new SQLite backend from a configuration map.
func NewFactory(_ context.Context, config map[string]string) (physical.Backend, error) {
	path := storage.GetString(config, KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("sqlite", KeyPath, "cannot be empty")
	}
	path = storage.ExpandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to create directory", err)
	}

	maxTTL, err := storage.GetDuration(config, KeyMaxTTL, time.Hour)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("sqlite", KeyMaxTTL, config[KeyMaxTTL], err.Error())
	}

	journalMode := storage.GetString(config, KeyJournalMode, "wal")
	busyTimeout := storage.GetString(config, KeyBusyTimeout, "5000")

	dsn := fmt.Sprintf("file:%s?_journal_mode=%s&_busy_timeout=%s",
		path, journalMode, busyTimeout)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to open database", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to initialize schema", err)
	}

	slog.Info("sqlite discovery cache initialized", "path", path, "journal_mode", journalMode, "max_ttl", maxTTL)
	return NewWithDB(db, maxTTL), nil
}

// Backend is a SQLite implementation of physical.Backend.
type Backend struct {
	db     *sql.DB
	maxTTL time.Duration
	closed atomic.Bool
}

// NewWithDB creates a new backend with an existing database handle.
func NewWithDB(db *sql.DB, maxTTL time.Duration) *Backend {
	return &Backend{db: db, maxTTL: maxTTL}
}

func (b *Backend) Put(ctx context.Context, entry *physical.Entry) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry.Entries); err != nil {
		return fmt.Errorf("sqlite encode: %w", err)
	}

	var expiresAt int64
	if b.maxTTL > 0 {
		expiresAt = time.Now().Add(b.maxTTL).UnixMilli()
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO cache (key, payload, cached_at_ms, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload,
		   cached_at_ms = excluded.cached_at_ms, expires_at = excluded.expires_at`,
		entry.Key, buf.Bytes(), entry.CachedAtMs, expiresAt)
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (*physical.Entry, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var payload []byte
	var cachedAtMs, expiresAt int64
	err := b.db.QueryRowContext(ctx,
		`SELECT payload, cached_at_ms, expires_at FROM cache WHERE key = ?`, key).
		Scan(&payload, &cachedAtMs, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, physical.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}

	if expiresAt > 0 && time.Now().UnixMilli() > expiresAt {
		_, _ = b.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key)
		return nil, physical.ErrNotFound
	}

	var raw [][]byte
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("sqlite decode: %w", err)
	}

	return &physical.Entry{Key: key, Entries: raw, CachedAtMs: cachedAtMs}, nil
}

func (b *Backend) Invalidate(ctx context.Context, key string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	if _, err := b.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite invalidate: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
