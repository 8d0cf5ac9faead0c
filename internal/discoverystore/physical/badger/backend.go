// Package badger provides a BadgerDB-backed discovery cache, durable
// across daemon restarts. It is cmd/arc-discoveryd's default backend.
package badger

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/gezibash/arc-node/internal/discoverystore/physical"
	"github.com/gezibash/arc-node/internal/storage"
)

const keyPrefix = "discovery/"

const (
	KeyPath       = "path"
	KeySyncWrites = "sync_writes"
	KeyInMemory   = "in_memory"
	// KeyMaxTTL bounds how long an entry may live in badger even if the
	// caller never invalidates it; a safety net independent of the
	// per-lookup cacheMaxAgeMs enforced by pkg/discovery.Aggregator.
	KeyMaxTTL = "max_ttl"
)

func init() {
	physical.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:       "~/.arc/discovery-cache",
		KeySyncWrites: "false",
		KeyInMemory:   "false",
		KeyMaxTTL:     "1h",
	}
}

// NewFactory creates a new BadgerDB backend from a configuration map.
func NewFactory(_ context.Context, config map[string]string) (physical.Backend, error) {
	inMemory, err := storage.GetBool(config, KeyInMemory, false)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("badger", KeyInMemory, config[KeyInMemory], err.Error())
	}

	maxTTL, err := storage.GetDuration(config, KeyMaxTTL, time.Hour)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("badger", KeyMaxTTL, config[KeyMaxTTL], err.Error())
	}

	if inMemory {
		return newInMemory(maxTTL)
	}

	path := storage.GetString(config, KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("badger", KeyPath, "cannot be empty")
	}
	path = storage.ExpandPath(path)

	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to create directory", err)
	}

	syncWrites, err := storage.GetBool(config, KeySyncWrites, false)
	if err != nil {
		return nil, storage.NewConfigErrorWithValue("badger", KeySyncWrites, config[KeySyncWrites], err.Error())
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = syncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to open database", err)
	}

	slog.Info("badger discovery cache initialized", "path", path, "max_ttl", maxTTL)
	return NewWithDB(db, maxTTL), nil
}

func newInMemory(maxTTL time.Duration) (*Backend, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyInMemory, "failed to open in-memory database", err)
	}

	slog.Info("badger discovery cache initialized (in-memory)", "max_ttl", maxTTL)
	return NewWithDB(db, maxTTL), nil
}

// Backend is a BadgerDB implementation of physical.Backend.
type Backend struct {
	db     *badger.DB
	maxTTL time.Duration
	closed atomic.Bool
}

// NewWithDB creates a new backend with an existing BadgerDB instance.
func NewWithDB(db *badger.DB, maxTTL time.Duration) *Backend {
	return &Backend{db: db, maxTTL: maxTTL}
}

func encodeEntry(e *physical.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*physical.Entry, error) {
	var e physical.Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (b *Backend) Put(_ context.Context, entry *physical.Entry) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	data, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("badger encode: %w", err)
	}

	key := []byte(keyPrefix + entry.Key)
	err = b.db.Update(func(txn *badger.Txn) error {
		ent := badger.NewEntry(key, data)
		if b.maxTTL > 0 {
			ent = ent.WithTTL(b.maxTTL)
		}
		return txn.SetEntry(ent)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

func (b *Backend) Get(_ context.Context, key string) (*physical.Entry, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, physical.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return decodeEntry(data)
}

func (b *Backend) Invalidate(_ context.Context, key string) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		k := []byte(keyPrefix + key)
		if _, err := txn.Get(k); errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if err != nil {
		return fmt.Errorf("badger invalidate: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
