// Package store persists brokers and their subscription histories in an
// embedded, ordered key-value store. Two backends exist: sqlite (default)
// and bbolt. Values are JSON so the on-disk form stays readable and stable
// across releases.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// ErrStoreCorrupt is returned by Load when the index references a value
// that is missing or cannot be decoded.
var ErrStoreCorrupt = errors.New("store corrupt")

// KV is an ordered byte store. Every write is durable once it returns.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists keys starting with prefix in ascending byte order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Apply commits b in one transaction: every write lands or none does.
	Apply(ctx context.Context, b Batch) error
	Close() error
}

// Entry is one key and its value.
type Entry struct {
	Key   string
	Value []byte
}

// Batch groups writes for KV.Apply. Puts are applied before Deletes.
type Batch struct {
	Puts    []Entry
	Deletes []string
}

// Empty reports whether b holds no writes.
func (b Batch) Empty() bool { return len(b.Puts) == 0 && len(b.Deletes) == 0 }

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// OpenKV opens the named backend at path.
func OpenKV(backend, path string) (KV, error) {
	switch backend {
	case "", BackendSQLite:
		return NewSQLiteKV(path)
	case BackendBolt:
		return NewBoltKV(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
