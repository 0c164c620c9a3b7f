package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/zjrosen/mqttdesk/internal/log"
)

var boltBucket = []byte("mqttdesk")

// BoltKV is a KV backed by a single bbolt bucket.
type BoltKV struct {
	db *bolt.DB
}

var _ KV = (*BoltKV)(nil)

// NewBoltKV opens (creating if needed) the bolt file at path.
func NewBoltKV(path string) (*BoltKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	log.Info(log.CatStore, "opened bolt store", "path", path)
	return &BoltKV{db: db}, nil
}

// Get returns a copy of the value stored under key.
func (b *BoltKV) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Put upserts key; bbolt fsyncs on commit.
func (b *BoltKV) Put(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
}

// Delete removes keys in one transaction.
func (b *BoltKV) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(boltBucket)
		for _, key := range keys {
			if err := bkt.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// Apply writes batch in one bbolt transaction.
func (b *BoltKV) Apply(_ context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(boltBucket)
		for _, e := range batch.Puts {
			if err := bkt.Put([]byte(e.Key), e.Value); err != nil {
				return fmt.Errorf("put %s: %w", e.Key, err)
			}
		}
		for _, key := range batch.Deletes {
			if err := bkt.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// Keys lists keys with the given prefix in ascending byte order.
func (b *BoltKV) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Close closes the bolt file.
func (b *BoltKV) Close() error {
	return b.db.Close()
}
