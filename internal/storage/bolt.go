// Package storage provides the device-scoped key-value store backing the
// local ledger mode.
//
// Values live in a single bolt bucket inside one file, so no database
// process is needed. The handle is opened once by the binary and passed to
// whoever needs it; nothing in this package keeps global state.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "ledger"

// ErrClosed is returned by operations on a nil or closed store.
var ErrClosed = errors.New("storage: store is closed")

// BoltStore wraps a bolt database holding opaque values under string keys.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bolt file at path and ensures the bucket
// exists. Parent directories are created as needed.
func OpenBolt(path string) (*BoltStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ensure bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the file lock.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns a copy of the value stored under key, or nil when absent.
func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketName)).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Put stores value under key, replacing any previous value.
func (s *BoltStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), value)
	})
}

// Update runs a read-modify-write of key inside one bolt transaction, so
// concurrent updates of the same key serialize. fn receives the current
// value (nil when absent). Returning a nil slice leaves the value untouched;
// returning an error aborts without writing.
func (s *BoltStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		var current []byte
		if v := b.Get([]byte(key)); v != nil {
			current = append([]byte(nil), v...)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return b.Put([]byte(key), next)
	})
}

func (s *BoltStore) check(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("storage: key is required")
	}
	return ctx.Err()
}
