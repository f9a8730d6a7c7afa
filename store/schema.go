// Package store implements the durable state store for a migration run. It
// wraps a bbolt file holding three entity kinds: file records, bucket
// records, and a single phase-metadata row, plus a fourth bucket caching
// duplicate-tree reports.
package store

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

var (
	filesBucket     = []byte("files")
	bucketStatus    = []byte("bucket_status")
	metadataBucket  = []byte("migration_metadata")
	dupCacheBucket  = []byte("duplicate_tree_cache")
	currentPhaseKey = []byte("current_phase")
)

// ErrStateCorrupt is returned when the store's metadata is missing or
// internally inconsistent in a way that must never be silently guessed at.
var ErrStateCorrupt = errors.New("migration state is corrupt or missing, reset the state DB to continue")

// ErrAlreadyLocked is returned by Open when another process already holds
// the state store's file lock.
var ErrAlreadyLocked = errors.New("state store is locked by another process")

// Store is the durable, embedded key-value state store backing a migration
// run. A Store is owned exclusively by one process for the duration of a
// run; bbolt's file lock enforces this.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures all
// required top-level buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyLocked, path)
		}
		return nil, fmt.Errorf("open state store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{filesBucket, bucketStatus, metadataBucket, dupCacheBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.upgradeBucketStatusSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Recreate removes path (if present) and opens a fresh, empty store there.
// Local files are never touched by this operation.
func Recreate(path string) (*Store, error) {
	if err := removeIfExists(path); err != nil {
		return nil, fmt.Errorf("recreate state store: %w", err)
	}
	return Open(path)
}

// upgradeBucketStatusSchema plays the role of the Python original's
// ALTER-TABLE-tolerant-of-duplicate-column migration: it decodes every
// stored BucketRecord and re-encodes it, so newly added nullable
// verification fields read back as explicit nil rather than an ambiguous
// zero value.
func (s *Store) upgradeBucketStatusSchema() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStatus)
		return b.ForEach(func(k, v []byte) error {
			var rec BucketRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: decode bucket record %s: %v", ErrStateCorrupt, k, err)
			}
			encoded, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode bucket record %s: %w", k, err)
			}
			return b.Put(k, encoded)
		})
	})
}

func fileKey(bucket, key string) []byte {
	return []byte(bucket + "\x00" + key)
}
