package store

import (
	"fmt"

	json "github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

func dupCacheKey(fingerprint string, minFiles int, minBytes uint64, basePath string) []byte {
	return []byte(fmt.Sprintf("%s|%d|%d|%s", fingerprint, minFiles, minBytes, basePath))
}

// SaveDupCacheEntry stores a duplicate-tree report under its composite key.
func (s *Store) SaveDupCacheEntry(entry DupCacheEntry) error {
	key := dupCacheKey(entry.Fingerprint, entry.MinFiles, entry.MinBytes, entry.BasePath)

	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode duplicate tree cache entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(dupCacheBucket).Put(key, encoded)
	})
}

// GetDupCacheEntry looks up a cached report. The caller must additionally
// confirm totalFiles matches before honoring the hit; a fingerprint-only
// match is not sufficient per the cache invariant.
func (s *Store) GetDupCacheEntry(fingerprint string, minFiles int, minBytes uint64, basePath string) (DupCacheEntry, bool, error) {
	key := dupCacheKey(fingerprint, minFiles, minBytes, basePath)

	var entry DupCacheEntry
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(dupCacheBucket).Get(key)
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &entry)
	})
	if err != nil {
		return DupCacheEntry{}, false, fmt.Errorf("get duplicate tree cache entry: %w", err)
	}
	return entry, found, nil
}
