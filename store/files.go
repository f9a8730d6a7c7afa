package store

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

// AddFile inserts a file record if (bucket, key) is not already present.
// Re-inserting the same identity is a silent no-op, matching the idempotent
// insert contract.
func (s *Store) AddFile(rec FileRecord) error {
	key := fileKey(rec.Bucket, rec.Key)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(filesBucket)
		if existing := b.Get(key); existing != nil {
			return nil
		}

		now := rec.CreatedAt
		if now.IsZero() {
			now = time.Now().UTC()
		}
		rec.State = FileDiscovered
		rec.CreatedAt = now
		rec.UpdatedAt = now

		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("%w: encode file record: %v", ErrStateCorrupt, err)
		}
		return b.Put(key, encoded)
	})
}

// GetFile returns the file record for (bucket, key), or false if absent.
func (s *Store) GetFile(bucket, key string) (FileRecord, bool, error) {
	var rec FileRecord
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(filesBucket).Get(fileKey(bucket, key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return FileRecord{}, false, fmt.Errorf("get file %s/%s: %w", bucket, key, err)
	}
	return rec, found, nil
}

// MarkGlacierRestoreRequested sets glacier_restore_requested_at for
// (bucket, key) if it is not already set.
func (s *Store) MarkGlacierRestoreRequested(bucket, key string) error {
	return s.updateFile(bucket, key, func(rec *FileRecord) {
		if rec.GlacierRestoreRequestedAt == nil {
			now := time.Now().UTC()
			rec.GlacierRestoreRequestedAt = &now
			rec.State = FileRestoring
		}
	})
}

// MarkGlacierRestored sets glacier_restored_at for (bucket, key) if it is
// not already set.
func (s *Store) MarkGlacierRestored(bucket, key string) error {
	return s.updateFile(bucket, key, func(rec *FileRecord) {
		if rec.GlacierRestoredAt == nil {
			now := time.Now().UTC()
			rec.GlacierRestoredAt = &now
			rec.State = FileRestored
		}
	})
}

// MarkDownloaded records the local path for a successfully downloaded file.
func (s *Store) MarkDownloaded(bucket, key, localPath string) error {
	return s.updateFile(bucket, key, func(rec *FileRecord) {
		rec.LocalPath = localPath
		rec.State = FileDownloaded
	})
}

// MarkVerified advances a file's state to verified.
func (s *Store) MarkVerified(bucket, key string) error {
	return s.updateFile(bucket, key, func(rec *FileRecord) {
		rec.State = FileVerified
	})
}

// MarkDeleted advances a file's state to deleted.
func (s *Store) MarkDeleted(bucket, key string) error {
	return s.updateFile(bucket, key, func(rec *FileRecord) {
		rec.State = FileDeleted
	})
}

func (s *Store) updateFile(bucket, key string, mutate func(*FileRecord)) error {
	k := fileKey(bucket, key)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(filesBucket)
		raw := b.Get(k)
		if raw == nil {
			return fmt.Errorf("file record %s/%s not found", bucket, key)
		}

		var rec FileRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("%w: decode file record %s/%s: %v", ErrStateCorrupt, bucket, key, err)
		}

		mutate(&rec)
		rec.UpdatedAt = time.Now().UTC()

		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode file record %s/%s: %w", bucket, key, err)
		}
		return b.Put(k, encoded)
	})
}

// archivedStorageClasses holds the storage classes that require a restore
// request before an object's body can be retrieved.
var archivedStorageClasses = map[string]bool{
	"GLACIER":      true,
	"DEEP_ARCHIVE": true,
}

// GetGlacierFilesNeedingRestore returns every file whose storage class is
// archived and which has not yet had a restore requested.
func (s *Store) GetGlacierFilesNeedingRestore() ([]FileRecord, error) {
	return s.filterFiles(func(rec FileRecord) bool {
		return archivedStorageClasses[rec.StorageClass] && rec.GlacierRestoreRequestedAt == nil
	})
}

// GetFilesRestoring returns every file with a restore requested but not yet
// completed.
func (s *Store) GetFilesRestoring() ([]FileRecord, error) {
	return s.filterFiles(func(rec FileRecord) bool {
		return rec.GlacierRestoreRequestedAt != nil && rec.GlacierRestoredAt == nil
	})
}

// GetFilesForBucket returns every file record belonging to bucket, in key
// order (bbolt iterates keys in byte-sorted order already).
func (s *Store) GetFilesForBucket(bucket string) ([]FileRecord, error) {
	prefix := []byte(bucket + "\x00")
	return s.filterFiles(func(rec FileRecord) bool {
		return rec.Bucket == bucket
	}, prefix)
}

// GetAllFiles returns every file record across every bucket, ordered by the
// composite bucket/key key (bucket, then key, since the key is
// "<bucket>\x00<key>" and bbolt iterates byte-sorted).
func (s *Store) GetAllFiles() ([]FileRecord, error) {
	return s.filterFiles(func(FileRecord) bool { return true })
}

func (s *Store) filterFiles(keep func(FileRecord) bool, prefix ...[]byte) ([]FileRecord, error) {
	var out []FileRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(filesBucket).Cursor()

		var k, v []byte
		if len(prefix) == 1 {
			k, v = c.Seek(prefix[0])
		} else {
			k, v = c.First()
		}

		for ; k != nil; k, v = c.Next() {
			if len(prefix) == 1 && !hasPrefix(k, prefix[0]) {
				break
			}
			var rec FileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: decode file record: %v", ErrStateCorrupt, err)
			}
			if keep(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}
