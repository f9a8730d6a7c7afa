package store

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

// SaveBucketStatus upserts a bucket record. On update, created_at is
// preserved and every other stored field is replaced by rec's value,
// zero values included; callers should read-modify-write via GetBucketInfo
// when only mutating a subset.
func (s *Store) SaveBucketStatus(rec BucketRecord) error {
	key := []byte(rec.Bucket)
	now := time.Now().UTC()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStatus)

		if existing := b.Get(key); existing != nil {
			var prior BucketRecord
			if err := json.Unmarshal(existing, &prior); err != nil {
				return fmt.Errorf("%w: decode bucket record %s: %v", ErrStateCorrupt, rec.Bucket, err)
			}
			rec.CreatedAt = prior.CreatedAt
		} else {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now

		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode bucket record %s: %w", rec.Bucket, err)
		}
		return b.Put(key, encoded)
	})
}

// MarkBucketSyncComplete sets sync_complete = true for bucket.
func (s *Store) MarkBucketSyncComplete(bucket string) error {
	return s.updateBucket(bucket, func(rec *BucketRecord) {
		rec.SyncComplete = true
	})
}

// MarkBucketVerifyComplete records the five verification metrics and sets
// verify_complete = true.
func (s *Store) MarkBucketVerifyComplete(result VerifyResult) error {
	return s.updateBucket(result.Bucket, func(rec *BucketRecord) {
		rec.VerifyComplete = true
		rec.VerifiedFileCount = &result.VerifiedFileCount
		rec.SizeVerifiedCount = &result.SizeVerifiedCount
		rec.ChecksumVerifiedCount = &result.ChecksumVerifiedCount
		rec.TotalBytesVerified = &result.TotalBytesVerified
		rec.LocalFileCount = &result.LocalFileCount
	})
}

// MarkBucketDeleteComplete sets delete_complete = true for bucket.
func (s *Store) MarkBucketDeleteComplete(bucket string) error {
	return s.updateBucket(bucket, func(rec *BucketRecord) {
		rec.DeleteComplete = true
	})
}

func (s *Store) updateBucket(bucket string, mutate func(*BucketRecord)) error {
	key := []byte(bucket)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStatus)
		raw := b.Get(key)
		if raw == nil {
			return fmt.Errorf("bucket record %s not found", bucket)
		}

		var rec BucketRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("%w: decode bucket record %s: %v", ErrStateCorrupt, bucket, err)
		}

		mutate(&rec)
		rec.UpdatedAt = time.Now().UTC()

		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode bucket record %s: %w", bucket, err)
		}
		return b.Put(key, encoded)
	})
}

// GetBucketInfo returns the bucket record for bucket, or false if absent.
func (s *Store) GetBucketInfo(bucket string) (BucketRecord, bool, error) {
	var rec BucketRecord
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketStatus).Get([]byte(bucket))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return BucketRecord{}, false, fmt.Errorf("get bucket info %s: %w", bucket, err)
	}
	return rec, found, nil
}

// GetAllBuckets returns every bucket record, ordered by bucket name.
func (s *Store) GetAllBuckets() ([]BucketRecord, error) {
	var out []BucketRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStatus).ForEach(func(_, v []byte) error {
			var rec BucketRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: decode bucket record: %v", ErrStateCorrupt, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BucketFlag identifies one of the four monotonic progress flags.
type BucketFlag int

const (
	FlagScanComplete BucketFlag = iota
	FlagSyncComplete
	FlagVerifyComplete
	FlagDeleteComplete
)

// GetCompletedBucketsForPhase returns every bucket whose flag is set.
func (s *Store) GetCompletedBucketsForPhase(flag BucketFlag) ([]BucketRecord, error) {
	all, err := s.GetAllBuckets()
	if err != nil {
		return nil, err
	}

	var out []BucketRecord
	for _, rec := range all {
		var done bool
		switch flag {
		case FlagScanComplete:
			done = rec.ScanComplete
		case FlagSyncComplete:
			done = rec.SyncComplete
		case FlagVerifyComplete:
			done = rec.VerifyComplete
		case FlagDeleteComplete:
			done = rec.DeleteComplete
		}
		if done {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetScanSummary aggregates bucket count, file count, and total size across
// every scanned bucket.
func (s *Store) GetScanSummary() (ScanSummary, error) {
	all, err := s.GetAllBuckets()
	if err != nil {
		return ScanSummary{}, err
	}

	var sum ScanSummary
	for _, rec := range all {
		if !rec.ScanComplete {
			continue
		}
		sum.BucketCount++
		sum.FileCount += rec.FileCount
		sum.TotalSize += rec.TotalSize
	}
	return sum, nil
}

// RequireMandatoryFields validates that a bucket record carries every field
// the orchestrator requires before processing it. A nil verification metric
// pointer means the field is absent.
func RequireMandatoryFields(rec BucketRecord) error {
	if rec.VerifiedFileCount == nil || rec.SizeVerifiedCount == nil ||
		rec.ChecksumVerifiedCount == nil || rec.TotalBytesVerified == nil ||
		rec.LocalFileCount == nil {
		return fmt.Errorf("bucket %s is missing mandatory verification fields", rec.Bucket)
	}
	return nil
}
