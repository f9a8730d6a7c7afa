// Package report builds the final migration summary: per-bucket and
// aggregate counters rendered as JSON for machine consumption or as a
// human-readable string for console output.
package report

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mahrens917/aws-sub001/store"
)

// BucketSummary is one bucket's final tally.
type BucketSummary struct {
	Bucket         string `json:"bucket"`
	FileCount      uint64 `json:"fileCount"`
	TotalSize      uint64 `json:"totalSize"`
	SyncComplete   bool   `json:"syncComplete"`
	VerifyComplete bool   `json:"verifyComplete"`
	DeleteComplete bool   `json:"deleteComplete"`
}

// Report is the final migration report: aggregate totals plus a
// per-bucket breakdown.
type Report struct {
	RunID         string          `json:"runId"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	Duration      time.Duration   `json:"duration"`
	BucketCount   int             `json:"bucketCount"`
	FilesScanned  uint64          `json:"filesScanned"`
	BytesScanned  uint64          `json:"bytesScanned"`
	BucketsSynced int             `json:"bucketsSynced"`
	BucketsDone   int             `json:"bucketsDeleted"`
	Buckets       []BucketSummary `json:"buckets"`
}

// Generate builds a Report from the state store's current bucket records,
// spanning [start, end).
func Generate(st *store.Store, start, end time.Time) (Report, error) {
	buckets, err := st.GetAllBuckets()
	if err != nil {
		return Report{}, fmt.Errorf("load bucket records: %w", err)
	}

	r := Report{
		RunID:     uuid.NewString(),
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}

	for _, b := range buckets {
		r.BucketCount++
		r.FilesScanned += b.FileCount
		r.BytesScanned += b.TotalSize
		if b.SyncComplete {
			r.BucketsSynced++
		}
		if b.DeleteComplete {
			r.BucketsDone++
		}
		r.Buckets = append(r.Buckets, BucketSummary{
			Bucket:         b.Bucket,
			FileCount:      b.FileCount,
			TotalSize:      b.TotalSize,
			SyncComplete:   b.SyncComplete,
			VerifyComplete: b.VerifyComplete,
			DeleteComplete: b.DeleteComplete,
		})
	}

	return r, nil
}

// MarshalJSON renders Duration as a human string alongside the raw fields,
// matching the teacher's report serialization convention.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(r),
		Duration: r.Duration.String(),
	})
}

// String renders a human-readable console summary.
func (r Report) String() string {
	return fmt.Sprintf(
		"Migration completed in %s\n"+
			"Buckets: %d (%d synced, %d deleted)\n"+
			"Files scanned: %d\n"+
			"Bytes scanned: %d",
		r.Duration, r.BucketCount, r.BucketsSynced, r.BucketsDone,
		r.FilesScanned, r.BytesScanned,
	)
}
