// Package scanner implements the bucket enumeration that populates the
// state store's object manifest.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mahrens917/aws-sub001/config"
	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/s3api"
	"github.com/mahrens917/aws-sub001/store"
)

// ErrMalformedListing is raised when a listing page is neither empty nor
// carries a consistent key count, defensive against truncated API
// responses.
var ErrMalformedListing = errors.New("malformed object listing page")

// ErrManifest is raised when a listed object lacks a mandatory field, most
// commonly the entity tag.
var ErrManifest = errors.New("object listing is missing a mandatory field")

// progressInterval controls how often scan progress is printed, in objects.
const progressInterval = 10000

// Scanner enumerates every non-excluded bucket and records a file entry per
// object in the state store.
type Scanner struct {
	client s3api.Client
	store  *store.Store
	cfg    *config.Config
}

// New constructs a Scanner.
func New(client s3api.Client, st *store.Store, cfg *config.Config) *Scanner {
	return &Scanner{client: client, store: st, cfg: cfg}
}

// ScanAll lists every bucket and scans each one not excluded by
// configuration and not already scan_complete.
func (s *Scanner) ScanAll(ctx context.Context, token *progress.Token) error {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}

	for _, b := range out.Buckets {
		if token.Cancelled() {
			return nil
		}
		name := aws.ToString(b.Name)
		if s.cfg.IsExcluded(name) {
			continue
		}

		rec, found, err := s.store.GetBucketInfo(name)
		if err != nil {
			return err
		}
		if found && rec.ScanComplete {
			continue
		}

		if err := s.ScanBucket(ctx, name, token); err != nil {
			return err
		}
	}
	return nil
}

// ScanBucket pages through one bucket's listing, recording a file entry for
// every object whose key does not end in "/".
func (s *Scanner) ScanBucket(ctx context.Context, bucket string, token *progress.Token) error {
	printer := progress.NewPrinter(fmt.Sprintf("scanning %s", bucket))

	var fileCount uint64
	var totalSize uint64
	classCounts := make(map[string]int)

	var continuationToken *string
	for {
		if token.Cancelled() {
			return nil
		}

		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return fmt.Errorf("list objects in %s: %w", bucket, err)
		}

		keyCount := aws.ToInt32(page.KeyCount)
		if len(page.Contents) == 0 && keyCount != 0 {
			return fmt.Errorf("%w: bucket %s reported key count %d with zero contents", ErrMalformedListing, bucket, keyCount)
		}

		for _, obj := range page.Contents {
			if token.Cancelled() {
				return nil
			}

			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if obj.ETag == nil {
				return fmt.Errorf("%w: %s/%s has no entity tag", ErrManifest, bucket, key)
			}

			storageClass := string(obj.StorageClass)
			if storageClass == "" {
				storageClass = "STANDARD"
			}

			rec := store.FileRecord{
				Bucket:       bucket,
				Key:          key,
				Size:         uint64(aws.ToInt64(obj.Size)),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				StorageClass: storageClass,
				LastModified: formatLastModified(obj.LastModified),
			}
			if err := s.store.AddFile(rec); err != nil {
				return fmt.Errorf("record file %s/%s: %w", bucket, key, err)
			}

			fileCount++
			totalSize += rec.Size
			classCounts[storageClass]++

			if fileCount%progressInterval == 0 {
				printer.Printf("scanned %d objects in %s", fileCount, bucket)
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		continuationToken = page.NextContinuationToken
	}

	printer.Finish(fmt.Sprintf("scanned %d objects in %s", fileCount, bucket))

	return s.store.SaveBucketStatus(store.BucketRecord{
		Bucket:             bucket,
		FileCount:          fileCount,
		TotalSize:          totalSize,
		StorageClassCounts: classCounts,
		ScanComplete:       true,
	})
}

func formatLastModified(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
