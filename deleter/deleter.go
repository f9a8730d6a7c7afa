// Package deleter implements the versioned bulk delete that empties and
// removes a bucket after its contents have been synced and verified.
package deleter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/s3api"
	"github.com/mahrens917/aws-sub001/store"
)

// ErrBucketNotEmpty is raised when the post-sweep recheck still finds
// contents; DeleteBucket is never attempted in that case.
var ErrBucketNotEmpty = errors.New("bucket still has contents after delete sweep")

// progressEvery controls how often delete progress is printed, in objects,
// in addition to the time-based throttle.
const progressEvery = 1000

// Deleter enumerates every object version and delete marker of a bucket,
// aborts in-progress multipart uploads, verifies emptiness, then removes
// the bucket itself.
type Deleter struct {
	client s3api.Client
	store  *store.Store
}

// New constructs a Deleter.
func New(client s3api.Client, st *store.Store) *Deleter {
	return &Deleter{client: client, store: st}
}

type versionRef struct {
	key       string
	versionID string
}

// DeleteBucket performs the full versioned-delete sweep for bucket. The
// caller is responsible for having obtained interactive confirmation
// before calling this.
func (d *Deleter) DeleteBucket(ctx context.Context, bucket string, token *progress.Token) error {
	if err := d.deleteAllVersions(ctx, bucket, token); err != nil {
		return err
	}
	if token.Cancelled() {
		return nil
	}

	if err := d.abortMultipartUploads(ctx, bucket, token); err != nil {
		return err
	}
	if token.Cancelled() {
		return nil
	}

	empty, err := d.bucketIsEmpty(ctx, bucket)
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("%w: %s", ErrBucketNotEmpty, bucket)
	}

	if _, err := d.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("delete bucket %s: %w", bucket, err)
	}

	return d.store.MarkBucketDeleteComplete(bucket)
}

func (d *Deleter) deleteAllVersions(ctx context.Context, bucket string, token *progress.Token) error {
	printer := progress.NewPrinterWithInterval(fmt.Sprintf("deleting %s", bucket), 2*time.Second)
	var done int

	var keyMarker, versionIDMarker *string
	var pending []versionRef

	for {
		if token.Cancelled() {
			return nil
		}

		page, err := d.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(bucket),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionIDMarker,
		})
		if err != nil {
			return fmt.Errorf("list object versions in %s: %w", bucket, err)
		}

		for _, v := range page.Versions {
			pending = append(pending, versionRef{key: aws.ToString(v.Key), versionID: aws.ToString(v.VersionId)})
		}
		for _, m := range page.DeleteMarkers {
			pending = append(pending, versionRef{key: aws.ToString(m.Key), versionID: aws.ToString(m.VersionId)})
		}

		if len(pending) > 0 {
			before := done
			remaining, err := d.deletePage(ctx, bucket, pending)
			if err != nil {
				return err
			}
			done += len(pending) - len(remaining)
			// Entries that errored are kept and retried on the next
			// iteration rather than skipped, matching the source's
			// behavior of only clearing a page once it has zero errors.
			pending = remaining

			if before/progressEvery != done/progressEvery {
				printer.Printf("deleted %d objects from %s", done, bucket)
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		keyMarker = page.NextKeyMarker
		versionIDMarker = page.NextVersionIdMarker
	}

	// Retry any entries that failed on their originating page until they
	// succeed or the cancellation token is set. A retry round that deletes
	// none of the remaining entries ends the sweep with an error.
	for len(pending) > 0 && !token.Cancelled() {
		remaining, err := d.deletePage(ctx, bucket, pending)
		if err != nil {
			return err
		}
		if len(remaining) == len(pending) {
			return fmt.Errorf("delete sweep for %s made no progress on %d remaining entries", bucket, len(remaining))
		}
		pending = remaining
	}

	printer.Finish(fmt.Sprintf("deleted %d objects from %s", done, bucket))
	return nil
}

// deletePage submits one batch delete request and returns the entries that
// failed, to be retried by the caller.
func (d *Deleter) deletePage(ctx context.Context, bucket string, refs []versionRef) ([]versionRef, error) {
	objs := make([]types.ObjectIdentifier, 0, len(refs))
	for _, r := range refs {
		objs = append(objs, types.ObjectIdentifier{Key: aws.String(r.key), VersionId: aws.String(r.versionID)})
	}

	out, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: objs},
	})
	if err != nil {
		return refs, fmt.Errorf("batch delete in %s: %w", bucket, err)
	}

	if len(out.Errors) == 0 {
		return nil, nil
	}

	failed := make(map[string]bool, len(out.Errors))
	for _, e := range out.Errors {
		k := aws.ToString(e.Key) + "\x00" + aws.ToString(e.VersionId)
		failed[k] = true
		fmt.Printf("delete error: key=%s version=%s code=%s message=%s\n",
			aws.ToString(e.Key), aws.ToString(e.VersionId), aws.ToString(e.Code), aws.ToString(e.Message))
	}

	var remaining []versionRef
	for _, r := range refs {
		if failed[r.key+"\x00"+r.versionID] {
			remaining = append(remaining, r)
		}
	}
	return remaining, nil
}

func (d *Deleter) abortMultipartUploads(ctx context.Context, bucket string, token *progress.Token) error {
	var keyMarker, uploadIDMarker *string

	for {
		if token.Cancelled() {
			return nil
		}

		page, err := d.client.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
			Bucket:         aws.String(bucket),
			KeyMarker:      keyMarker,
			UploadIdMarker: uploadIDMarker,
		})
		if err != nil {
			return fmt.Errorf("list multipart uploads in %s: %w", bucket, err)
		}

		for _, u := range page.Uploads {
			_, err := d.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(bucket),
				Key:      u.Key,
				UploadId: u.UploadId,
			})
			if err != nil {
				return fmt.Errorf("abort multipart upload %s/%s: %w", bucket, aws.ToString(u.Key), err)
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		keyMarker = page.NextKeyMarker
		uploadIDMarker = page.NextUploadIdMarker
	}
	return nil
}

// bucketIsEmpty performs the final MaxItems=1 recheck before DeleteBucket.
func (d *Deleter) bucketIsEmpty(ctx context.Context, bucket string) (bool, error) {
	maxItems := int32(1)
	out, err := d.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket:  aws.String(bucket),
		MaxKeys: &maxItems,
	})
	if err != nil {
		return false, fmt.Errorf("recheck bucket contents of %s: %w", bucket, err)
	}
	return len(out.Versions) == 0 && len(out.DeleteMarkers) == 0, nil
}
