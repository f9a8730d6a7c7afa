// Package downloader implements the streaming, key-preserving download of
// one bucket's objects to local disk, using a bounded worker pool.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/mahrens917/aws-sub001/config"
	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/s3api"
	"github.com/mahrens917/aws-sub001/store"
)

// ErrSync wraps any listing or transport failure encountered while
// downloading a bucket.
var ErrSync = errors.New("bucket sync failed")

// Downloader streams every object of one bucket to
// <base>/<bucket>/<key>, preserving the remote key as a relative path.
type Downloader struct {
	client s3api.Client
	store  *store.Store
	cfg    *config.Config
}

// New constructs a Downloader.
func New(client s3api.Client, st *store.Store, cfg *config.Config) *Downloader {
	return &Downloader{client: client, store: st, cfg: cfg}
}

// SyncBucket re-lists bucket (the state store manifest is authoritative for
// verification, but download follows a fresh listing to pick up bodies
// thawed since scan time) and streams every object to disk concurrently,
// bounded by cfg.MaxWorkers.
func (d *Downloader) SyncBucket(ctx context.Context, bucket string, token *progress.Token) error {
	destRoot := filepath.Join(d.cfg.LocalBasePath, bucket)
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return fmt.Errorf("%w: create bucket directory %s: %v", ErrSync, destRoot, err)
	}

	keys, err := d.listKeys(ctx, bucket, token)
	if err != nil {
		return err
	}

	var filesDone, bytesDone int64
	start := time.Now()
	printer := progress.NewPrinter(fmt.Sprintf("syncing %s", bucket))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxWorkers)

	for _, key := range keys {
		key := key
		g.Go(func() error {
			if token.Cancelled() {
				return nil
			}
			n, err := d.downloadObject(gctx, bucket, key, token)
			if err != nil {
				return fmt.Errorf("%w: %s/%s: %v", ErrSync, bucket, key, err)
			}
			atomic.AddInt64(&filesDone, 1)
			atomic.AddInt64(&bytesDone, n)
			printer.Printf("%s: %d files, %s, elapsed %s", bucket,
				atomic.LoadInt64(&filesDone),
				progress.FormatBytes(uint64(atomic.LoadInt64(&bytesDone))),
				progress.FormatDuration(time.Since(start)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	printer.Finish(fmt.Sprintf("%s: %d files, %s in %s", bucket,
		atomic.LoadInt64(&filesDone),
		progress.FormatBytes(uint64(atomic.LoadInt64(&bytesDone))),
		progress.FormatDuration(time.Since(start))))

	if token.Cancelled() {
		return nil
	}
	return d.store.MarkBucketSyncComplete(bucket)
}

func (d *Downloader) listKeys(ctx context.Context, bucket string, token *progress.Token) ([]string, error) {
	var keys []string
	var continuationToken *string

	for {
		if token.Cancelled() {
			return keys, nil
		}

		page, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: list objects in %s: %v", ErrSync, bucket, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		continuationToken = page.NextContinuationToken
	}
	return keys, nil
}

func (d *Downloader) downloadObject(ctx context.Context, bucket, key string, token *progress.Token) (int64, error) {
	dest := filepath.Join(d.cfg.LocalBasePath, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}

	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	chunk := make([]byte, d.cfg.DownloadChunkBytes)
	var total int64
	for {
		if token.Cancelled() {
			return total, nil
		}

		n, readErr := out.Body.Read(chunk)
		if n > 0 {
			if _, writeErr := f.Write(chunk[:n]); writeErr != nil {
				return total, writeErr
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return total, readErr
		}
	}

	if err := d.store.MarkDownloaded(bucket, key, dest); err != nil {
		return total, err
	}
	return total, nil
}
