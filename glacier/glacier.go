// Package glacier implements the restore-request and restore-wait loops
// that thaw archived objects before the downloader can fetch their bodies.
package glacier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mahrens917/aws-sub001/config"
	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/s3api"
	"github.com/mahrens917/aws-sub001/store"
)

// WaitInterval is how long the wait loop sleeps between polls. It is
// interruptible via the cancellation token.
const WaitInterval = 5 * time.Minute

// Coordinator requests Glacier restores and polls until every requested
// object is thawed.
type Coordinator struct {
	client s3api.Client
	store  *store.Store
	cfg    *config.Config
}

// New constructs a Coordinator.
func New(client s3api.Client, st *store.Store, cfg *config.Config) *Coordinator {
	return &Coordinator{client: client, store: st, cfg: cfg}
}

// RequestRestores issues a restore request for every file the store
// reports as needing one, tolerating RestoreAlreadyInProgress as success.
func (c *Coordinator) RequestRestores(ctx context.Context, token *progress.Token) error {
	files, err := c.store.GetGlacierFilesNeedingRestore()
	if err != nil {
		return err
	}

	for _, f := range files {
		if token.Cancelled() {
			return nil
		}

		tier := c.cfg.RestoreTier(f.StorageClass)
		_, err := c.client.RestoreObject(ctx, &s3.RestoreObjectInput{
			Bucket: aws.String(f.Bucket),
			Key:    aws.String(f.Key),
			RestoreRequest: &types.RestoreRequest{
				Days: aws.Int32(int32(c.cfg.GlacierRestoreDays)),
				GlacierJobParameters: &types.GlacierJobParameters{
					Tier: types.Tier(tier),
				},
			},
		})
		if err != nil && !s3api.IsRestoreAlreadyInProgress(err) {
			return fmt.Errorf("request restore for %s/%s: %w", f.Bucket, f.Key, err)
		}

		if err := c.store.MarkGlacierRestoreRequested(f.Bucket, f.Key); err != nil {
			return err
		}
	}
	return nil
}

// WaitForRestores polls every restoring file until the store reports none
// remaining. Each iteration sleeps WaitInterval, interruptibly.
func (c *Coordinator) WaitForRestores(ctx context.Context, token *progress.Token) error {
	for {
		if token.Cancelled() {
			return nil
		}

		restoring, err := c.store.GetFilesRestoring()
		if err != nil {
			return err
		}
		if len(restoring) == 0 {
			return nil
		}

		for _, f := range restoring {
			if token.Cancelled() {
				return nil
			}

			restored, err := c.checkRestored(ctx, f.Bucket, f.Key)
			if err != nil {
				return fmt.Errorf("check restore status for %s/%s: %w", f.Bucket, f.Key, err)
			}
			if restored {
				if err := c.store.MarkGlacierRestored(f.Bucket, f.Key); err != nil {
					return err
				}
			}
		}

		if token.Sleep(ctx, WaitInterval) {
			return nil
		}
	}
}

func (c *Coordinator) checkRestored(ctx context.Context, bucket, key string) (bool, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, err
	}
	if out.Restore == nil {
		return false, nil
	}
	return strings.Contains(*out.Restore, `ongoing-request="false"`), nil
}
