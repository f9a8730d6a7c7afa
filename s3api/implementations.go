package s3api

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ClientImpl implements Client using the AWS SDK v2 S3 client.
type ClientImpl struct {
	client *s3.Client
}

// NewClient creates a new ClientImpl instance.
func NewClient(client *s3.Client) *ClientImpl {
	return &ClientImpl{client: client}
}

func (c *ClientImpl) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return c.client.ListBuckets(ctx, params, optFns...)
}

func (c *ClientImpl) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return c.client.ListObjectsV2(ctx, params, optFns...)
}

func (c *ClientImpl) ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	return c.client.ListObjectVersions(ctx, params, optFns...)
}

func (c *ClientImpl) ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
	return c.client.ListMultipartUploads(ctx, params, optFns...)
}

func (c *ClientImpl) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return c.client.GetObject(ctx, params, optFns...)
}

func (c *ClientImpl) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return c.client.HeadObject(ctx, params, optFns...)
}

func (c *ClientImpl) RestoreObject(ctx context.Context, params *s3.RestoreObjectInput, optFns ...func(*s3.Options)) (*s3.RestoreObjectOutput, error) {
	return c.client.RestoreObject(ctx, params, optFns...)
}

func (c *ClientImpl) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	return c.client.DeleteObjects(ctx, params, optFns...)
}

func (c *ClientImpl) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return c.client.AbortMultipartUpload(ctx, params, optFns...)
}

func (c *ClientImpl) DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	return c.client.DeleteBucket(ctx, params, optFns...)
}

// IsRestoreAlreadyInProgress classifies an error returned from RestoreObject
// the way writer.isThrottlingError classifies DynamoDB throttling errors:
// unwrap to the typed API error and compare the error code.
func IsRestoreAlreadyInProgress(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "RestoreAlreadyInProgress"
	}
	return false
}
