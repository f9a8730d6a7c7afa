package s3api

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestFakeListObjectsV2Pagination(t *testing.T) {
	f := NewFake()
	f.SetPageSize(2)
	f.SeedObject("b1", "a.txt", []byte("hi"), "")
	f.SeedObject("b1", "b.txt", []byte("hi"), "")
	f.SeedObject("b1", "c.txt", []byte("hi"), "")

	ctx := context.Background()
	out1, err := f.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String("b1")})
	if err != nil {
		t.Fatalf("ListObjectsV2 failed: %v", err)
	}
	if len(out1.Contents) != 2 {
		t.Fatalf("expected 2 objects on first page, got %d", len(out1.Contents))
	}
	if out1.NextContinuationToken == nil {
		t.Fatal("expected a continuation token")
	}

	out2, err := f.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:            aws.String("b1"),
		ContinuationToken: out1.NextContinuationToken,
	})
	if err != nil {
		t.Fatalf("ListObjectsV2 second page failed: %v", err)
	}
	if len(out2.Contents) != 1 {
		t.Fatalf("expected 1 object on second page, got %d", len(out2.Contents))
	}
}

func TestFakeDeleteBucketRequiresEmpty(t *testing.T) {
	f := NewFake()
	f.SeedObject("b1", "a.txt", []byte("hi"), "")

	ctx := context.Background()
	if _, err := f.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String("b1")}); err == nil {
		t.Fatal("expected DeleteBucket to fail on non-empty bucket")
	}

	listOut, err := f.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{Bucket: aws.String("b1")})
	if err != nil {
		t.Fatalf("ListObjectVersions failed: %v", err)
	}
	if len(listOut.Versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(listOut.Versions))
	}

	delOut, err := f.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String("b1"),
		Delete: &types.Delete{Objects: []types.ObjectIdentifier{
			{Key: listOut.Versions[0].Key, VersionId: listOut.Versions[0].VersionId},
		}},
	})
	if err != nil {
		t.Fatalf("DeleteObjects failed: %v", err)
	}
	if len(delOut.Deleted) != 1 {
		t.Fatalf("expected 1 deleted object, got %d", len(delOut.Deleted))
	}

	if _, err := f.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String("b1")}); err != nil {
		t.Fatalf("expected DeleteBucket to succeed once empty, got: %v", err)
	}
}

func TestFakeRestoreLifecycle(t *testing.T) {
	f := NewFake()
	f.SeedObject("b1", "archived.dat", []byte("data"), types.StorageClassGlacier)

	ctx := context.Background()
	if _, err := f.RestoreObject(ctx, &s3.RestoreObjectInput{Bucket: aws.String("b1"), Key: aws.String("archived.dat")}); err != nil {
		t.Fatalf("RestoreObject failed: %v", err)
	}

	head, err := f.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String("b1"), Key: aws.String("archived.dat")})
	if err != nil {
		t.Fatalf("HeadObject failed: %v", err)
	}
	if head.Restore == nil {
		t.Fatal("expected Restore header to be set")
	}

	f.SetArchiveState("b1", "archived.dat", true, false)
	head, err = f.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String("b1"), Key: aws.String("archived.dat")})
	if err != nil {
		t.Fatalf("HeadObject failed: %v", err)
	}
	if head.Restore == nil || *head.Restore != `ongoing-request="false"` {
		t.Errorf("expected ongoing-request=false, got %v", head.Restore)
	}
}
