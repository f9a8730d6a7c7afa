package s3api

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeVersion is one version (or delete marker) of one key in a fake bucket.
type fakeVersion struct {
	versionID      string
	body           []byte
	etag           string
	storageClass   types.StorageClass
	lastModified   time.Time
	isDeleteMarker bool

	restoreRequested bool
	restoreOngoing   bool
}

// Fake is an in-memory stand-in for the S3 capability interface. It
// replays a fixed, explicitly seeded object set, the same role
// integration/mock/s3client.go plays in the teacher and the simulated-smoke
// mode plays in the original Python tool.
type Fake struct {
	mu sync.Mutex

	// bucketOrder preserves insertion order so ListBuckets is deterministic.
	bucketOrder []string
	// versions maps bucket -> key -> ordered versions, oldest first; the
	// last entry is the current version, and a key whose last entry is a
	// delete marker has no current object.
	versions map[string]map[string][]*fakeVersion
	keyOrder map[string][]string // bucket -> keys in first-seen order

	multipart map[string]map[string]string // bucket -> uploadID -> key
	deleted   map[string]bool              // bucket -> true once DeleteBucket succeeds
	pageSize  int
}

// NewFake returns an empty Fake client with a default page size of 1000,
// matching S3's real default.
func NewFake() *Fake {
	return &Fake{
		versions:  make(map[string]map[string][]*fakeVersion),
		keyOrder:  make(map[string][]string),
		multipart: make(map[string]map[string]string),
		deleted:   make(map[string]bool),
		pageSize:  1000,
	}
}

// SetPageSize overrides the default page size, useful for exercising
// pagination loops in tests without seeding thousands of objects.
func (f *Fake) SetPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

func (f *Fake) ensureBucket(bucket string) {
	if _, ok := f.versions[bucket]; !ok {
		f.versions[bucket] = make(map[string][]*fakeVersion)
		f.keyOrder[bucket] = nil
		f.bucketOrder = append(f.bucketOrder, bucket)
	}
}

// AddBucket registers an empty bucket so it shows up in ListBuckets.
func (f *Fake) AddBucket(bucket string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBucket(bucket)
}

// SeedObject adds a single-version object with the given body. storageClass
// may be empty for STANDARD. The etag is computed the way S3 would for a
// single-part upload (MD5 of the body, quoted); callers needing a
// multipart-shaped etag should use SeedMultipartObject.
func (f *Fake) SeedObject(bucket, key string, body []byte, storageClass types.StorageClass) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBucket(bucket)

	v := &fakeVersion{
		versionID:    "v1",
		body:         body,
		etag:         fmt.Sprintf("\"%x\"", md5Sum(body)),
		storageClass: storageClass,
		lastModified: time.Now().UTC(),
	}
	f.appendVersion(bucket, key, v)
}

// SeedMultipartObject adds an object whose etag is an explicit composite
// multipart marker rather than a content hash.
func (f *Fake) SeedMultipartObject(bucket, key string, body []byte, etag string, storageClass types.StorageClass) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBucket(bucket)

	v := &fakeVersion{
		versionID:    "v1",
		body:         body,
		etag:         etag,
		storageClass: storageClass,
		lastModified: time.Now().UTC(),
	}
	f.appendVersion(bucket, key, v)
}

// SeedDeleteMarker appends a delete-marker version atop key, matching what
// a versioned DELETE without a version ID produces in real S3.
func (f *Fake) SeedDeleteMarker(bucket, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBucket(bucket)

	existing := f.versions[bucket][key]
	v := &fakeVersion{
		versionID:      fmt.Sprintf("dm%d", len(existing)+1),
		isDeleteMarker: true,
		lastModified:   time.Now().UTC(),
	}
	f.appendVersion(bucket, key, v)
}

// SeedMultipartUpload registers an in-progress multipart upload for the
// abort-sweep path.
func (f *Fake) SeedMultipartUpload(bucket, key, uploadID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBucket(bucket)
	if f.multipart[bucket] == nil {
		f.multipart[bucket] = make(map[string]string)
	}
	f.multipart[bucket][uploadID] = key
}

func (f *Fake) appendVersion(bucket, key string, v *fakeVersion) {
	if _, ok := f.versions[bucket][key]; !ok {
		f.keyOrder[bucket] = append(f.keyOrder[bucket], key)
	}
	f.versions[bucket][key] = append(f.versions[bucket][key], v)
}

// SetArchiveState marks the current version of (bucket,key) as having a
// Glacier restore requested and/or completed, for exercising glacier.Coordinator.
func (f *Fake) SetArchiveState(bucket, key string, requested, ongoing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vs := f.versions[bucket][key]
	if len(vs) == 0 {
		return
	}
	cur := vs[len(vs)-1]
	cur.restoreRequested = requested
	cur.restoreOngoing = ongoing
}

func md5Sum(b []byte) []byte {
	sum := md5.Sum(b)
	return sum[:]
}

// --- Client interface implementation ---

func (f *Fake) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &s3.ListBucketsOutput{}
	for _, name := range f.bucketOrder {
		n := name
		out.Buckets = append(out.Buckets, types.Bucket{Name: &n})
	}
	return out, nil
}

func (f *Fake) currentObjects(bucket string) []struct {
	key string
	v   *fakeVersion
} {
	var out []struct {
		key string
		v   *fakeVersion
	}
	for _, key := range f.keyOrder[bucket] {
		vs := f.versions[bucket][key]
		if len(vs) == 0 {
			continue
		}
		last := vs[len(vs)-1]
		if last.isDeleteMarker {
			continue
		}
		out = append(out, struct {
			key string
			v   *fakeVersion
		}{key, last})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func (f *Fake) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	all := f.currentObjects(bucket)

	start := 0
	if params.ContinuationToken != nil {
		n, err := strconv.Atoi(*params.ContinuationToken)
		if err == nil {
			start = n
		}
	}

	pageSize := f.pageSize
	if params.MaxKeys != nil && *params.MaxKeys > 0 {
		pageSize = int(*params.MaxKeys)
	}

	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}

	out := &s3.ListObjectsV2Output{}
	for _, item := range all[start:end] {
		key := item.key
		size := int64(len(item.v.body))
		etag := item.v.etag
		lm := item.v.lastModified
		sc := item.v.storageClass
		out.Contents = append(out.Contents, types.Object{
			Key:          &key,
			Size:         &size,
			ETag:         &etag,
			LastModified: &lm,
			StorageClass: sc,
		})
	}
	count := int32(len(out.Contents))
	out.KeyCount = &count

	if end < len(all) {
		next := strconv.Itoa(end)
		out.NextContinuationToken = &next
		out.IsTruncated = aws.Bool(true)
	} else {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

func (f *Fake) ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)

	type entry struct {
		key            string
		v              *fakeVersion
		isDeleteMarker bool
	}
	var all []entry
	for _, key := range f.keyOrder[bucket] {
		for _, v := range f.versions[bucket][key] {
			all = append(all, entry{key: key, v: v, isDeleteMarker: v.isDeleteMarker})
		}
	}

	start := 0
	if params.KeyMarker != nil {
		n, err := strconv.Atoi(*params.KeyMarker)
		if err == nil {
			start = n
		}
	}
	pageSize := f.pageSize
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}

	out := &s3.ListObjectVersionsOutput{}
	for _, e := range all[start:end] {
		key := e.key
		vid := e.v.versionID
		lm := e.v.lastModified
		if e.isDeleteMarker {
			out.DeleteMarkers = append(out.DeleteMarkers, types.DeleteMarkerEntry{
				Key:          &key,
				VersionId:    &vid,
				LastModified: &lm,
			})
			continue
		}
		size := int64(len(e.v.body))
		etag := e.v.etag
		out.Versions = append(out.Versions, types.ObjectVersion{
			Key:          &key,
			VersionId:    &vid,
			Size:         &size,
			ETag:         &etag,
			LastModified: &lm,
		})
	}

	if end < len(all) {
		next := strconv.Itoa(end)
		out.NextKeyMarker = &next
		out.IsTruncated = aws.Bool(true)
	} else {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

func (f *Fake) ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	out := &s3.ListMultipartUploadsOutput{}
	for uploadID, key := range f.multipart[bucket] {
		k := key
		u := uploadID
		out.Uploads = append(out.Uploads, types.MultipartUpload{Key: &k, UploadId: &u})
	}
	out.IsTruncated = aws.Bool(false)
	return out, nil
}

func (f *Fake) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	key := aws.ToString(params.Key)
	vs := f.versions[bucket][key]
	if len(vs) == 0 {
		return nil, &types.NoSuchKey{}
	}
	cur := vs[len(vs)-1]
	if cur.isDeleteMarker {
		return nil, &types.NoSuchKey{}
	}

	size := int64(len(cur.body))
	etag := cur.etag
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(cur.body)),
		ContentLength: &size,
		ETag:          &etag,
	}, nil
}

func (f *Fake) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	key := aws.ToString(params.Key)
	vs := f.versions[bucket][key]
	if len(vs) == 0 {
		return nil, &types.NotFound{}
	}
	cur := vs[len(vs)-1]

	out := &s3.HeadObjectOutput{}
	if cur.restoreRequested {
		restore := fmt.Sprintf("ongoing-request=%q", strconv.FormatBool(cur.restoreOngoing))
		out.Restore = &restore
	}
	return out, nil
}

func (f *Fake) RestoreObject(ctx context.Context, params *s3.RestoreObjectInput, optFns ...func(*s3.Options)) (*s3.RestoreObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	key := aws.ToString(params.Key)
	vs := f.versions[bucket][key]
	if len(vs) == 0 {
		return nil, &types.NoSuchKey{}
	}
	cur := vs[len(vs)-1]
	cur.restoreRequested = true
	cur.restoreOngoing = true
	return &s3.RestoreObjectOutput{}, nil
}

func (f *Fake) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	out := &s3.DeleteObjectsOutput{}

	for _, obj := range params.Delete.Objects {
		key := aws.ToString(obj.Key)
		vid := aws.ToString(obj.VersionId)

		vs := f.versions[bucket][key]
		idx := -1
		for i, v := range vs {
			if v.versionID == vid {
				idx = i
				break
			}
		}
		if idx == -1 {
			k, v := key, vid
			out.Errors = append(out.Errors, types.Error{
				Key:       &k,
				VersionId: &v,
				Code:      aws.String("NoSuchVersion"),
				Message:   aws.String("version not found"),
			})
			continue
		}
		f.versions[bucket][key] = append(vs[:idx], vs[idx+1:]...)
		k, v := key, vid
		out.Deleted = append(out.Deleted, types.DeletedObject{Key: &k, VersionId: &v})
	}
	return out, nil
}

func (f *Fake) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	uploadID := aws.ToString(params.UploadId)
	delete(f.multipart[bucket], uploadID)
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *Fake) DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	for _, vs := range f.versions[bucket] {
		if len(vs) > 0 {
			return nil, fmt.Errorf("bucket %s is not empty", bucket)
		}
	}
	if len(f.multipart[bucket]) > 0 {
		return nil, fmt.Errorf("bucket %s has in-progress multipart uploads", bucket)
	}
	f.deleted[bucket] = true
	return &s3.DeleteBucketOutput{}, nil
}
