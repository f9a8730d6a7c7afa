package downloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mahrens917/aws-sub001/config"
	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/s3api"
	"github.com/mahrens917/aws-sub001/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSyncBucketWritesFiles(t *testing.T) {
	st := testStore(t)
	fake := s3api.NewFake()
	fake.SeedObject("b1", "dir/hello.txt", []byte("hi"), "")
	fake.SeedObject("b1", "root.txt", []byte("more data"), "")

	base := t.TempDir()
	cfg := &config.Config{LocalBasePath: base, MaxWorkers: 2, DownloadChunkBytes: 4}

	if err := st.AddFile(store.FileRecord{Bucket: "b1", Key: "dir/hello.txt"}); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if err := st.AddFile(store.FileRecord{Bucket: "b1", Key: "root.txt"}); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if err := st.SaveBucketStatus(store.BucketRecord{Bucket: "b1", ScanComplete: true}); err != nil {
		t.Fatalf("SaveBucketStatus failed: %v", err)
	}

	d := New(fake, st, cfg)
	if err := d.SyncBucket(context.Background(), "b1", progress.NewToken()); err != nil {
		t.Fatalf("SyncBucket failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, "b1", "dir", "hello.txt"))
	if err != nil {
		t.Fatalf("expected downloaded file, got error: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("expected content 'hi', got %q", data)
	}

	rec, _, err := st.GetBucketInfo("b1")
	if err != nil {
		t.Fatalf("GetBucketInfo failed: %v", err)
	}
	if !rec.SyncComplete {
		t.Error("expected sync_complete to be set")
	}
}

func TestSyncBucketCancellation(t *testing.T) {
	st := testStore(t)
	fake := s3api.NewFake()
	fake.SeedObject("b1", "a.txt", []byte("hi"), "")

	base := t.TempDir()
	cfg := &config.Config{LocalBasePath: base, MaxWorkers: 1, DownloadChunkBytes: 1 << 10}

	token := progress.NewToken()
	token.Cancel()

	d := New(fake, st, cfg)
	if err := d.SyncBucket(context.Background(), "b1", token); err != nil {
		t.Fatalf("SyncBucket failed: %v", err)
	}

	rec, found, err := st.GetBucketInfo("b1")
	if err != nil {
		t.Fatalf("GetBucketInfo failed: %v", err)
	}
	if found && rec.SyncComplete {
		t.Error("expected sync_complete to remain false when cancelled")
	}
}
