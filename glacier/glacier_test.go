package glacier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
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

func TestRequestRestoresMarksFiles(t *testing.T) {
	st := testStore(t)
	fake := s3api.NewFake()
	fake.SeedObject("b1", "archived.dat", []byte("data"), types.StorageClassGlacier)

	if err := st.AddFile(store.FileRecord{Bucket: "b1", Key: "archived.dat", StorageClass: "GLACIER"}); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}

	cfg := &config.Config{GlacierRestoreDays: 10, GlacierRestoreTier: "Standard"}
	coord := New(fake, st, cfg)

	if err := coord.RequestRestores(context.Background(), progress.NewToken()); err != nil {
		t.Fatalf("RequestRestores failed: %v", err)
	}

	got, _, err := st.GetFile("b1", "archived.dat")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.GlacierRestoreRequestedAt == nil {
		t.Fatal("expected glacier restore requested to be set")
	}

	needing, err := st.GetGlacierFilesNeedingRestore()
	if err != nil {
		t.Fatalf("GetGlacierFilesNeedingRestore failed: %v", err)
	}
	if len(needing) != 0 {
		t.Errorf("expected no files needing restore after request, got %d", len(needing))
	}
}

func TestWaitForRestoresAdvancesWhenDone(t *testing.T) {
	st := testStore(t)
	fake := s3api.NewFake()
	fake.SeedObject("b1", "archived.dat", []byte("data"), types.StorageClassGlacier)
	fake.SetArchiveState("b1", "archived.dat", true, false)

	if err := st.AddFile(store.FileRecord{Bucket: "b1", Key: "archived.dat", StorageClass: "GLACIER"}); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if err := st.MarkGlacierRestoreRequested("b1", "archived.dat"); err != nil {
		t.Fatalf("MarkGlacierRestoreRequested failed: %v", err)
	}

	cfg := &config.Config{GlacierRestoreDays: 10, GlacierRestoreTier: "Standard"}
	coord := New(fake, st, cfg)

	if err := coord.WaitForRestores(context.Background(), progress.NewToken()); err != nil {
		t.Fatalf("WaitForRestores failed: %v", err)
	}

	got, _, err := st.GetFile("b1", "archived.dat")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.GlacierRestoredAt == nil {
		t.Error("expected glacier restored to be set")
	}
}
