package report

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

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

func TestGenerateAggregatesBuckets(t *testing.T) {
	st := testStore(t)
	if err := st.SaveBucketStatus(store.BucketRecord{
		Bucket: "b1", FileCount: 10, TotalSize: 1000, SyncComplete: true, DeleteComplete: true,
	}); err != nil {
		t.Fatalf("SaveBucketStatus failed: %v", err)
	}
	if err := st.SaveBucketStatus(store.BucketRecord{
		Bucket: "b2", FileCount: 5, TotalSize: 500, SyncComplete: true,
	}); err != nil {
		t.Fatalf("SaveBucketStatus failed: %v", err)
	}

	start := time.Unix(1000, 0).UTC()
	end := time.Unix(1060, 0).UTC()
	r, err := Generate(st, start, end)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if r.BucketCount != 2 || r.FilesScanned != 15 || r.BytesScanned != 1500 {
		t.Errorf("unexpected aggregate totals: %+v", r)
	}
	if r.BucketsSynced != 2 || r.BucketsDone != 1 {
		t.Errorf("unexpected completion counts: %+v", r)
	}
	if r.Duration != 60*time.Second {
		t.Errorf("expected duration 60s, got %s", r.Duration)
	}
}

func TestReportMarshalJSONRendersDurationAsString(t *testing.T) {
	r := Report{Duration: 90 * time.Second}
	encoded, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if !strings.Contains(string(encoded), `"duration":"1m30s"`) {
		t.Errorf("expected encoded duration field, got %s", encoded)
	}
}
