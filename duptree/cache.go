package duptree

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mahrens917/aws-sub001/store"
)

// Report is the serialized result of one analysis run: the duplicate
// groups found, plus the parameters the run was computed under.
type Report struct {
	Fingerprint string    `json:"fingerprint"`
	TotalFiles  uint64    `json:"totalFiles"`
	MinFiles    int       `json:"minFiles"`
	MinBytes    uint64    `json:"minBytes"`
	GeneratedAt time.Time `json:"generatedAt"`
	Groups      []Group   `json:"groups"`
}

// Analyzer runs the duplicate-tree analysis against a state store, honoring
// a cache keyed to the snapshot fingerprint, threshold pair, and base path.
type Analyzer struct {
	store *store.Store
}

// New constructs an Analyzer over st.
func New(st *store.Store) *Analyzer {
	return &Analyzer{store: st}
}

// Analyze computes (or reuses a cached) duplicate-tree report for the
// current manifest snapshot under basePath. A cache hit requires both the
// fingerprint and the total file count to match; any mismatch recomputes.
func (a *Analyzer) Analyze(basePath string, minFiles int, minBytes uint64) (Report, error) {
	files, err := a.store.GetAllFiles()
	if err != nil {
		return Report{}, fmt.Errorf("load manifest: %w", err)
	}

	fp := ComputeFingerprint(files)

	if cached, hit, err := a.store.GetDupCacheEntry(fp.Checksum, minFiles, minBytes, basePath); err != nil {
		return Report{}, fmt.Errorf("check duplicate tree cache: %w", err)
	} else if hit && cached.TotalFiles == fp.TotalFiles {
		var report Report
		if err := json.Unmarshal(cached.Report, &report); err != nil {
			return Report{}, fmt.Errorf("decode cached duplicate tree report: %w", err)
		}
		return report, nil
	}

	idx := BuildIndex(files)
	idx.Finalize()
	groups := idx.FindDuplicateGroups(minFiles, minBytes)

	report := Report{
		Fingerprint: fp.Checksum,
		TotalFiles:  fp.TotalFiles,
		MinFiles:    minFiles,
		MinBytes:    minBytes,
		GeneratedAt: time.Now().UTC(),
		Groups:      groups,
	}

	encoded, err := json.Marshal(report)
	if err != nil {
		return Report{}, fmt.Errorf("encode duplicate tree report: %w", err)
	}

	err = a.store.SaveDupCacheEntry(store.DupCacheEntry{
		Fingerprint: fp.Checksum,
		MinFiles:    minFiles,
		MinBytes:    minBytes,
		BasePath:    basePath,
		TotalFiles:  fp.TotalFiles,
		GeneratedAt: report.GeneratedAt,
		Report:      encoded,
	})
	if err != nil {
		return Report{}, fmt.Errorf("save duplicate tree cache entry: %w", err)
	}

	return report, nil
}
