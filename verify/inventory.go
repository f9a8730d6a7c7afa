package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
)

// ErrInventoryMismatch is raised when the local tree and the recorded
// manifest disagree on which keys exist.
var ErrInventoryMismatch = fmt.Errorf("inventory mismatch between local files and recorded manifest")

// maxErrorDisplay caps how many example keys are listed in a mismatch
// error, matching MAX_ERROR_DISPLAY in the tool this was ported from.
const maxErrorDisplay = 10

// ignoredFilenames is the allowlist of filesystem metadata files counted
// as "extra" but never treated as an inventory error.
var ignoredFilenames = map[string]bool{
	".DS_Store": true,
	"Thumbs.db": true,
}

// Inventory is the normalized local-vs-expected key comparison result.
type Inventory struct {
	Missing    []string
	Extra      []string
	IgnoredExtra int
}

// ScanLocalFiles walks bucketDir and returns a map from forward-slash
// normalized relative path to absolute path.
func ScanLocalFiles(bucketDir string) (map[string]string, error) {
	out := make(map[string]string)

	err := godirwalk.Walk(bucketDir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(bucketDir, path)
			if err != nil {
				return err
			}
			out[filepath.ToSlash(rel)] = path
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("walk local bucket directory %s: %w", bucketDir, err)
	}
	return out, nil
}

// CheckInventory compares the expected key set against the local tree,
// filtering out an allowlist of filesystem metadata files from "extra".
func CheckInventory(expected map[string]ExpectedFile, local map[string]string) (Inventory, error) {
	var inv Inventory

	for key := range expected {
		if _, ok := local[key]; !ok {
			inv.Missing = append(inv.Missing, key)
		}
	}
	for key := range local {
		if _, ok := expected[key]; ok {
			continue
		}
		if ignoredFilenames[filepath.Base(key)] {
			inv.IgnoredExtra++
			continue
		}
		inv.Extra = append(inv.Extra, key)
	}

	sort.Strings(inv.Missing)
	sort.Strings(inv.Extra)

	if len(inv.Missing) > 0 || len(inv.Extra) > 0 {
		return inv, fmt.Errorf("%w: %s", ErrInventoryMismatch, inv.summarize())
	}
	return inv, nil
}

func (inv Inventory) summarize() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d missing, %d extra", len(inv.Missing), len(inv.Extra))

	if len(inv.Missing) > 0 {
		b.WriteString("; missing: ")
		b.WriteString(strings.Join(truncate(inv.Missing, maxErrorDisplay), ", "))
	}
	if len(inv.Extra) > 0 {
		b.WriteString("; extra: ")
		b.WriteString(strings.Join(truncate(inv.Extra, maxErrorDisplay), ", "))
	}
	return b.String()
}

func truncate(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	out := append([]string{}, items[:n]...)
	out = append(out, fmt.Sprintf("...and %d more", len(items)-n))
	return out
}

// ExpectedFile carries just the fields of a store.FileRecord that the
// inventory and content stages need.
type ExpectedFile struct {
	Size uint64
	ETag string
}
