package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrDriveNotAvailable is returned when the parent directory of the local
// base path does not exist, distinguishing an unmounted drive from any
// other filesystem failure.
var ErrDriveNotAvailable = errors.New("drive not mounted or not available")

// ErrPermissionDenied is returned when the base path's parent exists but
// cannot be written to.
var ErrPermissionDenied = errors.New("permission denied creating base path")

// CheckDriveAvailable verifies the parent of basePath exists, then creates
// basePath itself if needed. It distinguishes a missing mount from a
// permission failure, matching check_drive_available in the tool this was
// ported from.
func CheckDriveAvailable(basePath string) error {
	parent := filepath.Dir(basePath)

	if _, err := os.Stat(parent); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDriveNotAvailable, parent)
		}
		return fmt.Errorf("check drive available: %w", err)
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, basePath)
		}
		return fmt.Errorf("create base path: %w", err)
	}

	return nil
}
