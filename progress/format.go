package progress

import (
	"fmt"
	"time"
)

// FormatBytes renders a byte count in the same "42.3 MB"-style units the
// original tool's format_bytes helper produced.
func FormatBytes(n uint64) string {
	const unit = 1024.0
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}

	size := float64(n)
	i := 0
	for size >= unit && i < len(units)-1 {
		size /= unit
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, units[i])
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

// FormatDuration renders a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ETABytes estimates remaining time given bytes done, total bytes, and
// elapsed time, the same throughput-based estimate the original's
// calculate_eta_bytes used.
func ETABytes(done, total uint64, elapsed time.Duration) time.Duration {
	if done == 0 || total <= done {
		return 0
	}
	rate := float64(done) / elapsed.Seconds()
	if rate <= 0 {
		return 0
	}
	remaining := float64(total - done)
	return time.Duration(remaining/rate) * time.Second
}

// ETAItems estimates remaining time given items done, total items, and
// elapsed time.
func ETAItems(done, total int, elapsed time.Duration) time.Duration {
	if done == 0 || total <= done {
		return 0
	}
	rate := float64(done) / elapsed.Seconds()
	if rate <= 0 {
		return 0
	}
	remaining := float64(total - done)
	return time.Duration(remaining/rate) * time.Second
}
