// Package progress implements the cancellation token, throttled progress
// printers, and filesystem drive-presence checks shared by every long
// running phase of a migration run.
package progress

import (
	"context"
	"sync/atomic"
	"time"
)

// Token is a single shared, thread-safe cancellation signal. Every long
// loop in the migration core checks it at each unit boundary (page,
// object, file, chunk).
type Token struct {
	cancelled int32
}

// NewToken returns a fresh, uncancelled Token.
func NewToken() *Token {
	return &Token{}
}

// Cancel sets the token. Safe to call from a signal handler or any
// component; idempotent.
func (t *Token) Cancel() {
	atomic.StoreInt32(&t.cancelled, 1)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return atomic.LoadInt32(&t.cancelled) == 1
}

// Sleep waits for d, the context, or cancellation, whichever comes first.
// It returns true iff the wait was interrupted by cancellation or context
// cancellation rather than running to completion. Used by the Glacier
// coordinator's 5-minute wait loop, which must be cancellable mid-sleep.
func (t *Token) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return t.Cancelled()
		case <-ctx.Done():
			return true
		case <-ticker.C:
			if t.Cancelled() {
				return true
			}
		}
	}
}
