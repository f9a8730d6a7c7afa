package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// DefaultInterval throttles indeterminate-progress printing to once per
// second, matching the downloader's throttled progress line.
const DefaultInterval = time.Second

// Printer is a throttled progress reporter. With a known total it drives a
// cheggaaa/pb bar; without one (total == 0, or constructed via NewPrinter)
// it falls back to a throttled plain-text line, the same fallback the
// original's ProgressPrinter used when no total was known.
type Printer struct {
	mu       sync.Mutex
	label    string
	interval time.Duration
	last     time.Time
	bar      *pb.ProgressBar
}

// NewPrinter returns a throttled text-line printer with the default
// interval.
func NewPrinter(label string) *Printer {
	return NewPrinterWithInterval(label, DefaultInterval)
}

// NewPrinterWithInterval returns a throttled text-line printer with an
// explicit interval.
func NewPrinterWithInterval(label string, interval time.Duration) *Printer {
	return &Printer{label: label, interval: interval}
}

// NewBarPrinter returns a Printer backed by a determinate cheggaaa/pb bar
// for a known total unit count (bytes, files, objects). A total of zero or
// less yields a plain throttled text-line printer instead.
func NewBarPrinter(label string, total int64) *Printer {
	if total <= 0 {
		return NewPrinter(label)
	}
	bar := pb.New64(total)
	bar.Set(pb.Bytes, true)
	bar.Set("prefix", label+" ")
	bar.Start()
	return &Printer{label: label, interval: DefaultInterval, bar: bar}
}

// Printf prints a throttled progress line. If a bar is attached, Printf
// prints nothing; the bar is advanced through SetBarValue instead.
func (p *Printer) Printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		return
	}

	now := time.Now()
	if now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	fmt.Printf("\r%s", fmt.Sprintf(format, args...))
}

// SetBarValue advances the attached bar to the given absolute value. A
// no-op if this Printer was not constructed with NewBarPrinter.
func (p *Printer) SetBarValue(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.SetCurrent(n)
	}
}

// Finish forces a final print (or finishes the bar) regardless of
// throttling, matching the contract that finish() always emits.
func (p *Printer) Finish(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Finish()
		return
	}
	fmt.Printf("\r%s\n", msg)
}
