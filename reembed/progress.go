package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressTracker drives a progress bar for a reembedding run, redrawing it
// at most once every reportInterval points.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	bar            *progressbar.ProgressBar
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker for total items that reports at most
// once every reportInterval items.
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if reportInterval <= 0 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start resets the counters and the clock and draws an empty bar.
// A tracker with nothing to track stays silent.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.current = 0
	p.lastReported = 0
	p.bar = nil
	if p.total <= 0 {
		return
	}

	writer := p.writer
	p.bar = progressbar.NewOptions(p.total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetDescription("Reembedding"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("points"),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(writer)
		}),
	)
}

// Update sets the absolute progress.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance(current)
}

// Increment adds delta to the progress.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance(p.current + delta)
}

// advance must be called with the lock held.
func (p *ProgressTracker) advance(current int) {
	if p.bar == nil {
		return
	}
	// points written after Count was taken would overflow the bar
	p.current = min(current, p.total)
	if p.current-p.lastReported >= p.reportInterval {
		_ = p.bar.Set(p.current)
		p.lastReported = p.current
	}
}

// Finish fills the bar and ends its line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	p.current = p.total
	_ = p.bar.Set(p.total)
}

// Elapsed returns the time since Start, or zero before Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startTime.IsZero() {
		return 0
	}
	return time.Since(p.startTime)
}
