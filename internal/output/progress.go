package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/midilat/internal/metrics"
)

// ProgressReporter prints the window statistics every interval and then
// starts a new window.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	hooks     []func(metrics.Window)
	active    int32
}

// NewProgressReporter creates a progress reporter that reports at the given
// interval. A non-positive interval disables it. Hooks receive every closed
// window.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer, hooks ...func(metrics.Window)) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		interval:  interval,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		hooks:     hooks,
	}
}

// Start begins reporting in a background goroutine.
func (p *ProgressReporter) Start() {
	if p.interval <= 0 {
		return
	}
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	p.ticker = time.NewTicker(p.interval)
	go p.run()
}

// Stop halts reporting.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			p.Flush()
		case <-p.done:
			return
		}
	}
}

// Flush reports and resets the current window immediately.
func (p *ProgressReporter) Flush() {
	w := p.collector.ResetWindow()
	fmt.Fprintf(p.writer, "\r%s\n", FormatWindow(w))
	for _, hook := range p.hooks {
		hook(w)
	}
}

// FormatWindow renders a window summary line.
func FormatWindow(w metrics.Window) string {
	if w.Count == 0 {
		return "window: no samples"
	}
	return fmt.Sprintf("window: %d samples | min %d | max %d | mean %.1f frames (%.3f - %.3fms, mean %.3fms)",
		w.Count, w.Min, w.Max, w.Mean,
		w.Time(float64(w.Min)), w.Time(float64(w.Max)), w.Time(w.Mean))
}
