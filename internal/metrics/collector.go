package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/oklog/ulid/v2"

	"github.com/torosent/midilat/internal/emitter"
)

// historySize is the number of closed windows kept for charting.
const historySize = 120

// Options configures a Collector.
type Options struct {
	// SampleRate converts ticks to milliseconds.
	SampleRate uint32
	// Warmup is the sample count that triggers histogram initialization
	// (default DefaultWarmup).
	Warmup int
	// Histogram enables the bucket histogram. Counts, extremes and moments
	// are tracked either way.
	Histogram bool
}

// Collector aggregates timing samples. Record is called by the consumer
// goroutine only; the mutex serves concurrent snapshot readers.
type Collector struct {
	mu   sync.Mutex
	opts Options

	win     window
	total   running
	hist    *hdrhistogram.Histogram
	warm    []int64
	buckets *Histogram
	history []Window

	periods map[uint32]int64
	runID   ulid.ULID
	start   time.Time
}

// Window is a snapshot of the statistics since the last ResetWindow. Mean
// is NaN when Count is 0.
type Window struct {
	Count      int64     `json:"count" yaml:"count"`
	Min        int64     `json:"min_ticks" yaml:"min_ticks"`
	Max        int64     `json:"max_ticks" yaml:"max_ticks"`
	Mean       float64   `json:"-" yaml:"-"`
	SampleRate uint32    `json:"-" yaml:"-"`
	ClosedAt   time.Time `json:"-" yaml:"-"`
}

// Time converts ticks to milliseconds at the window's sample rate.
func (w Window) Time(ticks float64) float64 {
	return ticksToMs(ticks, w.SampleRate)
}

// Stats is the cumulative snapshot of a run.
type Stats struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	SampleRate uint32        `json:"sample_rate" yaml:"sample_rate"`
	Period     uint32        `json:"period" yaml:"period"`
	Samples    int64         `json:"samples" yaml:"samples"`
	Min        int64         `json:"min_ticks" yaml:"min_ticks"`
	Max        int64         `json:"max_ticks" yaml:"max_ticks"`
	Range      int64         `json:"range_ticks" yaml:"range_ticks"`
	Mean       float64       `json:"mean_ticks" yaml:"mean_ticks"`
	Variance   float64       `json:"variance_ticks" yaml:"variance_ticks"`
	StdDev     float64       `json:"stddev_ticks" yaml:"stddev_ticks"`
	P50        int64         `json:"p50_ticks" yaml:"p50_ticks"`
	P90        int64         `json:"p90_ticks" yaml:"p90_ticks"`
	P99        int64         `json:"p99_ticks" yaml:"p99_ticks"`
	Duration   time.Duration `json:"-" yaml:"-"`

	// Millisecond views of the tick fields.
	MinMs      float64 `json:"min_ms" yaml:"min_ms"`
	MaxMs      float64 `json:"max_ms" yaml:"max_ms"`
	RangeMs    float64 `json:"range_ms" yaml:"range_ms"`
	MeanMs     float64 `json:"mean_ms" yaml:"mean_ms"`
	StdDevMs   float64 `json:"stddev_ms" yaml:"stddev_ms"`
	P50Ms      float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms      float64 `json:"p90_ms" yaml:"p90_ms"`
	P99Ms      float64 `json:"p99_ms" yaml:"p99_ms"`
	DurationMs float64 `json:"duration_ms" yaml:"duration_ms"`
}

// Time converts ticks to milliseconds at the run's sample rate.
func (s Stats) Time(ticks float64) float64 {
	return ticksToMs(ticks, s.SampleRate)
}

func ticksToMs(ticks float64, rate uint32) float64 {
	if rate == 0 {
		return 0
	}
	return ticks * 1000 / float64(rate)
}

// NewCollector returns an empty collector.
func NewCollector(opts Options) *Collector {
	if opts.Warmup <= 0 {
		opts.Warmup = DefaultWarmup
	}
	c := &Collector{
		opts:    opts,
		periods: make(map[uint32]int64),
		runID:   ulid.Make(),
		start:   time.Now(),
		// Delays are bounded by the marker modulus; 3 significant figures.
		hist: hdrhistogram.New(1, 1<<14, 3),
	}
	if opts.Histogram {
		c.warm = make([]int64, 0, opts.Warmup)
	}
	return c
}

// Record adds one sample to the window and the cumulative statistics.
func (c *Collector) Record(s emitter.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.win.add(s.Delay)
	c.total.add(s.Delay)
	c.periods[s.Period]++

	v := s.Delay
	if v < c.hist.LowestTrackableValue() {
		v = c.hist.LowestTrackableValue()
	}
	if v > c.hist.HighestTrackableValue() {
		v = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(v)

	if !c.opts.Histogram {
		return
	}
	if c.buckets != nil {
		c.buckets.Add(s.Delay)
		return
	}
	c.warm = append(c.warm, s.Delay)
	if len(c.warm) == c.opts.Warmup {
		c.initHistogram()
	}
}

// initHistogram derives the bucket layout from the warm-up samples and bins
// them retroactively.
func (c *Collector) initHistogram() {
	width := scottWidth(c.total.stddev(), c.total.n)
	c.buckets = layout(c.total.min, c.total.max, width)
	for _, d := range c.warm {
		c.buckets.Add(d)
	}
	c.warm = nil
}

// Window returns the statistics since the last ResetWindow.
func (c *Collector) Window() Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowLocked()
}

func (c *Collector) windowLocked() Window {
	return Window{
		Count:      c.win.n,
		Min:        c.win.min,
		Max:        c.win.max,
		Mean:       c.win.mean(),
		SampleRate: c.opts.SampleRate,
	}
}

// ResetWindow closes the current window, appends it to the history, and
// returns it.
func (c *Collector) ResetWindow() Window {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windowLocked()
	w.ClosedAt = time.Now()
	c.win = window{}

	c.history = append(c.history, w)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	return w
}

// History returns the closed windows, oldest first.
func (c *Collector) History() []Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Window(nil), c.history...)
}

// Histogram returns a copy of the bucket histogram and whether it has been
// initialized.
func (c *Collector) Histogram() (Histogram, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buckets == nil {
		return Histogram{}, false
	}
	return c.buckets.clone(), true
}

// Stats returns the cumulative snapshot.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		RunID:      c.runID.String(),
		SampleRate: c.opts.SampleRate,
		Period:     c.dominantPeriodLocked(),
		Samples:    c.total.n,
		Duration:   time.Since(c.start),
	}
	if c.total.n > 0 {
		s.Min = c.total.min
		s.Max = c.total.max
		s.Range = c.total.max - c.total.min
		s.Mean = c.total.mean
		s.Variance = c.total.variance()
		s.StdDev = math.Sqrt(s.Variance)
		s.P50 = c.hist.ValueAtQuantile(50)
		s.P90 = c.hist.ValueAtQuantile(90)
		s.P99 = c.hist.ValueAtQuantile(99)
	}

	s.MinMs = s.Time(float64(s.Min))
	s.MaxMs = s.Time(float64(s.Max))
	s.RangeMs = s.Time(float64(s.Range))
	s.MeanMs = s.Time(s.Mean)
	s.StdDevMs = s.Time(s.StdDev)
	s.P50Ms = s.Time(float64(s.P50))
	s.P90Ms = s.Time(float64(s.P90))
	s.P99Ms = s.Time(float64(s.P99))
	s.DurationMs = float64(s.Duration) / float64(time.Millisecond)
	return s
}

// dominantPeriodLocked returns the period length most samples were taken
// with.
func (c *Collector) dominantPeriodLocked() uint32 {
	var period uint32
	var most int64
	for p, n := range c.periods {
		if n > most || (n == most && p > period) {
			period, most = p, n
		}
	}
	return period
}
