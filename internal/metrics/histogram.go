package metrics

import "math"

const (
	// DefaultWarmup is the number of samples buffered before the histogram
	// layout is derived.
	DefaultWarmup = 500

	// maxBins bounds the bucket count when a few outliers stretch the
	// warm-up range.
	maxBins = 1024

	// leftPadding is the most bin widths the origin is moved left by.
	leftPadding = 3
)

// Histogram is a fixed-width bucket histogram over delays in ticks. Min and
// Width do not change after construction; samples outside the covered range
// are counted in the first or last bucket.
type Histogram struct {
	Min    float64  `json:"min_ticks" yaml:"min_ticks"`
	Width  float64  `json:"width_ticks" yaml:"width_ticks"`
	Counts []uint64 `json:"counts" yaml:"counts"`
}

// NewHistogram returns an empty histogram of bins buckets starting at min.
func NewHistogram(min, width float64, bins int) *Histogram {
	if bins < 1 {
		bins = 1
	}
	return &Histogram{Min: min, Width: width, Counts: make([]uint64, bins)}
}

// Bucket returns the index delay is counted in.
func (h *Histogram) Bucket(delay int64) int {
	last := len(h.Counts) - 1
	if h.Width <= 0 {
		return 0
	}
	pos := (float64(delay) - h.Min) / h.Width
	switch {
	case pos < 0:
		return 0
	case pos >= float64(last):
		return last
	}
	return int(pos)
}

// Add counts one sample.
func (h *Histogram) Add(delay int64) {
	h.Counts[h.Bucket(delay)]++
}

// Bounds returns the tick range [lo, hi) covered by bucket i.
func (h *Histogram) Bounds(i int) (lo, hi float64) {
	lo = h.Min + float64(i)*h.Width
	return lo, lo + h.Width
}

// Total returns the number of counted samples.
func (h *Histogram) Total() uint64 {
	var n uint64
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Peak returns the largest bucket count.
func (h *Histogram) Peak() uint64 {
	var peak uint64
	for _, c := range h.Counts {
		if c > peak {
			peak = c
		}
	}
	return peak
}

func (h *Histogram) clone() Histogram {
	return Histogram{Min: h.Min, Width: h.Width, Counts: append([]uint64(nil), h.Counts...)}
}

// scottWidth is Scott's normal reference rule, 3.5·σ·n^(-1/3), floored at
// one tick so a constant warm-up still yields a usable layout.
func scottWidth(stddev float64, n int64) float64 {
	w := 3.5 * stddev * math.Pow(float64(n), -1.0/3.0)
	if w < 1 || math.IsNaN(w) {
		return 1
	}
	return w
}

// layout derives the histogram covering [min, max] with the given width.
// The origin is then moved left one width at a time, at most leftPadding
// times, while it stays above origin - width, i.e. while it is positive.
// Each step adds a bucket so the right edge is kept.
func layout(min, max int64, width float64) *Histogram {
	bins := int(math.Ceil(float64(max-min) / width))
	if bins < 1 {
		bins = 1
	}

	origin := float64(min)
	for i := 0; i < leftPadding && origin-width > -width; i++ {
		origin -= width
		bins++
	}

	if bins > maxBins {
		bins = maxBins
	}
	return NewHistogram(origin, width, bins)
}
