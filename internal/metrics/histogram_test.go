package metrics

import (
	"math"
	"testing"
)

func TestHistogramBucketAssignment(t *testing.T) {
	h := NewHistogram(0, 5, 10)

	tests := []struct {
		delay int64
		want  int
	}{
		{delay: 12, want: 2},
		{delay: 0, want: 0},
		{delay: 4, want: 0},
		{delay: 5, want: 1},
		{delay: -3, want: 0},
		{delay: 49, want: 9},
		{delay: 50, want: 9},
		{delay: 1 << 40, want: 9},
	}
	for _, tt := range tests {
		if got := h.Bucket(tt.delay); got != tt.want {
			t.Errorf("Bucket(%d) = %d, want %d", tt.delay, got, tt.want)
		}
	}

	prev := 0
	for d := int64(-10); d < 80; d++ {
		b := h.Bucket(d)
		if b < prev {
			t.Fatalf("bucket assignment not monotonic at %d: %d < %d", d, b, prev)
		}
		prev = b
	}
}

func TestHistogramBounds(t *testing.T) {
	h := NewHistogram(10, 2.5, 4)
	lo, hi := h.Bounds(2)
	if lo != 15 || hi != 17.5 {
		t.Fatalf("Bounds(2) = [%v, %v)", lo, hi)
	}
	h.Add(11)
	h.Add(11)
	h.Add(16)
	if h.Peak() != 2 || h.Total() != 3 {
		t.Fatalf("peak %d total %d", h.Peak(), h.Total())
	}
}

func TestLayoutLeftPadding(t *testing.T) {
	tests := []struct {
		name       string
		min, max   int64
		width      float64
		wantOrigin float64
		wantBins   int
	}{
		{name: "three widths", min: 100, max: 200, width: 10, wantOrigin: 70, wantBins: 13},
		{name: "stops once origin is not positive", min: 15, max: 40, width: 10, wantOrigin: -5, wantBins: 5},
		{name: "origin at zero", min: 0, max: 20, width: 5, wantOrigin: 0, wantBins: 4},
		{name: "single bin", min: 300, max: 300, width: 1, wantOrigin: 297, wantBins: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := layout(tt.min, tt.max, tt.width)
			if h.Min != tt.wantOrigin || len(h.Counts) != tt.wantBins {
				t.Fatalf("origin %v bins %d, want %v and %d", h.Min, len(h.Counts), tt.wantOrigin, tt.wantBins)
			}
		})
	}
}

func TestScottWidth(t *testing.T) {
	got := scottWidth(10, 1000)
	if math.Abs(got-3.5) > 1e-9 {
		t.Fatalf("scottWidth(10, 1000) = %v, want 3.5", got)
	}
	if scottWidth(0, 500) != 1 {
		t.Fatal("zero deviation should fall back to one tick")
	}
}
