package metrics

import "math"

// running accumulates count, extremes, and Welford mean/M2 over int64
// samples.
type running struct {
	n    int64
	min  int64
	max  int64
	mean float64
	m2   float64
}

func (r *running) add(x int64) {
	if r.n == 0 || x < r.min {
		r.min = x
	}
	if r.n == 0 || x > r.max {
		r.max = x
	}
	r.n++
	v := float64(x)
	delta := v - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (v - r.mean)
}

// variance returns the sample variance M2/(n-1), or 0 for fewer than two
// samples.
func (r *running) variance() float64 {
	if r.n < 2 {
		return 0
	}
	return r.m2 / float64(r.n-1)
}

func (r *running) stddev() float64 {
	return math.Sqrt(r.variance())
}

// window tracks the interval statistics. The mean divides the sum by the
// window count, so an empty window has an undefined mean.
type window struct {
	n   int64
	min int64
	max int64
	sum float64
}

func (w *window) add(x int64) {
	if w.n == 0 || x < w.min {
		w.min = x
	}
	if w.n == 0 || x > w.max {
		w.max = x
	}
	w.n++
	w.sum += float64(x)
}

func (w *window) mean() float64 {
	if w.n == 0 {
		return math.NaN()
	}
	return w.sum / float64(w.n)
}
