// Package metrics aggregates round-trip timing samples.
//
// A [Collector] keeps two sets of statistics: a window that the periodic
// reporter reads and resets every interval, and cumulative statistics for
// the whole run. Cumulative mean and variance are updated online with
// Welford's algorithm; percentiles come from an HDR histogram.
//
//	c := metrics.NewCollector(metrics.Options{SampleRate: 48000, Histogram: true})
//	c.Record(sample)
//	w := c.ResetWindow()   // interval min/max/mean
//	stats := c.Stats()     // cumulative snapshot
//
// # Histogram
//
// When enabled, the first [DefaultWarmup] samples are buffered. At exactly
// that count the bucket width is derived with Scott's rule
// (3.5·σ·n^(-1/3)), the bucket count from the observed range, and the origin
// is padded left by up to three widths. The buffered samples are then binned
// and every later sample is binned as it arrives. Samples outside the
// covered range are counted in the first or last bucket.
//
// # Thread Safety
//
// Record is meant for a single consumer goroutine. All methods lock the
// collector, so snapshots may be taken from any goroutine.
package metrics
