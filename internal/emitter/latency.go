package emitter

import (
	"sync/atomic"

	"github.com/torosent/midilat/internal/driver"
)

// LatencyRanges is the capture/playback latency pair. Each range is packed
// into a single word so readers never observe a torn min/max.
type LatencyRanges struct {
	capture  atomic.Uint64
	playback atomic.Uint64
}

func pack(r driver.LatencyRange) uint64 {
	return uint64(uint32(r.Min))<<32 | uint64(uint32(r.Max))
}

func unpack(v uint64) driver.LatencyRange {
	return driver.LatencyRange{Min: int32(uint32(v >> 32)), Max: int32(uint32(v))}
}

func (l *LatencyRanges) reset() {
	l.capture.Store(pack(driver.UnknownLatency))
	l.playback.Store(pack(driver.UnknownLatency))
}

// Set stores r for mode and reports whether the value changed.
func (l *LatencyRanges) Set(mode driver.LatencyMode, r driver.LatencyRange) bool {
	slot := &l.playback
	if mode == driver.CaptureLatency {
		slot = &l.capture
	}
	return slot.Swap(pack(r)) != pack(r)
}

// Capture returns the capture latency range.
func (l *LatencyRanges) Capture() driver.LatencyRange {
	return unpack(l.capture.Load())
}

// Playback returns the playback latency range.
func (l *LatencyRanges) Playback() driver.LatencyRange {
	return unpack(l.playback.Load())
}

// Known reports whether both directions have been negotiated.
func (l *LatencyRanges) Known() bool {
	return l.Capture() != driver.UnknownLatency && l.Playback() != driver.UnknownLatency
}

// Expected returns capture.Max + playback.Max, or 2*period when that is not
// positive. The fallback is a placeholder: MIDI ports usually report no
// latency of their own.
func (l *LatencyRanges) Expected(period uint32) int64 {
	c, p := l.Capture(), l.Playback()
	sum := int64(c.Max) + int64(p.Max)
	if c.Max < 0 || p.Max < 0 || sum <= 0 {
		return 2 * int64(period)
	}
	return sum
}
