// Package emitter implements the realtime side of a measurement: once per
// period it writes a timestamp marker to the output port and turns every
// looped-back marker on the input port into a timing sample.
package emitter

import (
	"sync/atomic"

	"github.com/torosent/midilat/internal/driver"
	"github.com/torosent/midilat/internal/marker"
)

// Sample is one round-trip measurement.
type Sample struct {
	Delay  int64  // round-trip delay in ticks
	Period uint32 // period length in effect when the marker came back
}

// Pusher accepts samples without blocking.
type Pusher interface {
	TryPush(Sample) bool
}

// Signaler wakes the consumer without blocking.
type Signaler interface {
	TrySignal() bool
}

// Counters summarizes marker traffic.
type Counters struct {
	Sent     uint64 `json:"sent" yaml:"sent"`
	Received uint64 `json:"received" yaml:"received"`
	Dropped  uint64 `json:"dropped" yaml:"dropped"`
	Ignored  uint64 `json:"ignored" yaml:"ignored"`
	Unsent   uint64 `json:"unsent" yaml:"unsent"`
}

// Emitter holds the realtime state of a measurement.
//
// Ownership: counter and the traffic counters are written only by Process;
// latency is written only by OnLatency. Both use atomics so other
// goroutines may read them for logging.
type Emitter struct {
	queue  Pusher
	notify Signaler

	counter atomic.Uint64
	period  atomic.Uint32

	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64
	ignored  atomic.Uint64
	unsent   atomic.Uint64

	latency LatencyRanges
}

// New returns an emitter pushing samples to q and waking n.
func New(q Pusher, n Signaler) *Emitter {
	e := &Emitter{queue: q, notify: n}
	e.latency.reset()
	return e
}

// Process is the per-period callback. It clears out, emits one marker at
// offset 0 carrying the current counter, converts every marker found in in
// to a Sample, and advances the counter by nframes. The consumer is signaled
// once per period in which at least one sample was queued. It does not
// block, allocate, or lock.
func (e *Emitter) Process(nframes uint32, in []driver.Event, out *driver.Buffer) {
	now := e.counter.Load()
	e.period.Store(nframes)

	out.Clear()
	if dst := out.Reserve(0, marker.Size); dst != nil {
		marker.Put(dst, now)
		e.sent.Add(1)
	} else {
		e.unsent.Add(1)
	}

	pushed := false
	for i := range in {
		delay, ok := marker.Decode(in[i].Data, now, in[i].Time)
		if !ok {
			e.ignored.Add(1)
			continue
		}
		e.received.Add(1)
		if e.queue.TryPush(Sample{Delay: delay, Period: nframes}) {
			pushed = true
		} else {
			e.dropped.Add(1)
		}
	}
	if pushed {
		e.notify.TrySignal()
	}

	e.counter.Store(now + uint64(nframes))
}

// Counter returns the monotonic period counter.
func (e *Emitter) Counter() uint64 {
	return e.counter.Load()
}

// Period returns the most recent period length.
func (e *Emitter) Period() uint32 {
	return e.period.Load()
}

// Counters returns a snapshot of the marker traffic counters.
func (e *Emitter) Counters() Counters {
	return Counters{
		Sent:     e.sent.Load(),
		Received: e.received.Load(),
		Dropped:  e.dropped.Load(),
		Ignored:  e.ignored.Load(),
		Unsent:   e.unsent.Load(),
	}
}

// OnLatency stores a negotiated latency range and reports whether it
// differs from the previous one. It matches driver.LatencyFunc apart from
// the return value.
func (e *Emitter) OnLatency(mode driver.LatencyMode, r driver.LatencyRange) bool {
	return e.latency.Set(mode, r)
}

// Latency returns the latency range pair.
func (e *Emitter) Latency() *LatencyRanges {
	return &e.latency
}

// Expected returns the round-trip latency the audio path itself accounts
// for: the sum of the maximum capture and playback latencies, or twice the
// period when that sum is not known or not positive.
func (e *Emitter) Expected(period uint32) int64 {
	return e.latency.Expected(period)
}
