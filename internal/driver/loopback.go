package driver

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
)

const (
	// LoopbackCapture is the device port whose events feed the client input.
	LoopbackCapture = "loopback:capture"
	// LoopbackPlayback is the device port the client output is played into.
	LoopbackPlayback = "loopback:playback"
)

// LoopbackConfig describes the simulated cable.
type LoopbackConfig struct {
	Name        string  // client name (default "midilat")
	SampleRate  uint32  // ticks per second (default 48000)
	BufferSize  uint32  // ticks per period (default 256)
	Delay       uint32  // one-way transit time of the cable in ticks
	Jitter      uint32  // uniform jitter in [-Jitter, +Jitter] ticks
	Loss        float64 // probability in [0,1) that an event is lost
	Seed        int64   // jitter/loss seed (0 = fixed default)
	PortLatency int32   // latency reported for each port direction
	ManualClock bool    // when set, Activate starts no clock; use Step
}

// pendingEvent is an event in transit through the cable.
type pendingEvent struct {
	due  uint64
	size int
	data [8]byte
}

// Loopback is an in-process device that plays the client output back into
// its input.
type Loopback struct {
	cfg LoopbackConfig

	mu         sync.Mutex
	process    ProcessFunc
	latency    LatencyFunc
	shutdown   func()
	registered bool
	clk        *clock

	active       atomic.Bool
	connectedIn  atomic.Bool
	connectedOut atomic.Bool
	shutdownOnce sync.Once

	// owned by the cycle
	frame   uint64
	in      *Buffer
	out     *Buffer
	pending []pendingEvent
	rng     *rand.Rand
	lost    atomic.Uint64
}

var _ Client = (*Loopback)(nil)

// NewLoopback creates an inactive loopback device.
func NewLoopback(cfg LoopbackConfig) *Loopback {
	if cfg.Name == "" {
		cfg.Name = defaultClientName
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = defaultBufferSize
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &Loopback{
		cfg:     cfg,
		in:      NewBuffer(maxPortEvents, maxPortBytes),
		out:     NewBuffer(maxPortEvents, maxPortBytes),
		pending: make([]pendingEvent, 0, maxPending),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (l *Loopback) Name() string       { return l.cfg.Name }
func (l *Loopback) SampleRate() uint32 { return l.cfg.SampleRate }
func (l *Loopback) BufferSize() uint32 { return l.cfg.BufferSize }

func (l *Loopback) SetProcessCallback(fn ProcessFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.process = fn
}

func (l *Loopback) SetLatencyCallback(fn LatencyFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.latency = fn
}

func (l *Loopback) OnShutdown(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdown = fn
}

func (l *Loopback) RegisterPorts() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered = true
	return nil
}

func (l *Loopback) PortName(dir PortDirection) string {
	return portName(l.cfg.Name, dir)
}

// Activate negotiates port latencies and starts the period clock.
func (l *Loopback) Activate(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.registered {
		return ErrNotRegistered
	}
	if l.process == nil {
		return ErrNoProcessCallback
	}
	if l.active.Load() {
		return nil
	}

	l.negotiateLocked()
	l.active.Store(true)

	if !l.cfg.ManualClock {
		period := periodDuration(l.cfg.BufferSize, l.cfg.SampleRate)
		l.clk = startClock(ctx, period, l.cycle, l.fault)
	}
	return nil
}

// SetPortLatency changes the reported port latency and renegotiates.
func (l *Loopback) SetPortLatency(ticks int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.PortLatency = ticks
	if l.active.Load() {
		l.negotiateLocked()
	}
}

func (l *Loopback) negotiateLocked() {
	if l.latency == nil {
		return
	}
	r := LatencyRange{Min: l.cfg.PortLatency, Max: l.cfg.PortLatency}
	l.latency(CaptureLatency, r)
	l.latency(PlaybackLatency, r)
}

// Connect links the device ports with the client ports. Only the two
// cable directions are accepted.
func (l *Loopback) Connect(src, dst string) error {
	switch {
	case src == LoopbackCapture && dst == l.PortName(PortInput):
		l.connectedIn.Store(true)
	case src == l.PortName(PortOutput) && dst == LoopbackPlayback:
		l.connectedOut.Store(true)
	default:
		return fmt.Errorf("cannot connect port %s to %s: %w", src, dst, ErrUnknownPort)
	}
	return nil
}

// Step runs one period synchronously. It is meant for a ManualClock device
// and must not be called while a clock is running.
func (l *Loopback) Step() error {
	if !l.active.Load() {
		return ErrNotActive
	}
	l.cycle()
	return nil
}

// Lost returns the number of events dropped by the cable.
func (l *Loopback) Lost() uint64 {
	return l.lost.Load()
}

func (l *Loopback) Deactivate() error {
	l.mu.Lock()
	clk := l.clk
	l.clk = nil
	l.mu.Unlock()

	clk.stop()
	l.active.Store(false)
	return nil
}

func (l *Loopback) Close() error {
	return l.Deactivate()
}

// Kill simulates the device disappearing underneath an active client.
func (l *Loopback) Kill() {
	l.fault(fmt.Errorf("device killed"))
}

func (l *Loopback) fault(error) {
	l.active.Store(false)
	l.mu.Lock()
	fn := l.shutdown
	l.mu.Unlock()
	if fn != nil {
		l.shutdownOnce.Do(fn)
	}
}

// cycle delivers due events, runs the process callback, and puts the
// output on the cable.
func (l *Loopback) cycle() {
	nframes := l.cfg.BufferSize
	start := l.frame
	end := start + uint64(nframes)

	l.deliver(start, end)

	l.out.Clear()
	l.process(nframes, l.in.Events(), l.out)

	if l.connectedOut.Load() && l.connectedIn.Load() {
		for _, ev := range l.out.Events() {
			l.transmit(start, ev)
		}
	}
	l.frame = end
}

// deliver moves events due before end into the input buffer, in time order.
func (l *Loopback) deliver(start, end uint64) {
	l.in.Clear()

	// Insertion sort by due time; pending is small and this avoids
	// allocating.
	p := l.pending
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p[j].due < p[j-1].due; j-- {
			p[j], p[j-1] = p[j-1], p[j]
		}
	}

	kept := p[:0]
	for _, ev := range p {
		if ev.due >= end {
			kept = append(kept, ev)
			continue
		}
		var offset uint32
		if ev.due > start {
			offset = uint32(ev.due - start)
		}
		if !l.in.Put(offset, ev.data[:ev.size]) {
			l.lost.Add(1)
		}
	}
	l.pending = kept
}

func (l *Loopback) transmit(start uint64, ev Event) {
	if l.cfg.Loss > 0 && l.rng.Float64() < l.cfg.Loss {
		l.lost.Add(1)
		return
	}
	if len(l.pending) == cap(l.pending) || len(ev.Data) > len(pendingEvent{}.data) {
		l.lost.Add(1)
		return
	}

	due := int64(start) + int64(ev.Time) + int64(l.cfg.Delay)
	if l.cfg.Jitter > 0 {
		due += l.rng.Int63n(2*int64(l.cfg.Jitter)+1) - int64(l.cfg.Jitter)
	}
	if floor := int64(start) + int64(ev.Time); due < floor {
		due = floor
	}

	pe := pendingEvent{due: uint64(due), size: len(ev.Data)}
	copy(pe.data[:], ev.Data)
	l.pending = append(l.pending, pe)
}
