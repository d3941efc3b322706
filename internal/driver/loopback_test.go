package driver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/torosent/midilat/internal/driver"
	"github.com/torosent/midilat/internal/emitter"
	"github.com/torosent/midilat/internal/queue"
)

type received struct {
	period int
	time   uint32
	data   []byte
}

// pinger writes payload once, in the first period, and records every input
// event together with the period it arrived in.
type pinger struct {
	payload []byte
	period  int
	got     []received
}

func (p *pinger) process(nframes uint32, in []driver.Event, out *driver.Buffer) {
	if p.period == 0 {
		out.Put(0, p.payload)
	}
	for _, ev := range in {
		p.got = append(p.got, received{period: p.period, time: ev.Time, data: append([]byte(nil), ev.Data...)})
	}
	p.period++
}

func activeLoopback(t *testing.T, cfg driver.LoopbackConfig, fn driver.ProcessFunc, connect bool) *driver.Loopback {
	t.Helper()
	cfg.ManualClock = true
	l := driver.NewLoopback(cfg)
	l.SetProcessCallback(fn)
	if err := l.RegisterPorts(); err != nil {
		t.Fatal(err)
	}
	if err := l.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	if connect {
		if err := l.Connect(driver.LoopbackCapture, l.PortName(driver.PortInput)); err != nil {
			t.Fatal(err)
		}
		if err := l.Connect(l.PortName(driver.PortOutput), driver.LoopbackPlayback); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func stepN(t *testing.T, l *driver.Loopback, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := l.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestLoopbackDeliversAfterDelay(t *testing.T) {
	p := &pinger{payload: []byte{0xF2, 0x01, 0x02}}
	l := activeLoopback(t, driver.LoopbackConfig{BufferSize: 256, Delay: 300}, p.process, true)

	stepN(t, l, 4)

	if len(p.got) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(p.got))
	}
	ev := p.got[0]
	if ev.period != 1 || ev.time != 44 {
		t.Fatalf("delivered in period %d at %d, want period 1 at 44", ev.period, ev.time)
	}
	if string(ev.data) != string(p.payload) {
		t.Fatalf("payload = %x, want %x", ev.data, p.payload)
	}
}

func TestLoopbackUnconnectedIsSilent(t *testing.T) {
	p := &pinger{payload: []byte{0xF2, 0x01, 0x02}}
	l := activeLoopback(t, driver.LoopbackConfig{BufferSize: 64, Delay: 10}, p.process, false)

	// Only the input side is connected: nothing reaches the cable.
	if err := l.Connect(driver.LoopbackCapture, l.PortName(driver.PortInput)); err != nil {
		t.Fatal(err)
	}
	stepN(t, l, 5)
	if len(p.got) != 0 {
		t.Fatalf("expected silence, got %d events", len(p.got))
	}
}

func TestLoopbackConnectRejectsUnknownPorts(t *testing.T) {
	l := driver.NewLoopback(driver.LoopbackConfig{Name: "meter"})

	tests := []struct{ src, dst string }{
		{"system:capture_1", "meter:in"},
		{"meter:out", "system:playback_1"},
		{driver.LoopbackPlayback, "meter:in"},
		{driver.LoopbackCapture, "meter:out"},
	}
	for _, tt := range tests {
		err := l.Connect(tt.src, tt.dst)
		if !errors.Is(err, driver.ErrUnknownPort) {
			t.Errorf("Connect(%q, %q) = %v, want ErrUnknownPort", tt.src, tt.dst, err)
		}
	}
}

func TestLoopbackActivateRequirements(t *testing.T) {
	l := driver.NewLoopback(driver.LoopbackConfig{ManualClock: true})
	if err := l.Activate(context.Background()); !errors.Is(err, driver.ErrNotRegistered) {
		t.Fatalf("Activate before RegisterPorts = %v", err)
	}
	if err := l.RegisterPorts(); err != nil {
		t.Fatal(err)
	}
	if err := l.Activate(context.Background()); !errors.Is(err, driver.ErrNoProcessCallback) {
		t.Fatalf("Activate without callback = %v", err)
	}
	if err := l.Step(); !errors.Is(err, driver.ErrNotActive) {
		t.Fatalf("Step on inactive device = %v", err)
	}
}

func TestLoopbackLatencyNegotiation(t *testing.T) {
	type call struct {
		mode driver.LatencyMode
		r    driver.LatencyRange
	}
	var calls []call

	l := driver.NewLoopback(driver.LoopbackConfig{PortLatency: 128, ManualClock: true})
	l.SetProcessCallback(func(uint32, []driver.Event, *driver.Buffer) {})
	l.SetLatencyCallback(func(mode driver.LatencyMode, r driver.LatencyRange) {
		calls = append(calls, call{mode, r})
	})
	if err := l.RegisterPorts(); err != nil {
		t.Fatal(err)
	}
	if err := l.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	want := driver.LatencyRange{Min: 128, Max: 128}
	if len(calls) != 2 || calls[0] != (call{driver.CaptureLatency, want}) || calls[1] != (call{driver.PlaybackLatency, want}) {
		t.Fatalf("negotiation calls = %+v", calls)
	}

	l.SetPortLatency(32)
	if len(calls) != 4 || calls[3].r != (driver.LatencyRange{Min: 32, Max: 32}) {
		t.Fatalf("renegotiation calls = %+v", calls)
	}
}

func TestLoopbackKillRunsShutdownOnce(t *testing.T) {
	l := activeLoopback(t, driver.LoopbackConfig{}, func(uint32, []driver.Event, *driver.Buffer) {}, true)

	count := 0
	l.OnShutdown(func() { count++ })
	l.Kill()
	l.Kill()

	if count != 1 {
		t.Fatalf("shutdown ran %d times, want 1", count)
	}
	if err := l.Step(); !errors.Is(err, driver.ErrNotActive) {
		t.Fatalf("Step after kill = %v", err)
	}
}

func TestLoopbackLoss(t *testing.T) {
	p := &pinger{payload: []byte{0xF2, 0x01, 0x02}}
	l := activeLoopback(t, driver.LoopbackConfig{BufferSize: 64, Delay: 10, Loss: 1}, p.process, true)

	stepN(t, l, 3)
	if len(p.got) != 0 {
		t.Fatalf("expected every event lost, got %d", len(p.got))
	}
	if l.Lost() != 1 {
		t.Fatalf("lost = %d, want 1", l.Lost())
	}
}

func TestLoopbackWithEmitter(t *testing.T) {
	tests := []struct {
		name   string
		cfg    driver.LoopbackConfig
		lo, hi int64
	}{
		{name: "fixed delay", cfg: driver.LoopbackConfig{BufferSize: 256, Delay: 300}, lo: 300, hi: 300},
		{name: "jitter", cfg: driver.LoopbackConfig{BufferSize: 256, Delay: 400, Jitter: 50, Seed: 7}, lo: 350, hi: 450},
		{name: "sub-period delay quantizes to one period", cfg: driver.LoopbackConfig{BufferSize: 128, Delay: 20}, lo: 128, hi: 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ring, err := queue.NewRing[emitter.Sample](64)
			if err != nil {
				t.Fatal(err)
			}
			em := emitter.New(ring, queue.NewNotifier())
			l := activeLoopback(t, tt.cfg, em.Process, true)

			stepN(t, l, 20)

			var samples []emitter.Sample
			ring.Drain(func(s emitter.Sample) { samples = append(samples, s) })
			if len(samples) < 15 {
				t.Fatalf("expected at least 15 samples, got %d", len(samples))
			}
			for _, s := range samples {
				if s.Delay < tt.lo || s.Delay > tt.hi {
					t.Fatalf("delay %d outside [%d, %d]", s.Delay, tt.lo, tt.hi)
				}
				if s.Period != tt.cfg.BufferSize {
					t.Fatalf("period = %d, want %d", s.Period, tt.cfg.BufferSize)
				}
			}
		})
	}
}

func TestLoopbackRunsOnClock(t *testing.T) {
	ring, err := queue.NewRing[emitter.Sample](64)
	if err != nil {
		t.Fatal(err)
	}
	n := queue.NewNotifier()
	em := emitter.New(ring, n)

	l := driver.NewLoopback(driver.LoopbackConfig{SampleRate: 48000, BufferSize: 48, Delay: 60})
	l.SetProcessCallback(em.Process)
	if err := l.RegisterPorts(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Activate(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	_ = l.Connect(driver.LoopbackCapture, l.PortName(driver.PortInput))
	_ = l.Connect(l.PortName(driver.PortOutput), driver.LoopbackPlayback)

	if err := n.Wait(ctx); err != nil {
		t.Fatalf("no sample before deadline: %v", err)
	}
	var got emitter.Sample
	ring.Drain(func(s emitter.Sample) { got = s })
	if got.Delay != 60 {
		t.Fatalf("delay = %d, want 60", got.Delay)
	}
}
