package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/midilat/internal/websocket"
)

// WebSocketConfig describes a WebSocket echo device.
type WebSocketConfig struct {
	Name             string
	SampleRate       uint32
	BufferSize       uint32
	HandshakeTimeout time.Duration
	Headers          http.Header // sent with every handshake
	ManualClock      bool
}

type frame struct {
	size int
	data [8]byte
}

type wsEndpoint struct {
	client  *websocket.Client
	reading bool
	writing bool
}

// WebSocket loops events through a remote echo endpoint. Output events are
// sent as binary frames to the URL the output port is connected to; frames
// read from the URL connected to the input port are delivered at offset 0
// of the next period.
type WebSocket struct {
	cfg WebSocketConfig

	mu         sync.Mutex
	process    ProcessFunc
	latency    LatencyFunc
	shutdown   func()
	registered bool
	clk        *clock
	ctx        context.Context
	cancel     context.CancelFunc
	endpoints  map[string]*wsEndpoint
	wg         sync.WaitGroup

	active       atomic.Bool
	sending      atomic.Bool
	shutdownOnce sync.Once

	sendCh  chan frame
	inboxMu sync.Mutex
	inbox   []frame

	// owned by the cycle
	in      *Buffer
	out     *Buffer
	dropped atomic.Uint64
}

var _ Client = (*WebSocket)(nil)

// NewWebSocket creates an inactive WebSocket device.
func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	if cfg.Name == "" {
		cfg.Name = defaultClientName
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = defaultBufferSize
	}
	return &WebSocket{
		cfg:       cfg,
		endpoints: make(map[string]*wsEndpoint),
		sendCh:    make(chan frame, maxPending),
		inbox:     make([]frame, 0, maxPending),
		in:        NewBuffer(maxPortEvents, maxPortBytes),
		out:       NewBuffer(maxPortEvents, maxPortBytes),
	}
}

func (w *WebSocket) Name() string       { return w.cfg.Name }
func (w *WebSocket) SampleRate() uint32 { return w.cfg.SampleRate }
func (w *WebSocket) BufferSize() uint32 { return w.cfg.BufferSize }

func (w *WebSocket) SetProcessCallback(fn ProcessFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.process = fn
}

func (w *WebSocket) SetLatencyCallback(fn LatencyFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.latency = fn
}

func (w *WebSocket) OnShutdown(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdown = fn
}

func (w *WebSocket) RegisterPorts() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.registered = true
	return nil
}

func (w *WebSocket) PortName(dir PortDirection) string {
	return portName(w.cfg.Name, dir)
}

// Activate starts the period clock. The device reports zero port latency:
// transit time over the network is what is being measured.
func (w *WebSocket) Activate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.registered {
		return ErrNotRegistered
	}
	if w.process == nil {
		return ErrNoProcessCallback
	}
	if w.active.Load() {
		return nil
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	if w.latency != nil {
		w.latency(CaptureLatency, LatencyRange{})
		w.latency(PlaybackLatency, LatencyRange{})
	}
	w.active.Store(true)

	if !w.cfg.ManualClock {
		period := periodDuration(w.cfg.BufferSize, w.cfg.SampleRate)
		w.clk = startClock(w.ctx, period, w.cycle, w.fault)
	}
	return nil
}

// Connect dials the URL on the other side of the port. Connecting a URL to
// the input port starts reading from it; connecting the output port to a URL
// starts sending to it. Both may name the same URL.
func (w *WebSocket) Connect(src, dst string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.active.Load() {
		return ErrNotActive
	}

	switch {
	case dst == w.PortName(PortInput):
		ep, err := w.endpointLocked(src)
		if err != nil {
			return fmt.Errorf("cannot connect port %s to %s: %w", src, dst, err)
		}
		if !ep.reading {
			ep.reading = true
			w.wg.Add(1)
			go w.readLoop(ep.client)
		}
	case src == w.PortName(PortOutput):
		ep, err := w.endpointLocked(dst)
		if err != nil {
			return fmt.Errorf("cannot connect port %s to %s: %w", src, dst, err)
		}
		if !ep.writing {
			ep.writing = true
			w.wg.Add(1)
			go w.writeLoop(ep.client)
			w.sending.Store(true)
		}
	default:
		return fmt.Errorf("cannot connect port %s to %s: %w", src, dst, ErrUnknownPort)
	}
	return nil
}

func (w *WebSocket) endpointLocked(url string) (*wsEndpoint, error) {
	if ep, ok := w.endpoints[url]; ok {
		return ep, nil
	}
	client := websocket.NewClient(websocket.Config{
		URL:              url,
		Headers:          w.cfg.Headers,
		HandshakeTimeout: w.cfg.HandshakeTimeout,
	})
	if err := client.Connect(w.ctx); err != nil {
		return nil, err
	}
	ep := &wsEndpoint{client: client}
	w.endpoints[url] = ep
	return ep, nil
}

func (w *WebSocket) readLoop(client *websocket.Client) {
	defer w.wg.Done()
	for {
		data, err := client.Receive()
		if err != nil {
			if w.ctx.Err() == nil {
				w.fault(err)
			}
			return
		}
		var f frame
		if len(data) > len(f.data) {
			w.dropped.Add(1)
			continue
		}
		f.size = copy(f.data[:], data)

		w.inboxMu.Lock()
		if len(w.inbox) < cap(w.inbox) {
			w.inbox = append(w.inbox, f)
		} else {
			w.dropped.Add(1)
		}
		w.inboxMu.Unlock()
	}
}

func (w *WebSocket) writeLoop(client *websocket.Client) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case f := <-w.sendCh:
			if err := client.Send(f.data[:f.size]); err != nil {
				if w.ctx.Err() == nil {
					w.fault(err)
				}
				return
			}
		}
	}
}

// Step runs one period synchronously on a ManualClock device.
func (w *WebSocket) Step() error {
	if !w.active.Load() {
		return ErrNotActive
	}
	w.cycle()
	return nil
}

// Dropped returns the number of frames lost to full queues.
func (w *WebSocket) Dropped() uint64 {
	return w.dropped.Load()
}

// Traffic returns the transfer counters of every open connection, keyed by
// URL.
func (w *WebSocket) Traffic() map[string]websocket.Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]websocket.Metrics, len(w.endpoints))
	for url, ep := range w.endpoints {
		out[url] = ep.client.Metrics()
	}
	return out
}

func (w *WebSocket) cycle() {
	w.in.Clear()
	// Skip delivery this period if the reader holds the inbox; the frames
	// wait for the next one.
	if w.inboxMu.TryLock() {
		n := 0
		for n < len(w.inbox) && w.in.Put(0, w.inbox[n].data[:w.inbox[n].size]) {
			n++
		}
		rest := copy(w.inbox, w.inbox[n:])
		w.inbox = w.inbox[:rest]
		w.inboxMu.Unlock()
	}

	w.out.Clear()
	w.process(w.cfg.BufferSize, w.in.Events(), w.out)

	if !w.sending.Load() {
		return
	}
	for _, ev := range w.out.Events() {
		var f frame
		if len(ev.Data) > len(f.data) {
			w.dropped.Add(1)
			continue
		}
		f.size = copy(f.data[:], ev.Data)
		select {
		case w.sendCh <- f:
		default:
			w.dropped.Add(1)
		}
	}
}

func (w *WebSocket) fault(err error) {
	w.active.Store(false)
	w.mu.Lock()
	fn := w.shutdown
	w.mu.Unlock()
	if fn != nil {
		w.shutdownOnce.Do(fn)
	}
}

func (w *WebSocket) Deactivate() error {
	w.mu.Lock()
	clk := w.clk
	w.clk = nil
	cancel := w.cancel
	endpoints := w.endpoints
	w.endpoints = make(map[string]*wsEndpoint)
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	clk.stop()
	w.active.Store(false)
	w.sending.Store(false)

	var errs []error
	for _, ep := range endpoints {
		if err := ep.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	w.wg.Wait()
	return errors.Join(errs...)
}

func (w *WebSocket) Close() error {
	return w.Deactivate()
}
