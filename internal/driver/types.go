package driver

import (
	"context"
	"errors"
)

var (
	// ErrNotActive is returned by operations that need an activated client.
	ErrNotActive = errors.New("driver: client not active")
	// ErrNotRegistered is returned by Activate before RegisterPorts.
	ErrNotRegistered = errors.New("driver: ports not registered")
	// ErrUnknownPort is returned by Connect for ports the device does not have.
	ErrUnknownPort = errors.New("driver: unknown port")
	// ErrNoProcessCallback is returned by Activate when no callback was set.
	ErrNoProcessCallback = errors.New("driver: no process callback")
)

// Event is one timestamped record in a port buffer. Time is the offset in
// ticks from the start of the current period.
type Event struct {
	Time uint32
	Data []byte
}

// ProcessFunc is invoked once per period with the period length, the events
// captured on the input port, and the buffer of the output port.
type ProcessFunc func(nframes uint32, in []Event, out *Buffer)

// LatencyMode selects which direction a latency range describes.
type LatencyMode int

const (
	CaptureLatency LatencyMode = iota
	PlaybackLatency
)

func (m LatencyMode) String() string {
	if m == CaptureLatency {
		return "capture"
	}
	return "playback"
}

// LatencyRange is a one-way latency in ticks. Both ends are -1 until known.
type LatencyRange struct {
	Min int32 `json:"min" yaml:"min"`
	Max int32 `json:"max" yaml:"max"`
}

// UnknownLatency is the range reported before negotiation completes.
var UnknownLatency = LatencyRange{Min: -1, Max: -1}

// LatencyFunc receives the negotiated latency of one direction.
type LatencyFunc func(mode LatencyMode, r LatencyRange)

// PortDirection distinguishes the client's two ports.
type PortDirection int

const (
	PortInput PortDirection = iota
	PortOutput
)

// Client is the realtime scheduling collaborator.
type Client interface {
	// Name returns the client name the ports are registered under.
	Name() string
	SampleRate() uint32
	BufferSize() uint32
	SetProcessCallback(ProcessFunc)
	SetLatencyCallback(LatencyFunc)
	// OnShutdown registers a function called once if the device goes away
	// while active.
	OnShutdown(func())
	RegisterPorts() error
	Activate(ctx context.Context) error
	// Connect links a source port to a destination port.
	Connect(src, dst string) error
	PortName(dir PortDirection) string
	Deactivate() error
	Close() error
}

const (
	defaultSampleRate = 48000
	defaultBufferSize = 256
	defaultClientName = "midilat"
	maxPortEvents     = 64
	maxPortBytes      = 1024
	maxPending        = 1024
)

func portName(client string, dir PortDirection) string {
	if dir == PortInput {
		return client + ":in"
	}
	return client + ":out"
}
