package main

import (
	"net/http"
	"sort"
	"time"

	"github.com/torosent/midilat/internal/config"
	"github.com/torosent/midilat/internal/driver"
	"github.com/torosent/midilat/internal/websocket"
)

// lossReporter is implemented by devices that can lose events in transit.
type lossReporter interface {
	Lost() uint64
}

// dropReporter is implemented by devices with bounded transfer queues.
type dropReporter interface {
	Dropped() uint64
}

// trafficReporter is implemented by devices backed by network connections.
type trafficReporter interface {
	Traffic() map[string]websocket.Metrics
}

// newClient builds the device selected by cfg. headers are sent with
// WebSocket handshakes.
func newClient(cfg *config.Config, headers http.Header) driver.Client {
	switch cfg.Backend {
	case config.BackendWebSocket:
		return driver.NewWebSocket(driver.WebSocketConfig{
			SampleRate:       uint32(cfg.SampleRate),
			BufferSize:       uint32(cfg.Period),
			HandshakeTimeout: cfg.HandshakeTimeout,
			Headers:          headers,
		})
	default:
		return driver.NewLoopback(driver.LoopbackConfig{
			SampleRate:  uint32(cfg.SampleRate),
			BufferSize:  uint32(cfg.Period),
			Delay:       uint32(cfg.Loop.Delay),
			Jitter:      uint32(cfg.Loop.Jitter),
			Loss:        cfg.Loop.Loss,
			Seed:        cfg.Loop.Seed,
			PortLatency: int32(cfg.Loop.PortLatency),
		})
	}
}

// connectPorts links the configured targets to the client ports. A failed
// connection is logged and the run continues, so the ports can still be
// wired by hand.
func connectPorts(client driver.Client, cfg *config.Config, log *stderrLogger) {
	if cfg.Input != "" {
		in := client.PortName(driver.PortInput)
		if err := client.Connect(cfg.Input, in); err != nil {
			log.Printf("cannot connect input port %s to %s: %v", cfg.Input, in, err)
		}
	}
	if cfg.Output != "" {
		out := client.PortName(driver.PortOutput)
		if err := client.Connect(out, cfg.Output); err != nil {
			log.Printf("cannot connect output port %s to %s: %v", out, cfg.Output, err)
		}
	}
}

// reportTransit logs what the device lost in transit and its connection
// traffic.
func reportTransit(client driver.Client, log *stderrLogger) {
	if lr, ok := client.(lossReporter); ok {
		if n := lr.Lost(); n > 0 {
			log.Printf("loopback lost %d events in transit", n)
		}
	}
	if dr, ok := client.(dropReporter); ok {
		if n := dr.Dropped(); n > 0 {
			log.Printf("device dropped %d frames", n)
		}
	}
	if tr, ok := client.(trafficReporter); ok {
		traffic := tr.Traffic()
		urls := make([]string, 0, len(traffic))
		for url := range traffic {
			urls = append(urls, url)
		}
		sort.Strings(urls)
		for _, url := range urls {
			m := traffic[url]
			log.Printf("%s: %d frames sent, %d received, %d errors in %s",
				url, m.FramesSent, m.FramesReceived, m.Errors, m.ConnectionDuration.Round(time.Millisecond))
		}
	}
}
