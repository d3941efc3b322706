// Package driver supplies the realtime scheduling side of a measurement: a
// period clock that invokes a process callback with fixed-size blocks of
// ticks, the event buffers of the two ports, latency negotiation, and the
// devices the signal is looped through.
//
// Two devices are provided:
//   - [Loopback]: an in-process cable that re-delivers every event written to
//     the playback port on the capture port after a configurable delay, with
//     optional jitter and loss.
//   - [WebSocket]: sends output events to a WebSocket echo endpoint and
//     delivers whatever comes back on the input port.
//
// Both implement [Client]. A client is opened, its callbacks are set, ports
// are registered, then it is activated and its ports are connected:
//
//	c := driver.NewLoopback(driver.LoopbackConfig{Delay: 300})
//	c.SetProcessCallback(em.Process)
//	c.SetLatencyCallback(onLatency)
//	if err := c.RegisterPorts(); err != nil { ... }
//	if err := c.Activate(ctx); err != nil { ... }
//	_ = c.Connect(driver.LoopbackCapture, c.PortName(driver.PortInput))
//	_ = c.Connect(c.PortName(driver.PortOutput), driver.LoopbackPlayback)
//	defer c.Close()
//
// The process callback runs on the clock goroutine. Devices never allocate or
// take a blocking lock around it.
package driver
