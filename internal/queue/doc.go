// Package queue carries timing samples from the realtime callback to the
// consumer goroutine.
//
// Two primitives make up the transfer channel:
//   - [Ring]: a fixed-capacity single-producer/single-consumer ring buffer.
//     [Ring.TryPush] never blocks and drops the value when the ring is full.
//     [Ring.Drain] pops every queued value in FIFO order in one pass.
//   - [Notifier]: a coalescing wake-up signal. [Notifier.TrySignal] never
//     blocks; [Notifier.Wait] parks the consumer until a signal arrives or
//     [Notifier.Shutdown] is called.
//
// Typical wiring:
//
//	ring, _ := queue.NewRing[emitter.Sample](20)
//	notify := queue.NewNotifier()
//
//	// realtime side
//	if ring.TryPush(s) {
//		notify.TrySignal()
//	}
//
//	// consumer side
//	for notify.Wait(ctx) == nil {
//		ring.Drain(record)
//	}
//
// Exactly one goroutine may push and exactly one may drain.
package queue
