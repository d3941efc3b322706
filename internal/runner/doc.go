// Package runner provides the consumer loop of a latency measurement.
//
// The realtime callback pushes samples into a lock-free queue and posts a
// non-blocking wake-up. The runner owns the other end: it waits for a
// wake-up, drains every queued sample into a [Recorder], then checks
// whether to stop.
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Queue:       ring,
//		Notifier:    notifier,
//		Recorder:    runner.Chain(collector, liveLine),
//		SampleLimit: 1000,
//	})
//	result := r.Run(ctx)
//
// # States
//
// The loop moves between [StateWaiting] and [StateDraining] and ends in
// [StateStopped]. It stops when the sample limit is reached or when
// shutdown is requested through the notifier or ctx. Both conditions are
// checked only after a drain completes, so every sample taken off the queue
// is recorded.
//
// # Recorders
//
// [Chain] fans each sample out to several recorders in order, the way
// middleware wraps a single handler.
package runner
