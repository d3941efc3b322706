package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/torosent/midilat/internal/emitter"
)

// State is the consumer loop state.
type State int32

const (
	StateWaiting State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason tells why the loop stopped.
type StopReason string

const (
	StopLimit    StopReason = "limit"
	StopShutdown StopReason = "shutdown"
)

// Result captures execution summary.
type Result struct {
	Samples  int64
	Duration time.Duration
	Reason   StopReason
}

// Runner drains the sample queue on every wake-up until the sample limit is
// reached or shutdown is requested.
type Runner struct {
	opt      Options
	state    atomic.Int32
	recorded atomic.Int64
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// State returns the current loop state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Samples returns the number of samples recorded so far.
func (r *Runner) Samples() int64 {
	return r.recorded.Load()
}

// Run executes the loop on the calling goroutine. Shutdown, from the
// notifier or ctx, and the sample limit are checked after each complete
// drain, never in the middle of one. A wake-up that finds nothing queued
// simply waits again.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	record := func(s emitter.Sample) {
		r.opt.Recorder.Record(s)
		r.recorded.Add(1)
	}

	var reason StopReason
	for {
		r.setState(StateDraining)
		r.opt.Queue.Drain(record)

		if r.opt.Notifier.IsShutdown() || ctx.Err() != nil {
			reason = StopShutdown
			break
		}
		if r.opt.SampleLimit > 0 && r.recorded.Load() >= int64(r.opt.SampleLimit) {
			reason = StopLimit
			break
		}

		r.setState(StateWaiting)
		// Any wake-up error means shutdown or cancellation; the next pass
		// drains what is left and observes it.
		_ = r.opt.Notifier.Wait(ctx)
	}

	r.setState(StateStopped)
	return Result{
		Samples:  r.recorded.Load(),
		Duration: time.Since(start),
		Reason:   reason,
	}
}

func (r *Runner) setState(s State) {
	if State(r.state.Swap(int32(s))) == s {
		return
	}
	if r.opt.OnStateChange != nil {
		r.opt.OnStateChange(s)
	}
}
