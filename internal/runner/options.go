package runner

import (
	"context"

	"github.com/torosent/midilat/internal/emitter"
)

// Recorder consumes drained samples.
type Recorder interface {
	Record(emitter.Sample)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(emitter.Sample)

func (f RecorderFunc) Record(s emitter.Sample) { f(s) }

// Source is the consumer side of the sample queue.
type Source interface {
	Drain(fn func(emitter.Sample)) int
}

// Waiter blocks the consumer until samples may be available.
type Waiter interface {
	Wait(ctx context.Context) error
	IsShutdown() bool
}

// Options configure the Runner.
type Options struct {
	Queue         Source      // sample queue (required)
	Notifier      Waiter      // wake-up source (required)
	Recorder      Recorder    // receives every drained sample
	SampleLimit   int         // stop after this many samples (<= 0 means unlimited)
	OnStateChange func(State) // optional, called on every transition
}

func (o *Options) normalize() {
	if o.SampleLimit < 0 {
		o.SampleLimit = 0
	}
	if o.Recorder == nil {
		o.Recorder = RecorderFunc(func(emitter.Sample) {})
	}
}

type chain []Recorder

func (c chain) Record(s emitter.Sample) {
	for _, r := range c {
		r.Record(s)
	}
}

// Chain returns a Recorder passing every sample to each non-nil recorder in
// order.
func Chain(recorders ...Recorder) Recorder {
	out := make(chain, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
