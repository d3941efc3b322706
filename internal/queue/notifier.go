package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrShutdown is returned by Wait once Shutdown has been called.
var ErrShutdown = errors.New("queue: shutdown")

// Notifier wakes a single waiting consumer.
//
// Signals coalesce: while one is pending, further TrySignal calls are
// skipped, and the consumer finds the data on its next drain anyway.
type Notifier struct {
	ready    chan struct{}
	done     chan struct{}
	once     sync.Once
	shutdown atomic.Bool
	skipped  atomic.Uint64
}

// NewNotifier returns a notifier with no pending signal.
func NewNotifier() *Notifier {
	return &Notifier{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// TrySignal posts a wake-up without blocking. It reports false when a signal
// was already pending.
func (n *Notifier) TrySignal() bool {
	select {
	case n.ready <- struct{}{}:
		return true
	default:
		n.skipped.Add(1)
		return false
	}
}

// Wait blocks until a signal is posted, Shutdown is called, or ctx is done.
// Shutdown takes precedence over a pending signal.
func (n *Notifier) Wait(ctx context.Context) error {
	if n.shutdown.Load() {
		return ErrShutdown
	}
	select {
	case <-n.ready:
		return nil
	case <-n.done:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown sets the shutdown flag and force-wakes the waiter. It is safe to
// call more than once and from any goroutine.
func (n *Notifier) Shutdown() {
	n.once.Do(func() {
		n.shutdown.Store(true)
		close(n.done)
	})
}

// IsShutdown reports whether Shutdown has been called.
func (n *Notifier) IsShutdown() bool {
	return n.shutdown.Load()
}

// Skipped returns how many signals were coalesced into a pending one.
func (n *Notifier) Skipped() uint64 {
	return n.skipped.Load()
}
