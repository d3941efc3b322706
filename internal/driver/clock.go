package driver

import (
	"context"
	"fmt"
	"time"
)

// clock runs a cycle function once per period on a dedicated goroutine.
type clock struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// periodDuration converts a period in ticks to wall time.
func periodDuration(bufferSize, sampleRate uint32) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	return time.Duration(uint64(bufferSize) * uint64(time.Second) / uint64(sampleRate))
}

// startClock starts ticking. A panic inside cycle stops the clock and is
// reported to onFault; the process is not taken down with it.
func startClock(ctx context.Context, period time.Duration, cycle func(), onFault func(error)) *clock {
	ctx, cancel := context.WithCancel(ctx)
	c := &clock{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(c.done)
		defer func() {
			if r := recover(); r != nil && onFault != nil {
				onFault(fmt.Errorf("process cycle panicked: %v", r))
			}
		}()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cycle()
			}
		}
	}()

	return c
}

// stop halts the clock and waits for the in-flight cycle to finish.
func (c *clock) stop() {
	if c == nil {
		return
	}
	c.cancel()
	<-c.done
}
