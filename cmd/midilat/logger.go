package main

import (
	"fmt"
	"io"
	"sync"
)

// stderrLogger prints tagged diagnostic lines. It is shared by the consumer,
// the device goroutines and the latency callback.
type stderrLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func newStderrLogger(w io.Writer) *stderrLogger {
	return &stderrLogger{w: w}
}

func (l *stderrLogger) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[midilat] "+format+"\n", args...)
}
