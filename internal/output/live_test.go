package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/torosent/midilat/internal/emitter"
)

func TestLiveLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLiveLine(&buf, 48000, func(period uint32) int64 { return 2 * int64(period) }, 0)

	l.Record(emitter.Sample{Delay: 600, Period: 256})
	out := buf.String()
	if !strings.HasPrefix(out, "roundtrip latency:   600 frames =  12.50ms || non-device:    88 frames") {
		t.Fatalf("unexpected line %q", out)
	}
	if !strings.HasSuffix(out, "\r") {
		t.Fatal("live line must end with a carriage return")
	}
}

func TestLiveLineThrottles(t *testing.T) {
	var buf bytes.Buffer
	l := NewLiveLine(&buf, 48000, nil, time.Hour)

	for i := 0; i < 100; i++ {
		l.Record(emitter.Sample{Delay: int64(i), Period: 64})
	}
	if n := strings.Count(buf.String(), "\r"); n != 1 {
		t.Fatalf("expected 1 update within the interval, got %d", n)
	}
}
