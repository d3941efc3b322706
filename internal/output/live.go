package output

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/midilat/internal/emitter"
)

// DefaultLiveInterval is the minimum time between two live line updates.
const DefaultLiveInterval = 50 * time.Millisecond

// LiveLine prints the latest sample on a single line overwritten with \r.
// Updates are rate limited so terminal output never falls behind the
// sample stream; skipped samples are still recorded elsewhere.
type LiveLine struct {
	writer     io.Writer
	sampleRate uint32
	expected   func(period uint32) int64
	limiter    *rate.Limiter
}

// NewLiveLine creates a live line writer. expected returns the latency the
// device itself accounts for at a given period length.
func NewLiveLine(w io.Writer, sampleRate uint32, expected func(period uint32) int64, interval time.Duration) *LiveLine {
	if w == nil {
		w = io.Discard
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &LiveLine{
		writer:     w,
		sampleRate: sampleRate,
		expected:   expected,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Record implements runner.Recorder.
func (l *LiveLine) Record(s emitter.Sample) {
	if !l.limiter.Allow() {
		return
	}
	fmt.Fprint(l.writer, l.format(s))
}

func (l *LiveLine) format(s emitter.Sample) string {
	var ms float64
	if l.sampleRate > 0 {
		ms = float64(s.Delay) * 1000 / float64(l.sampleRate)
	}
	var expected int64
	if l.expected != nil {
		expected = l.expected(s.Period)
	}
	return fmt.Sprintf("roundtrip latency: %5d frames = %6.2fms || non-device: %5d frames         \r",
		s.Delay, ms, s.Delay-expected)
}
