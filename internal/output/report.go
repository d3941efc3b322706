package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/midilat/internal/driver"
	"github.com/torosent/midilat/internal/emitter"
	"github.com/torosent/midilat/internal/metrics"
)

// maxBarWidth is the width of the tallest histogram bar.
const maxBarWidth = 50

// Report is everything the final summary shows.
type Report struct {
	Stats     metrics.Stats       `json:"stats" yaml:"stats"`
	Markers   emitter.Counters    `json:"markers" yaml:"markers"`
	Capture   driver.LatencyRange `json:"capture_latency" yaml:"capture_latency"`
	Playback  driver.LatencyRange `json:"playback_latency" yaml:"playback_latency"`
	Expected  int64               `json:"expected_ticks" yaml:"expected_ticks"`
	Histogram *metrics.Histogram  `json:"histogram,omitempty" yaml:"histogram,omitempty"`
}

// NonDevice returns the mean latency not accounted for by the negotiated
// port latencies, in ticks.
func (r Report) NonDevice() float64 {
	return r.Stats.Mean - float64(r.Expected)
}

// NonDeviceMs is NonDevice in milliseconds.
func (r Report) NonDeviceMs() float64 {
	return r.Stats.Time(r.NonDevice())
}

// ExpectedMs is Expected in milliseconds.
func (r Report) ExpectedMs() float64 {
	return r.Stats.Time(float64(r.Expected))
}

// ExpectedIsEstimate reports whether Expected is the period-based fallback
// rather than negotiated port latency.
func (r Report) ExpectedIsEstimate() bool {
	return r.Capture.Max < 0 || r.Playback.Max < 0 || r.Capture.Max+r.Playback.Max <= 0
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	s := r.Stats
	fmt.Fprintln(w, "\n--- Round-Trip Latency Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", s.RunID)
	fmt.Fprintf(w, "Samples:           %d\n", s.Samples)
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Sample Rate:       %d Hz\n", s.SampleRate)
	fmt.Fprintf(w, "Period:            %d frames = %.2fms\n", s.Period, s.Time(float64(s.Period)))

	fmt.Fprintln(w, "\nLatency:             frames          ms")
	fmt.Fprintf(w, "  Min:             %8d  %10.3f\n", s.Min, s.MinMs)
	fmt.Fprintf(w, "  Max:             %8d  %10.3f\n", s.Max, s.MaxMs)
	fmt.Fprintf(w, "  Range:           %8d  %10.3f\n", s.Range, s.RangeMs)
	fmt.Fprintf(w, "  Mean:            %8.1f  %10.3f\n", s.Mean, s.MeanMs)
	fmt.Fprintf(w, "  Std Dev:         %8.1f  %10.3f\n", s.StdDev, s.StdDevMs)
	fmt.Fprintf(w, "  P50:             %8d  %10.3f\n", s.P50, s.P50Ms)
	fmt.Fprintf(w, "  P90:             %8d  %10.3f\n", s.P90, s.P90Ms)
	fmt.Fprintf(w, "  P99:             %8d  %10.3f\n", s.P99, s.P99Ms)

	fmt.Fprintln(w, "\nMarkers:")
	fmt.Fprintf(w, "  Sent:            %d\n", r.Markers.Sent)
	fmt.Fprintf(w, "  Received:        %d\n", r.Markers.Received)
	fmt.Fprintf(w, "  Dropped:         %d\n", r.Markers.Dropped)
	if r.Markers.Ignored > 0 {
		fmt.Fprintf(w, "  Ignored:         %d\n", r.Markers.Ignored)
	}
	if r.Markers.Unsent > 0 {
		fmt.Fprintf(w, "  Unsent:          %d\n", r.Markers.Unsent)
	}

	fmt.Fprintln(w, "\nPort Latency:")
	fmt.Fprintf(w, "  Capture:         %s\n", formatRange(r.Capture))
	fmt.Fprintf(w, "  Playback:        %s\n", formatRange(r.Playback))
	note := ""
	if r.ExpectedIsEstimate() {
		note = " (estimated as 2 periods)"
	}
	fmt.Fprintf(w, "  Expected:        %d frames = %.2fms%s\n", r.Expected, r.ExpectedMs(), note)
	fmt.Fprintf(w, "  Non-device:      %.1f frames = %.2fms\n", r.NonDevice(), r.NonDeviceMs())

	if r.Histogram != nil {
		fmt.Fprintln(w)
		PrintHistogram(w, *r.Histogram, s.SampleRate)
	}
}

func formatRange(r driver.LatencyRange) string {
	if r == driver.UnknownLatency {
		return "unknown"
	}
	return fmt.Sprintf("[%d, %d] frames", r.Min, r.Max)
}

// PrintHistogram outputs one row per bucket with its tick and millisecond
// range, its count, and a bar scaled to the tallest bucket.
func PrintHistogram(w io.Writer, h metrics.Histogram, sampleRate uint32) {
	ms := func(ticks float64) float64 {
		if sampleRate == 0 {
			return 0
		}
		return ticks * 1000 / float64(sampleRate)
	}

	fmt.Fprintf(w, "Histogram (bin width %.1f frames = %.3fms):\n", h.Width, ms(h.Width))
	peak := h.Peak()
	for i, count := range h.Counts {
		lo, hi := h.Bounds(i)
		fmt.Fprintf(w, "  %8.1f - %8.1f  %8.3f - %8.3fms  %7d |%s\n",
			lo, hi, ms(lo), ms(hi), count, bar(count, peak))
	}
}

// bar scales count to maxBarWidth relative to peak. Any non-zero count gets
// at least one character.
func bar(count, peak uint64) string {
	if count == 0 || peak == 0 {
		return ""
	}
	n := int(count * maxBarWidth / peak)
	if n < 1 {
		n = 1
	}
	return strings.Repeat("#", n)
}

// PrintNoSignal reports a run in which no marker came back.
func PrintNoSignal(w io.Writer) {
	fmt.Fprintln(w, "\nNo signal detected: no marker was received during the run.")
	fmt.Fprintln(w, "Check that the output port is looped back to the input port (see -i and -o).")
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = w.Write(data)
	return err
}
