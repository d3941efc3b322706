package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/torosent/midilat/internal/threshold"
)

func TestPrintThresholdResults(t *testing.T) {
	results := []threshold.Result{
		{Threshold: threshold.Threshold{Raw: "latency_ms:p99 < 10"}, Actual: 7.5, Pass: true},
		{Threshold: threshold.Threshold{Raw: "markers_dropped:count == 0"}, Actual: 3, Pass: false},
		{Threshold: threshold.Threshold{Raw: "samples:p99 < 1"}, Pass: false, Message: "error: unsupported aggregate"},
	}

	var buf bytes.Buffer
	PrintThresholdResults(&buf, results)
	out := buf.String()

	for _, want := range []string{"latency_ms:p99 < 10", "7.500", "PASS", "FAIL", "error: unsupported aggregate", "1 of 3 thresholds passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintThresholdResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintThresholdResults(&buf, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}
