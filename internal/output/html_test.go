package output

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/torosent/midilat/internal/metrics"
	"github.com/torosent/midilat/internal/threshold"
)

func TestGenerateHTMLReport(t *testing.T) {
	now := time.Now()
	history := []metrics.Window{
		{Count: 10, Min: 250, Max: 350, Mean: 300, SampleRate: 48000, ClosedAt: now},
		{Count: 0, Mean: math.NaN(), SampleRate: 48000, ClosedAt: now.Add(time.Second)},
	}
	results := []threshold.Result{
		{Threshold: threshold.Threshold{Raw: "latency_ms:p99 < 10", Metric: "latency_ms", Aggregate: "p99", Operator: "<", Value: 10}, Actual: 7.9, Pass: true},
	}

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, sampleReport(), history, results); err != nil {
		t.Fatalf("GenerateHTMLReport failed: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"midilat Round-Trip Latency Report",
		"01HZY0000000000000000000AA",
		"latency-chart",
		"Thresholds (1/1 Passed)",
		`class="bar" style="width: 100.00%"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in HTML report", want)
		}
	}
	if strings.Contains(html, "NaN") {
		t.Error("empty window mean leaked into the chart data")
	}
}

func TestGenerateHTMLReportWithoutHistory(t *testing.T) {
	r := sampleReport()
	r.Histogram = nil

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, r, nil, nil); err != nil {
		t.Fatalf("GenerateHTMLReport failed: %v", err)
	}
	html := buf.String()
	if strings.Contains(html, "latency-chart") {
		t.Error("chart rendered without history")
	}
	if strings.Contains(html, "<h2>Histogram</h2>") {
		t.Error("histogram rendered without buckets")
	}
}
