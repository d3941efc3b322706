package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/midilat/internal/emitter"
	"github.com/torosent/midilat/internal/metrics"
)

// Threshold represents a latency assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "latency_ms", "samples", "markers_dropped"
	Aggregate string  // e.g., "p99", "avg", "max", "count", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Input is what thresholds are evaluated against.
type Input struct {
	Stats    metrics.Stats
	Counters emitter.Counters
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided input.
func (e *Evaluator) Evaluate(in Input) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, in))
	}
	return results
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}

func (e *Evaluator) evaluateOne(t Threshold, in Input) Result {
	actual, err := extractMetricValue(t, in)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "latency_ms:p99 < 10"          (round-trip percentile in ms)
// - "latency_ticks:max <= 512"     (round-trip maximum in ticks)
// - "latency_ms:stddev < 0.5"      (jitter in ms)
// - "samples:count >= 1000"        (samples recorded)
// - "markers_dropped:count == 0"   (markers lost to a full queue)
// - "markers_dropped:rate < 0.01"  (dropped share of received markers)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'latency_ms:p99 < 10')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: latency_ms, latency_ticks, samples, markers_dropped)", metric)
	}

	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p99, avg, min, max, stddev, range, rate, count)", aggregate)
	}

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func isValidMetric(metric string) bool {
	valid := []string{"latency_ms", "latency_ticks", "samples", "markers_dropped"}
	for _, v := range valid {
		if metric == v {
			return true
		}
	}
	return false
}

func isValidAggregate(aggregate string) bool {
	valid := []string{"p50", "p90", "p99", "avg", "mean", "min", "max", "stddev", "range", "rate", "count"}
	for _, v := range valid {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, in Input) (float64, error) {
	switch t.Metric {
	case "latency_ms":
		v, err := extractLatencyMetric(t.Aggregate, in.Stats)
		return in.Stats.Time(v), err
	case "latency_ticks":
		return extractLatencyMetric(t.Aggregate, in.Stats)
	case "samples":
		return extractSampleMetric(t.Aggregate, in.Stats)
	case "markers_dropped":
		return extractDroppedMetric(t.Aggregate, in.Counters)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

// extractLatencyMetric returns the aggregate in ticks.
func extractLatencyMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "p50":
		return float64(stats.P50), nil
	case "p90":
		return float64(stats.P90), nil
	case "p99":
		return float64(stats.P99), nil
	case "avg", "mean":
		return stats.Mean, nil
	case "min":
		return float64(stats.Min), nil
	case "max":
		return float64(stats.Max), nil
	case "stddev":
		return stats.StdDev, nil
	case "range":
		return float64(stats.Range), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for latency", aggregate)
	}
}

func extractSampleMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "count":
		return float64(stats.Samples), nil
	case "rate":
		if stats.Duration <= 0 {
			return 0, nil
		}
		return float64(stats.Samples) / stats.Duration.Seconds(), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for samples (use 'count' or 'rate')", aggregate)
	}
}

func extractDroppedMetric(aggregate string, c emitter.Counters) (float64, error) {
	switch aggregate {
	case "count":
		return float64(c.Dropped), nil
	case "rate":
		if c.Received == 0 {
			return 0, nil
		}
		return float64(c.Dropped) / float64(c.Received), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for markers_dropped (use 'count' or 'rate')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
