package tracing

import (
	"context"
	"math"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/midilat/internal/driver"
	"github.com/torosent/midilat/internal/emitter"
	"github.com/torosent/midilat/internal/metrics"
)

// RunInfo describes a measurement run for its span.
type RunInfo struct {
	Backend     string
	Input       string
	Output      string
	SampleRate  uint32
	Period      uint32
	SampleLimit int
}

// deviceAttributes describe the device a run measures.
func (info RunInfo) deviceAttributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("midilat.backend", info.Backend),
		attribute.Int64("midilat.sample_rate", int64(info.SampleRate)),
		attribute.Int64("midilat.period", int64(info.Period)),
	}
}

// StartRunSpan starts the span covering one measurement run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, info RunInfo) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "midilat run",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(info.deviceAttributes()...)
	span.SetAttributes(attribute.Int("midilat.sample_limit", info.SampleLimit))
	if info.Input != "" {
		span.SetAttributes(attribute.String("midilat.input", info.Input))
	}
	if info.Output != "" {
		span.SetAttributes(attribute.String("midilat.output", info.Output))
	}
	return ctx, span
}

// RecordWindow adds a report window to the run span as an event.
func RecordWindow(span trace.Span, w metrics.Window) {
	attrs := []attribute.KeyValue{attribute.Int64("count", w.Count)}
	if w.Count > 0 && !math.IsNaN(w.Mean) {
		attrs = append(attrs,
			attribute.Int64("min_ticks", w.Min),
			attribute.Int64("max_ticks", w.Max),
			attribute.Float64("mean_ms", w.Time(w.Mean)),
		)
	}
	span.AddEvent("window", trace.WithAttributes(attrs...))
}

// RecordLatency adds a latency negotiation to the run span.
func RecordLatency(span trace.Span, mode driver.LatencyMode, r driver.LatencyRange) {
	span.AddEvent("latency negotiated", trace.WithAttributes(
		attribute.String("direction", mode.String()),
		attribute.Int64("min_ticks", int64(r.Min)),
		attribute.Int64("max_ticks", int64(r.Max)),
	))
}

// EndRunSpan attaches the final statistics and ends the span.
func EndRunSpan(span trace.Span, stats metrics.Stats, counters emitter.Counters, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("midilat.run_id", stats.RunID),
		attribute.Int64("midilat.samples", stats.Samples),
		attribute.Int64("midilat.markers.sent", int64(counters.Sent)),
		attribute.Int64("midilat.markers.received", int64(counters.Received)),
		attribute.Int64("midilat.markers.dropped", int64(counters.Dropped)),
	}
	if stats.Samples > 0 {
		attrs = append(attrs,
			attribute.Float64("midilat.latency.min_ms", stats.MinMs),
			attribute.Float64("midilat.latency.mean_ms", stats.MeanMs),
			attribute.Float64("midilat.latency.max_ms", stats.MaxMs),
			attribute.Float64("midilat.latency.stddev_ms", stats.StdDevMs),
			attribute.Float64("midilat.latency.p99_ms", stats.P99Ms),
		)
	}
	EndSpan(span, err, attrs...)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
