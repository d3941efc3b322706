package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewResource(t *testing.T) {
	info := RunInfo{Backend: "websocket", SampleRate: 44100, Period: 128}

	tests := []struct {
		name        string
		env         string
		configured  string
		wantService string
	}{
		{name: "default", wantService: "midilat"},
		{name: "environment", env: "bench-rig", wantService: "bench-rig"},
		{name: "configured wins", env: "bench-rig", configured: " studio-a ", wantService: "studio-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_SERVICE_NAME", tt.env)
			t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "")

			res, err := newResource(context.Background(), tt.configured, info)
			if err != nil {
				t.Fatalf("newResource() error = %v", err)
			}
			set := res.Set()
			if v, _ := set.Value(semconv.ServiceNameKey); v.AsString() != tt.wantService {
				t.Errorf("service.name = %q, want %q", v.AsString(), tt.wantService)
			}
			if v, _ := set.Value(attribute.Key("midilat.backend")); v.AsString() != "websocket" {
				t.Errorf("midilat.backend = %q", v.AsString())
			}
			if v, _ := set.Value(attribute.Key("midilat.sample_rate")); v.AsInt64() != 44100 {
				t.Errorf("midilat.sample_rate = %d", v.AsInt64())
			}
			if v, _ := set.Value(attribute.Key("midilat.period")); v.AsInt64() != 128 {
				t.Errorf("midilat.period = %d", v.AsInt64())
			}
		})
	}
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOffSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := newSampler(tt.ratio).Description(); got != tt.want {
			t.Errorf("newSampler(%g) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}
