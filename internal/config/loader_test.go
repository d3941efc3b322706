package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{0.25, 250 * time.Millisecond},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Default()
	settings := map[string]interface{}{
		"input":       "loopback:capture",
		"output":      "loopback:playback",
		"samples":     100,
		"interval":    "500ms",
		"sample_rate": 44100,
		"queue-size":  32,
		"stats":       false,
		"loop": map[string]interface{}{
			"delay":        120,
			"jitter":       10,
			"loss":         0.05,
			"port_latency": 64,
		},
		"tracing": map[string]interface{}{
			"endpoint":  "localhost:4317",
			"propagate": false,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Input != "loopback:capture" || cfg.Output != "loopback:playback" {
		t.Errorf("Input/Output = %q/%q", cfg.Input, cfg.Output)
	}
	if cfg.Samples != 100 {
		t.Errorf("Samples = %d, want 100", cfg.Samples)
	}
	if cfg.Interval != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms", cfg.Interval)
	}
	if cfg.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.SampleRate)
	}
	if cfg.QueueSize != 32 {
		t.Errorf("QueueSize = %d, want 32", cfg.QueueSize)
	}
	if cfg.Stats {
		t.Error("Stats = true, want false")
	}
	want := LoopConfig{Delay: 120, Jitter: 10, Loss: 0.05, PortLatency: 64}
	if cfg.Loop != want {
		t.Errorf("Loop = %+v, want %+v", cfg.Loop, want)
	}
	if cfg.Period != DefaultPeriod {
		t.Errorf("Period = %d, want default %d", cfg.Period, DefaultPeriod)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.Protocol != "grpc" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false")
	}
}

func TestApplyConfigSettingsErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
	}{
		{"samples", map[string]interface{}{"samples": "many"}},
		{"interval", map[string]interface{}{"interval": "soon"}},
		{"loop not a map", map[string]interface{}{"loop": "fast"}},
		{"loop delay", map[string]interface{}{"loop": map[string]interface{}{"delay": []int{1}}}},
		{"stats", map[string]interface{}{"stats": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := applyConfigSettings(Default(), tt.settings); err == nil {
				t.Fatal("applyConfigSettings() error = nil, want error")
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Default()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"-n", "5",
		"-p", "0.5",
		"--backend=WebSocket",
		"--loop-jitter=20",
		"--stats=false",
		"--threshold=latency_ms:p99 < 10",
		"--threshold=markers_dropped:count == 0",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Samples != 5 {
		t.Errorf("Samples = %d, want 5", cfg.Samples)
	}
	if cfg.Interval != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms", cfg.Interval)
	}
	if cfg.Backend != BackendWebSocket {
		t.Errorf("Backend = %q, want websocket", cfg.Backend)
	}
	if cfg.Loop.Jitter != 20 || cfg.Loop.Delay != DefaultLoopDelay {
		t.Errorf("Loop = %+v", cfg.Loop)
	}
	if cfg.Stats {
		t.Error("Stats = true, want false")
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v, want 2 entries", cfg.Thresholds)
	}
}
