package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/midilat/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"-o", "loopback:playback", "-i", "loopback:capture"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend != config.BackendLoopback {
		t.Errorf("Backend = %q, want loopback", cfg.Backend)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.Period != 256 {
		t.Errorf("Period = %d, want 256", cfg.Period)
	}
	if cfg.QueueSize != 20 {
		t.Errorf("QueueSize = %d, want 20", cfg.QueueSize)
	}
	if cfg.Interval != time.Second {
		t.Errorf("Interval = %v, want 1s", cfg.Interval)
	}
	if !cfg.Stats {
		t.Error("Stats = false, want true")
	}
	if !cfg.Unlimited() {
		t.Errorf("Unlimited() = false with Samples = %d", cfg.Samples)
	}
	if cfg.Tracing.Enabled() {
		t.Error("Tracing.Enabled() = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadHelpAndVersion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no arguments", nil, config.ErrHelpRequested},
		{"long help", []string{"--help"}, config.ErrHelpRequested},
		{"short help", []string{"-h"}, config.ErrHelpRequested},
		{"long version", []string{"--version"}, config.ErrVersionRequested},
		{"short version", []string{"-V"}, config.ErrVersionRequested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.NewLoader().Load(tt.args)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load() error = %v, want %v", err, tt.want)
			}
			if cfg != nil {
				t.Errorf("Load() cfg = %+v, want nil", cfg)
			}
		})
	}
}

func TestLoadRejectsBadArguments(t *testing.T) {
	tests := [][]string{
		{"--no-such-flag"},
		{"-n", "lots"},
		{"-o", "loopback:playback", "stray"},
		{"--config", filepath.Join(os.TempDir(), "midilat-missing-config.yaml")},
	}
	for _, args := range tests {
		if _, err := config.NewLoader().Load(args); err == nil {
			t.Errorf("Load(%q) error = nil, want error", args)
		}
	}
}

func TestLoadConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "midilat.yaml")
	content := `
output: loopback:playback
input: loopback:capture
samples: 2000
interval: 2
period: 128
loop:
  delay: 90
  jitter: 5
  seed: 7
thresholds:
  - "latency_ms:p99 < 5"
json_output: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--period", "64", "-p", "0"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Samples != 2000 {
		t.Errorf("Samples = %d, want 2000", cfg.Samples)
	}
	if cfg.Period != 64 {
		t.Errorf("Period = %d, want flag value 64", cfg.Period)
	}
	if cfg.Interval != 0 {
		t.Errorf("Interval = %v, want flag value 0", cfg.Interval)
	}
	if cfg.Loop.Delay != 90 || cfg.Loop.Jitter != 5 || cfg.Loop.Seed != 7 {
		t.Errorf("Loop = %+v", cfg.Loop)
	}
	if len(cfg.Thresholds) != 1 || cfg.Thresholds[0] != "latency_ms:p99 < 5" {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if !cfg.JSONOutput {
		t.Error("JSONOutput = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadWebSocketUsesOutputForInput(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"--backend", "websocket", "-o", "ws://127.0.0.1:9000/echo"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Input != "ws://127.0.0.1:9000/echo" {
		t.Errorf("Input = %q, want the output URL", cfg.Input)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"unknown backend", func(c *config.Config) { c.Backend = "alsa" }, "backend must be"},
		{"zero sample rate", func(c *config.Config) { c.SampleRate = 0 }, "sample-rate must be > 0"},
		{"zero period", func(c *config.Config) { c.Period = 0 }, "period must be > 0"},
		{"period too long", func(c *config.Config) { c.Period = 8192 }, "period must be < 8192"},
		{"empty queue", func(c *config.Config) { c.QueueSize = 0 }, "queue-size must be >= 1"},
		{"negative interval", func(c *config.Config) { c.Interval = -time.Second }, "interval must be >= 0"},
		{"negative delay", func(c *config.Config) { c.Loop.Delay = -1 }, "loop-delay must be >= 0"},
		{"jitter above delay", func(c *config.Config) { c.Loop.Jitter = c.Loop.Delay + 1 }, "loop-jitter must not exceed"},
		{"delay wraps", func(c *config.Config) { c.Loop.Delay = 16384 }, "loop-delay plus jitter"},
		{"certain loss", func(c *config.Config) { c.Loop.Loss = 1 }, "loop-loss must be in"},
		{"negative port latency", func(c *config.Config) { c.Loop.PortLatency = -4 }, "port-latency must be >= 0"},
		{"websocket without output", func(c *config.Config) { c.Backend = config.BackendWebSocket }, "requires --output URL"},
		{"websocket http url", func(c *config.Config) {
			c.Backend = config.BackendWebSocket
			c.Output = "http://127.0.0.1/echo"
		}, "output must be a ws://"},
		{"json and dashboard", func(c *config.Config) {
			c.JSONOutput = true
			c.Dashboard = true
		}, "mutually exclusive"},
		{"json and yaml", func(c *config.Config) {
			c.JSONOutput = true
			c.YAMLOutput = true
		}, "mutually exclusive"},
		{"bad threshold", func(c *config.Config) { c.Thresholds = []string{"latency_ms:p42 < 1"} }, "unsupported aggregate"},
		{"bad tracing protocol", func(c *config.Config) {
			c.Tracing.Endpoint = "localhost:4317"
			c.Tracing.Protocol = "thrift"
		}, "tracing protocol"},
		{"bad tracing ratio", func(c *config.Config) {
			c.Tracing.Endpoint = "localhost:4317"
			c.Tracing.SampleRatio = 1.5
		}, "sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorCollectsIssues(t *testing.T) {
	cfg := config.Default()
	cfg.SampleRate = 0
	cfg.QueueSize = 0
	cfg.Loop.Loss = 2

	err := cfg.Validate()
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %T, want ValidationError", err)
	}
	if got := len(verr.Issues()); got != 3 {
		t.Errorf("Issues() = %v, want 3 entries", verr.Issues())
	}
}

func TestTracingPropagation(t *testing.T) {
	off := false
	tests := []struct {
		name string
		cfg  config.TracingConfig
		want bool
	}{
		{"disabled", config.TracingConfig{}, false},
		{"enabled", config.TracingConfig{Endpoint: "localhost:4317"}, true},
		{"opted out", config.TracingConfig{Endpoint: "localhost:4317", Propagate: &off}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ShouldPropagate(); got != tt.want {
				t.Errorf("ShouldPropagate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampleLimit(t *testing.T) {
	tests := []struct {
		samples       int
		wantUnlimited bool
		wantLimit     int
	}{
		{samples: 0, wantUnlimited: true, wantLimit: 0},
		{samples: -5, wantUnlimited: true, wantLimit: 0},
		{samples: 1, wantUnlimited: false, wantLimit: 1},
		{samples: 1000, wantUnlimited: false, wantLimit: 1000},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Samples = tt.samples
		if got := cfg.Unlimited(); got != tt.wantUnlimited {
			t.Errorf("Samples=%d: Unlimited() = %v, want %v", tt.samples, got, tt.wantUnlimited)
		}
		if got := cfg.SampleLimit(); got != tt.wantLimit {
			t.Errorf("Samples=%d: SampleLimit() = %d, want %d", tt.samples, got, tt.wantLimit)
		}
	}
}
