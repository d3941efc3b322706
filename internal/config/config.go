package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/midilat/internal/marker"
	"github.com/torosent/midilat/internal/threshold"
)

type Backend string

const (
	BackendLoopback  Backend = "loopback"
	BackendWebSocket Backend = "websocket"
)

const (
	DefaultSampleRate = 48000
	DefaultPeriod     = 256
	DefaultQueueSize  = 20
	DefaultInterval   = time.Second
	DefaultLoopDelay  = 300

	defaultHandshakeTimeout = 10 * time.Second
)

type Config struct {
	Input            string        `mapstructure:"input"`
	Output           string        `mapstructure:"output"`
	Samples          int           `mapstructure:"samples"`
	Interval         time.Duration `mapstructure:"interval"`
	Stats            bool          `mapstructure:"stats"`
	Backend          Backend       `mapstructure:"backend"`
	SampleRate       int           `mapstructure:"sample_rate"`
	Period           int           `mapstructure:"period"`
	QueueSize        int           `mapstructure:"queue_size"`
	Loop             LoopConfig    `mapstructure:"loop"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	JSONOutput       bool          `mapstructure:"json_output"`
	YAMLOutput       bool          `mapstructure:"yaml_output"`
	HTMLOutput       string        `mapstructure:"html_output"`
	Dashboard        bool          `mapstructure:"dashboard"`
	Thresholds       []string      `mapstructure:"thresholds"`
	Tracing          TracingConfig `mapstructure:"tracing"`
	ConfigFile       string        `mapstructure:"-"`
}

// LoopConfig shapes the in-process loopback cable.
type LoopConfig struct {
	Delay       int     `mapstructure:"delay"`
	Jitter      int     `mapstructure:"jitter"`
	Loss        float64 `mapstructure:"loss"`
	Seed        int64   `mapstructure:"seed"`
	PortLatency int     `mapstructure:"port_latency"`
}

// TracingConfig controls OpenTelemetry export of a measurement run.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether spans are exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether trace context is sent with the WebSocket
// handshake. It defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if !t.Enabled() {
		return false
	}
	return t.Propagate == nil || *t.Propagate
}

// Unlimited reports whether the run continues until shutdown.
func (c Config) Unlimited() bool {
	return c.Samples <= 0
}

// SampleLimit returns the number of samples that ends the run, 0 when the
// run continues until shutdown.
func (c Config) SampleLimit() int {
	if c.Unlimited() {
		return 0
	}
	return c.Samples
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	switch c.Backend {
	case BackendLoopback, BackendWebSocket:
	default:
		issues = append(issues, fmt.Sprintf("backend must be %q or %q, got %q", BackendLoopback, BackendWebSocket, c.Backend))
	}

	if c.SampleRate <= 0 {
		issues = append(issues, "sample-rate must be > 0")
	}
	if c.Period <= 0 {
		issues = append(issues, "period must be > 0")
	} else if c.Period >= marker.Modulus/2 {
		issues = append(issues, fmt.Sprintf("period must be < %d ticks", marker.Modulus/2))
	}
	if c.QueueSize < 1 {
		issues = append(issues, "queue-size must be >= 1")
	}
	if c.Interval < 0 {
		issues = append(issues, "interval must be >= 0")
	}
	if c.HandshakeTimeout < 0 {
		issues = append(issues, "handshake-timeout must be >= 0")
	}

	if c.Backend == BackendLoopback {
		issues = append(issues, validateLoopConfig(c.Loop)...)
	}
	if c.Backend == BackendWebSocket {
		issues = append(issues, validateWebSocketTargets(c.Input, c.Output)...)
	}

	outputs := 0
	for _, on := range []bool{c.JSONOutput, c.YAMLOutput, c.Dashboard} {
		if on {
			outputs++
		}
	}
	if outputs > 1 {
		issues = append(issues, "dashboard, json-output and yaml-output are mutually exclusive")
	}

	if _, err := threshold.ParseMultiple(c.Thresholds); err != nil {
		issues = append(issues, err.Error())
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateLoopConfig(loop LoopConfig) []string {
	var issues []string
	if loop.Delay < 0 {
		issues = append(issues, "loop-delay must be >= 0")
	}
	if loop.Jitter < 0 {
		issues = append(issues, "loop-jitter must be >= 0")
	}
	if loop.Jitter > loop.Delay {
		issues = append(issues, "loop-jitter must not exceed loop-delay")
	}
	if loop.Delay+loop.Jitter >= marker.Modulus {
		issues = append(issues, fmt.Sprintf("loop-delay plus jitter must be < %d ticks", marker.Modulus))
	}
	if loop.Loss < 0 || loop.Loss >= 1 {
		issues = append(issues, "loop-loss must be in [0, 1)")
	}
	if loop.PortLatency < 0 {
		issues = append(issues, "port-latency must be >= 0")
	}
	return issues
}

func validateWebSocketTargets(input, output string) []string {
	var issues []string
	if strings.TrimSpace(output) == "" {
		issues = append(issues, "websocket backend requires --output URL")
	}
	for _, target := range []struct{ name, value string }{{"input", input}, {"output", output}} {
		if target.value == "" {
			continue
		}
		u, err := url.Parse(target.value)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", target.name, err))
			continue
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			issues = append(issues, fmt.Sprintf("%s must be a ws:// or wss:// URL, got %q", target.name, target.value))
		}
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		issues = append(issues, "tracing sample_ratio must be between 0.0 and 1.0")
	}
	return issues
}
