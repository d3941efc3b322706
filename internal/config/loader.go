package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

var (
	// ErrHelpRequested is returned when the user requests help via --help flag.
	ErrHelpRequested = errors.New("help requested")
	// ErrVersionRequested is returned for --version.
	ErrVersionRequested = errors.New("version requested")
)

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Interval:         DefaultInterval,
		Stats:            true,
		Backend:          BackendLoopback,
		SampleRate:       DefaultSampleRate,
		Period:           DefaultPeriod,
		QueueSize:        DefaultQueueSize,
		HandshakeTimeout: defaultHandshakeTimeout,
		Loop:             LoopConfig{Delay: DefaultLoopDelay},
		Tracing:          TracingConfig{Protocol: "grpc", SampleRatio: 1},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if wantsVersion, err := flagSet.GetBool("version"); err == nil && wantsVersion {
		return nil, ErrVersionRequested
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(extra, " "))
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	// A single echo URL serves both directions.
	if cfg.Backend == BackendWebSocket && cfg.Input == "" {
		cfg.Input = cfg.Output
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "input"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("input: %w", err)
		}
		cfg.Input = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "backend"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("backend: %w", err)
		}
		if val = strings.ToLower(strings.TrimSpace(val)); val != "" {
			cfg.Backend = Backend(val)
		}
	}

	if raw, ok := lookupSetting(settings, "handshaketimeout", "handshake_timeout", "handshake-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("handshakeTimeout: %w", err)
		}
		cfg.HandshakeTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "samples"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("samples: %w", err)
		}
		cfg.Samples = val
	}

	if raw, ok := lookupSetting(settings, "interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		cfg.Interval = dur
	}

	if raw, ok := lookupSetting(settings, "stats"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		cfg.Stats = val
	}

	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("sampleRate: %w", err)
		}
		cfg.SampleRate = val
	}

	if raw, ok := lookupSetting(settings, "period"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("period: %w", err)
		}
		cfg.Period = val
	}

	if raw, ok := lookupSetting(settings, "queuesize", "queue_size", "queue-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("queueSize: %w", err)
		}
		cfg.QueueSize = val
	}

	if raw, ok := lookupSetting(settings, "loop"); ok {
		loop, err := parseLoopConfig(raw, cfg.Loop)
		if err != nil {
			return fmt.Errorf("loop: %w", err)
		}
		cfg.Loop = loop
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "yamloutput", "yaml_output", "yaml-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("yamlOutput: %w", err)
		}
		cfg.YAMLOutput = val
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseLoopConfig(value interface{}, loop LoopConfig) (LoopConfig, error) {
	if value == nil {
		return loop, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return LoopConfig{}, err
	}
	if raw, ok := lookupSetting(settings, "delay"); ok {
		val, err := asInt(raw)
		if err != nil {
			return LoopConfig{}, fmt.Errorf("delay: %w", err)
		}
		loop.Delay = val
	}
	if raw, ok := lookupSetting(settings, "jitter"); ok {
		val, err := asInt(raw)
		if err != nil {
			return LoopConfig{}, fmt.Errorf("jitter: %w", err)
		}
		loop.Jitter = val
	}
	if raw, ok := lookupSetting(settings, "loss"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return LoopConfig{}, fmt.Errorf("loss: %w", err)
		}
		loop.Loss = val
	}
	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt(raw)
		if err != nil {
			return LoopConfig{}, fmt.Errorf("seed: %w", err)
		}
		loop.Seed = int64(val)
	}
	if raw, ok := lookupSetting(settings, "portlatency", "port_latency", "port-latency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return LoopConfig{}, fmt.Errorf("port_latency: %w", err)
		}
		loop.PortLatency = val
	}
	return loop, nil
}

func parseTracingConfig(value interface{}, tracing TracingConfig) (TracingConfig, error) {
	if value == nil {
		return tracing, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "sampleratio", "sample_ratio", "sample-ratio"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_ratio: %w", err)
		}
		tracing.SampleRatio = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tracing.Propagate = &val
	}
	return tracing, nil
}
