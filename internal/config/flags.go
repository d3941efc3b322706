package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "midilat",
		Short:         "Measure round-trip latency of a marker looped through a device",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Connection flags
	flags.StringP("input", "i", "", "Port or URL to connect to the input port")
	flags.StringP("output", "o", "", "Port or URL to connect the output port to")
	flags.String("backend", string(BackendLoopback), "Device backend: 'loopback' or 'websocket'")
	flags.Duration("handshake-timeout", defaultHandshakeTimeout, "WebSocket handshake timeout")

	// Measurement flags
	flags.IntP("samples", "n", 0, "Number of samples to collect (<= 0 means unlimited)")
	flags.Float64P("interval", "p", DefaultInterval.Seconds(), "Seconds between window reports (0 disables)")
	flags.Bool("stats", true, "Build the latency histogram after the warm-up window")
	flags.Int("sample-rate", DefaultSampleRate, "Ticks per second")
	flags.Int("period", DefaultPeriod, "Ticks per process period")
	flags.Int("queue-size", DefaultQueueSize, "Capacity of the sample queue")

	// Loopback device flags
	flags.Int("loop-delay", DefaultLoopDelay, "Loopback cable transit time in ticks")
	flags.Int("loop-jitter", 0, "Loopback jitter in ticks (uniform, +/-)")
	flags.Float64("loop-loss", 0, "Probability that the loopback loses an event")
	flags.Int64("loop-seed", 0, "Seed for loopback jitter and loss")
	flags.Int("port-latency", 0, "Latency the loopback reports for each port in ticks")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.Bool("yaml-output", false, "Emit YAML formatted report")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.StringSlice("threshold", nil, "Latency thresholds (repeatable, e.g., 'latency_ms:p99 < 10')")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")

	flags.BoolP("version", "V", false, "Print version and exit")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("input") {
		val, err := fs.GetString("input")
		if err != nil {
			return err
		}
		cfg.Input = strings.TrimSpace(val)
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = strings.TrimSpace(val)
	}
	if fs.Changed("backend") {
		val, err := fs.GetString("backend")
		if err != nil {
			return err
		}
		cfg.Backend = Backend(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("handshake-timeout") {
		val, err := fs.GetDuration("handshake-timeout")
		if err != nil {
			return err
		}
		cfg.HandshakeTimeout = val
	}
	if fs.Changed("samples") {
		val, err := fs.GetInt("samples")
		if err != nil {
			return err
		}
		cfg.Samples = val
	}
	if fs.Changed("interval") {
		val, err := fs.GetFloat64("interval")
		if err != nil {
			return err
		}
		cfg.Interval = secondsToDuration(val)
	}
	if fs.Changed("stats") {
		val, err := fs.GetBool("stats")
		if err != nil {
			return err
		}
		cfg.Stats = val
	}
	if fs.Changed("sample-rate") {
		val, err := fs.GetInt("sample-rate")
		if err != nil {
			return err
		}
		cfg.SampleRate = val
	}
	if fs.Changed("period") {
		val, err := fs.GetInt("period")
		if err != nil {
			return err
		}
		cfg.Period = val
	}
	if fs.Changed("queue-size") {
		val, err := fs.GetInt("queue-size")
		if err != nil {
			return err
		}
		cfg.QueueSize = val
	}

	if fs.Changed("loop-delay") {
		val, err := fs.GetInt("loop-delay")
		if err != nil {
			return err
		}
		cfg.Loop.Delay = val
	}
	if fs.Changed("loop-jitter") {
		val, err := fs.GetInt("loop-jitter")
		if err != nil {
			return err
		}
		cfg.Loop.Jitter = val
	}
	if fs.Changed("loop-loss") {
		val, err := fs.GetFloat64("loop-loss")
		if err != nil {
			return err
		}
		cfg.Loop.Loss = val
	}
	if fs.Changed("loop-seed") {
		val, err := fs.GetInt64("loop-seed")
		if err != nil {
			return err
		}
		cfg.Loop.Seed = val
	}
	if fs.Changed("port-latency") {
		val, err := fs.GetInt("port-latency")
		if err != nil {
			return err
		}
		cfg.Loop.PortLatency = val
	}

	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetBool("yaml-output")
		if err != nil {
			return err
		}
		cfg.YAMLOutput = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}

	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
