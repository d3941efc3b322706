package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/torosent/midilat/internal/config"
	"github.com/torosent/midilat/internal/dashboard"
	"github.com/torosent/midilat/internal/driver"
	"github.com/torosent/midilat/internal/emitter"
	"github.com/torosent/midilat/internal/metrics"
	"github.com/torosent/midilat/internal/output"
	"github.com/torosent/midilat/internal/queue"
	"github.com/torosent/midilat/internal/runner"
	"github.com/torosent/midilat/internal/threshold"
	"github.com/torosent/midilat/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const tracingShutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return execute(context.Background(), args, os.Stdout, os.Stderr)
}

// execute runs one measurement. It returns once the sample limit is reached,
// parent is cancelled, a termination signal arrives or the device shuts down.
func execute(parent context.Context, args []string, stdout, stderr io.Writer) (err error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrHelpRequested):
			return nil
		case errors.Is(err, config.ErrVersionRequested):
			fmt.Fprintf(stdout, "midilat %s\n", version)
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	log := newStderrLogger(stderr)
	stdout = output.NewSyncWriter(stdout)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	defer stop()

	runInfo := tracing.RunInfo{
		Backend:     string(cfg.Backend),
		Input:       cfg.Input,
		Output:      cfg.Output,
		SampleRate:  uint32(cfg.SampleRate),
		Period:      uint32(cfg.Period),
		SampleLimit: cfg.SampleLimit(),
	}
	provider, err := tracing.Init(ctx, cfg.Tracing, runInfo)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	ctx, span := tracing.StartRunSpan(ctx, provider.Tracer(), runInfo)
	var (
		stats    metrics.Stats
		counters emitter.Counters
	)
	defer func() {
		tracing.EndRunSpan(span, stats, counters, err)
	}()

	ring, err := queue.NewRing[emitter.Sample](cfg.QueueSize)
	if err != nil {
		return fmt.Errorf("allocate sample queue: %w", err)
	}
	notifier := queue.NewNotifier()
	em := emitter.New(ring, notifier)

	headers := http.Header{}
	if provider.ShouldPropagate() {
		tracing.InjectHTTPHeaders(ctx, headers)
	}
	client := newClient(cfg, headers)
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("close client: %v", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client.SetProcessCallback(em.Process)
	client.SetLatencyCallback(func(mode driver.LatencyMode, r driver.LatencyRange) {
		if em.OnLatency(mode, r) {
			log.Printf("new %s latency: [%d, %d]", mode, r.Min, r.Max)
			tracing.RecordLatency(span, mode, r)
		}
	})
	client.OnShutdown(func() {
		log.Printf("device shut down")
		notifier.Shutdown()
		cancel()
	})

	if err := client.RegisterPorts(); err != nil {
		return fmt.Errorf("register ports: %w", err)
	}
	if err := client.Activate(runCtx); err != nil {
		return fmt.Errorf("activate client %s: %w", client.Name(), err)
	}
	defer func() {
		if err := client.Deactivate(); err != nil {
			log.Printf("deactivate client: %v", err)
		}
	}()
	connectPorts(client, cfg, log)

	collector := metrics.NewCollector(metrics.Options{
		SampleRate: client.SampleRate(),
		Histogram:  cfg.Stats,
	})

	interactive := !cfg.JSONOutput && !cfg.YAMLOutput && !cfg.Dashboard
	recorders := []runner.Recorder{collector}
	progressOut := io.Discard
	if interactive {
		recorders = append(recorders, output.NewLiveLine(stdout, client.SampleRate(), em.Expected, output.DefaultLiveInterval))
		progressOut = stdout
	}

	progress := output.NewProgressReporter(collector, cfg.Interval, progressOut, func(w metrics.Window) {
		tracing.RecordWindow(span, w)
	})
	progress.Start()

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, em.Counters, dashboard.RunConfig{
			Backend:     string(cfg.Backend),
			Input:       cfg.Input,
			Output:      cfg.Output,
			SampleRate:  client.SampleRate(),
			Period:      client.BufferSize(),
			SampleLimit: cfg.SampleLimit(),
			ConfigFile:  cfg.ConfigFile,
		}, func() {
			notifier.Shutdown()
			cancel()
		})
		if err != nil {
			progress.Stop()
			return err
		}
		dash.Start()
	}

	r := runner.New(runner.Options{
		Queue:       ring,
		Notifier:    notifier,
		Recorder:    runner.Chain(recorders...),
		SampleLimit: cfg.SampleLimit(),
	})
	result := r.Run(runCtx)

	progress.Stop()
	if dash != nil {
		dash.Stop()
	}
	if interactive {
		fmt.Fprintln(stdout)
	}
	if result.Reason == runner.StopShutdown && ctx.Err() != nil && parent.Err() == nil {
		log.Printf("interrupted after %d samples", result.Samples)
	}
	reportTransit(client, log)

	stats = collector.Stats()
	counters = em.Counters()
	report := buildReport(stats, counters, em, client.BufferSize(), collector)

	switch {
	case cfg.JSONOutput:
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	case cfg.YAMLOutput:
		if err := output.PrintYAMLReport(stdout, report); err != nil {
			return err
		}
	case stats.Samples == 0:
		output.PrintNoSignal(stdout)
	default:
		output.PrintReport(stdout, report)
	}

	var results []threshold.Result
	if len(thresholds) > 0 {
		results = threshold.NewEvaluator(thresholds).Evaluate(threshold.Input{Stats: stats, Counters: counters})
		thresholdOut := stdout
		if !interactive {
			thresholdOut = stderr
		}
		output.PrintThresholdResults(thresholdOut, results)
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg.HTMLOutput, report, collector.History(), results); err != nil {
			return err
		}
		log.Printf("HTML report written to %s", cfg.HTMLOutput)
	}

	if failed := threshold.Failed(results); failed > 0 {
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}

func buildReport(stats metrics.Stats, counters emitter.Counters, em *emitter.Emitter, bufferSize uint32, collector *metrics.Collector) output.Report {
	period := stats.Period
	if period == 0 {
		period = bufferSize
	}
	report := output.Report{
		Stats:    stats,
		Markers:  counters,
		Capture:  em.Latency().Capture(),
		Playback: em.Latency().Playback(),
		Expected: em.Expected(period),
	}
	if h, ok := collector.Histogram(); ok {
		report.Histogram = &h
	}
	return report
}

func writeHTMLReport(path string, report output.Report, history []metrics.Window, results []threshold.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create HTML report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, report, history, results); err != nil {
		f.Close()
		return fmt.Errorf("write HTML report: %w", err)
	}
	return f.Close()
}
