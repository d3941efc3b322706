// Package dashboard renders a live terminal view of a latency run.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/midilat/internal/emitter"
	"github.com/torosent/midilat/internal/metrics"
)

const (
	refreshInterval = 500 * time.Millisecond
	maxSparkPoints  = 100
	maxBars         = 24
)

// RunConfig holds the run parameters shown in the summary.
type RunConfig struct {
	Backend     string
	Input       string
	Output      string
	SampleRate  uint32
	Period      uint32
	SampleLimit int // <= 0 = unlimited
	ConfigFile  string
}

// Dashboard renders a live terminal UI for a measurement run.
type Dashboard struct {
	collector    *metrics.Collector
	counters     func() emitter.Counters
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	markersPara    *widgets.Paragraph
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	histogramChart *widgets.BarChart
	startTime      time.Time
	runConfig      RunConfig
}

// New creates a new Dashboard. counters may be nil.
func New(collector *metrics.Collector, counters func() emitter.Counters, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:    collector,
		counters:     counters,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		startTime:    time.Now(),
		runConfig:    cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Samples"
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.markersPara = widgets.NewParagraph()
	d.markersPara.Title = "Markers"
	d.markersPara.Text = "Waiting for data..."
	d.markersPara.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Window mean (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Round-trip Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "No samples"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.histogramChart = widgets.NewBarChart()
	d.histogramChart.Title = "Histogram (collecting warm-up)"
	d.histogramChart.BarWidth = 5
	d.histogramChart.BarColors = []ui.Color{ui.ColorGreen}
	d.histogramChart.NumStyles = []ui.Style{ui.NewStyle(ui.ColorBlack)}
	d.histogramChart.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.markersPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.42,
			ui.NewCol(1.0, d.histogramChart),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the run has wound down.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats()

	d.summaryPara.Text = fmt.Sprintf("%s\nElapsed: %s | Samples: %d",
		formatRunParams(d.runConfig), elapsed.Round(time.Second), stats.Samples)

	d.progressGauge.Percent = progressPercent(stats.Samples, d.runConfig.SampleLimit)
	d.progressGauge.Label = progressLabel(stats.Samples, d.runConfig.SampleLimit)

	if d.counters != nil {
		d.markersPara.Text = formatMarkers(d.counters())
	}

	if data := sparklineData(d.collector.History()); len(data) > 0 {
		d.latencySparkle.Sparklines[0].Data = data
		current := data[len(data)-1]
		d.latencySparkle.Title = fmt.Sprintf("Round-trip Latency | Current: %.2fms | Min: %.2fms | Max: %.2fms",
			current, stats.MinMs, stats.MaxMs)
	}

	d.latencyPara.Text = formatLatency(stats)

	if h, ok := d.collector.Histogram(); ok {
		data, labels := histogramBars(h, d.runConfig.SampleRate, maxBars)
		d.histogramChart.Data = data
		d.histogramChart.Labels = labels
		d.histogramChart.Title = fmt.Sprintf("Histogram (bin %.2fms)", ticksToMs(h.Width, d.runConfig.SampleRate))
	}
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// formatRunParams formats the run parameters for display.
func formatRunParams(cfg RunConfig) string {
	var parts []string

	if cfg.Backend != "" {
		parts = append(parts, fmt.Sprintf("Backend: %s", cfg.Backend))
	}
	if cfg.Output != "" {
		parts = append(parts, fmt.Sprintf("Out: %s", cfg.Output))
	}
	if cfg.Input != "" && cfg.Input != cfg.Output {
		parts = append(parts, fmt.Sprintf("In: %s", cfg.Input))
	}
	if cfg.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d Hz", cfg.SampleRate))
	}
	if cfg.Period > 0 {
		parts = append(parts, fmt.Sprintf("Period: %d (%.2fms)", cfg.Period, ticksToMs(float64(cfg.Period), cfg.SampleRate)))
	}
	if cfg.SampleLimit > 0 {
		parts = append(parts, fmt.Sprintf("Limit: %d", cfg.SampleLimit))
	} else {
		parts = append(parts, "Limit: none")
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}

func progressPercent(samples int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	pct := int(samples * 100 / int64(limit))
	if pct > 100 {
		pct = 100
	}
	return pct
}

func progressLabel(samples int64, limit int) string {
	if limit <= 0 {
		return fmt.Sprintf("%d (unlimited)", samples)
	}
	return fmt.Sprintf("%d / %d", samples, limit)
}

func formatMarkers(c emitter.Counters) string {
	return fmt.Sprintf("Sent:     %d\nReceived: %d\nDropped:  %d\nIgnored:  %d\nUnsent:   %d",
		c.Sent, c.Received, c.Dropped, c.Ignored, c.Unsent)
}

func formatLatency(stats metrics.Stats) string {
	if stats.Samples == 0 {
		return "No samples"
	}
	return fmt.Sprintf("Min:    %.2fms\nMean:   %.2fms\nMax:    %.2fms\nStdDev: %.2fms\nP50/P90/P99: %.2f / %.2f / %.2f ms",
		stats.MinMs, stats.MeanMs, stats.MaxMs, stats.StdDevMs,
		stats.P50Ms, stats.P90Ms, stats.P99Ms)
}

// sparklineData returns the mean of each non-empty window in ms, newest last.
func sparklineData(history []metrics.Window) []float64 {
	data := make([]float64, 0, len(history))
	for _, w := range history {
		if w.Count == 0 || math.IsNaN(w.Mean) {
			continue
		}
		data = append(data, w.Time(w.Mean))
	}
	if len(data) > maxSparkPoints {
		data = data[len(data)-maxSparkPoints:]
	}
	return data
}

// histogramBars merges adjacent buckets so at most limit bars remain. Each
// label is the lower bound of the bar in ms.
func histogramBars(h metrics.Histogram, sampleRate uint32, limit int) ([]float64, []string) {
	if len(h.Counts) == 0 || limit < 1 {
		return nil, nil
	}
	group := (len(h.Counts) + limit - 1) / limit
	data := make([]float64, 0, limit)
	labels := make([]string, 0, limit)
	for start := 0; start < len(h.Counts); start += group {
		end := start + group
		if end > len(h.Counts) {
			end = len(h.Counts)
		}
		var sum uint64
		for _, c := range h.Counts[start:end] {
			sum += c
		}
		lo, _ := h.Bounds(start)
		data = append(data, float64(sum))
		labels = append(labels, fmt.Sprintf("%.1f", ticksToMs(lo, sampleRate)))
	}
	return data, labels
}

func ticksToMs(ticks float64, rate uint32) float64 {
	if rate == 0 {
		return 0
	}
	return ticks * 1000 / float64(rate)
}
