package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/torosent/midilat/internal/metrics"
	"github.com/torosent/midilat/internal/threshold"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Report           Report
	Buckets          []HTMLBucket
	ThresholdResults []threshold.Result
	ThresholdSummary *ThresholdSummary
	HistoryJSON      string
	HasHistory       bool
}

// HTMLBucket is one histogram row of the HTML report.
type HTMLBucket struct {
	LoTicks float64
	HiTicks float64
	LoMs    float64
	HiMs    float64
	Count   uint64
	Percent float64 // bar width relative to the tallest bucket
}

// ThresholdSummary aggregates threshold outcomes for the HTML report.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []threshold.Result
}

// windowPoint is one closed window in the embedded chart data. Empty
// windows have no mean.
type windowPoint struct {
	Seconds float64  `json:"t"`
	Count   int64    `json:"count"`
	MinMs   *float64 `json:"min_ms"`
	MaxMs   *float64 `json:"max_ms"`
	MeanMs  *float64 `json:"mean_ms"`
}

func historyPoints(history []metrics.Window) []windowPoint {
	points := make([]windowPoint, 0, len(history))
	if len(history) == 0 {
		return points
	}
	start := history[0].ClosedAt
	for _, w := range history {
		p := windowPoint{Seconds: w.ClosedAt.Sub(start).Seconds(), Count: w.Count}
		if w.Count > 0 && !math.IsNaN(w.Mean) {
			lo, hi, mean := w.Time(float64(w.Min)), w.Time(float64(w.Max)), w.Time(w.Mean)
			p.MinMs, p.MaxMs, p.MeanMs = &lo, &hi, &mean
		}
		points = append(points, p)
	}
	return points
}

// GenerateHTMLReport generates a standalone HTML report with the histogram,
// a per-window latency chart, and threshold outcomes.
func GenerateHTMLReport(w io.Writer, r Report, history []metrics.Window, thresholdResults []threshold.Result) error {
	var thresholdSummary *ThresholdSummary
	if len(thresholdResults) > 0 {
		failed := threshold.Failed(thresholdResults)
		thresholdSummary = &ThresholdSummary{
			Total:   len(thresholdResults),
			Passed:  len(thresholdResults) - failed,
			Failed:  failed,
			Results: thresholdResults,
		}
	}

	var buckets []HTMLBucket
	if r.Histogram != nil {
		peak := r.Histogram.Peak()
		for i, count := range r.Histogram.Counts {
			lo, hi := r.Histogram.Bounds(i)
			b := HTMLBucket{
				LoTicks: lo,
				HiTicks: hi,
				LoMs:    r.Stats.Time(lo),
				HiMs:    r.Stats.Time(hi),
				Count:   count,
			}
			if peak > 0 {
				b.Percent = float64(count) * 100 / float64(peak)
			}
			buckets = append(buckets, b)
		}
	}

	historyJSON, err := json.Marshal(historyPoints(history))
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Report:           r,
		Buckets:          buckets,
		ThresholdResults: thresholdResults,
		ThresholdSummary: thresholdSummary,
		HistoryJSON:      string(historyJSON),
		HasHistory:       len(history) > 0,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatMs": func(f float64) string {
			return fmt.Sprintf("%.3f", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>midilat Round-Trip Latency Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: system-ui, sans-serif; background: #f4f5f7; color: #1f2933; line-height: 1.5; padding: 24px; }
        .container { max-width: 1200px; margin: 0 auto; background: #fff; border-radius: 6px; box-shadow: 0 1px 6px rgba(0,0,0,0.08); }
        header { background: #243b53; color: #fff; padding: 24px 32px; border-radius: 6px 6px 0 0; }
        header h1 { font-size: 1.6rem; margin-bottom: 6px; }
        header .meta { font-size: 0.85rem; opacity: 0.85; }
        .content { padding: 32px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 16px; margin-bottom: 32px; }
        .card { background: #f8fafc; border-radius: 6px; padding: 16px; border-top: 3px solid #486581; }
        .card.success { border-top-color: #27ab83; }
        .card.error { border-top-color: #e12d39; }
        .card h3 { font-size: 0.8rem; color: #627d98; text-transform: uppercase; margin-bottom: 6px; }
        .card .value { font-size: 1.7rem; font-weight: 600; }
        .card .subvalue { font-size: 0.8rem; color: #627d98; }
        .section { margin-bottom: 32px; }
        .section h2 { font-size: 1.25rem; margin-bottom: 12px; padding-bottom: 6px; border-bottom: 1px solid #d9e2ec; }
        .chart-container { border: 1px solid #d9e2ec; border-radius: 6px; padding: 16px; }
        .chart-container h3 { font-size: 1rem; margin-bottom: 10px; color: #486581; }
        .chart { width: 100%; height: 300px; }
        table { width: 100%; border-collapse: collapse; font-variant-numeric: tabular-nums; }
        th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #e4e7eb; }
        th { background: #f0f4f8; font-size: 0.8rem; color: #486581; text-transform: uppercase; }
        .badge { padding: 2px 10px; border-radius: 10px; font-size: 0.8rem; font-weight: 600; }
        .badge-success { background: #c6f7e2; color: #014d40; }
        .badge-error { background: #ffe3e3; color: #8a041a; }
        .bar { background: #486581; height: 12px; border-radius: 2px; min-width: 2px; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>midilat Round-Trip Latency Report</h1>
            <div class="meta">Run {{.Report.Stats.RunID}}</div>
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Report.Stats.Duration}} | {{.Report.Stats.SampleRate}} Hz, {{.Report.Stats.Period}} frames per period</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Samples</h3>
                    <div class="value">{{.Report.Stats.Samples}}</div>
                    <div class="subvalue">{{.Report.Markers.Sent}} markers sent</div>
                </div>
                <div class="card success">
                    <h3>Mean Latency</h3>
                    <div class="value">{{formatMs .Report.Stats.MeanMs}} ms</div>
                    <div class="subvalue">{{formatFloat .Report.Stats.Mean}} frames</div>
                </div>
                <div class="card">
                    <h3>Jitter (Std Dev)</h3>
                    <div class="value">{{formatMs .Report.Stats.StdDevMs}} ms</div>
                    <div class="subvalue">{{formatFloat .Report.Stats.StdDev}} frames</div>
                </div>
                <div class="card error">
                    <h3>Dropped</h3>
                    <div class="value">{{.Report.Markers.Dropped}}</div>
                    <div class="subvalue">queue overflow</div>
                </div>
            </div>

            {{if .HasHistory}}
            <div class="section">
                <h2>Latency Over Time</h2>
                <div class="chart-container">
                    <h3>Window Min / Mean / Max (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <div class="section">
                <h2>Latency Statistics</h2>
                <table>
                    <thead>
                        <tr><th>Statistic</th><th>Frames</th><th>ms</th></tr>
                    </thead>
                    <tbody>
                        <tr><td>Min</td><td>{{.Report.Stats.Min}}</td><td>{{formatMs .Report.Stats.MinMs}}</td></tr>
                        <tr><td>Max</td><td>{{.Report.Stats.Max}}</td><td>{{formatMs .Report.Stats.MaxMs}}</td></tr>
                        <tr><td>Range</td><td>{{.Report.Stats.Range}}</td><td>{{formatMs .Report.Stats.RangeMs}}</td></tr>
                        <tr><td>P50</td><td>{{.Report.Stats.P50}}</td><td>{{formatMs .Report.Stats.P50Ms}}</td></tr>
                        <tr><td>P90</td><td>{{.Report.Stats.P90}}</td><td>{{formatMs .Report.Stats.P90Ms}}</td></tr>
                        <tr><td>P99</td><td>{{.Report.Stats.P99}}</td><td>{{formatMs .Report.Stats.P99Ms}}</td></tr>
                        <tr><td>Expected (port latency)</td><td>{{.Report.Expected}}</td><td>{{formatMs .Report.ExpectedMs}}</td></tr>
                        <tr><td>Non-device</td><td>{{formatFloat .Report.NonDevice}}</td><td>{{formatMs .Report.NonDeviceMs}}</td></tr>
                    </tbody>
                </table>
            </div>

            {{if .Buckets}}
            <div class="section">
                <h2>Histogram</h2>
                <table>
                    <thead>
                        <tr><th>Frames</th><th>ms</th><th>Count</th><th style="width: 50%">Distribution</th></tr>
                    </thead>
                    <tbody>
                        {{range .Buckets}}
                        <tr>
                            <td>{{formatFloat .LoTicks}} - {{formatFloat .HiTicks}}</td>
                            <td>{{formatMs .LoMs}} - {{formatMs .HiMs}}</td>
                            <td>{{.Count}}</td>
                            <td>{{if .Count}}<div class="bar" style="width: {{formatFloat .Percent}}%"></div>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold.Raw}}</td>
                            <td>{{.Threshold.Metric}} ({{.Threshold.Aggregate}})</td>
                            <td>{{.Threshold.Operator}} {{formatFloat .Threshold.Value}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .HasHistory}}
    <script>
        const history = JSON.parse({{.HistoryJSON}});
        if (history && history.length > 0) {
            const data = [
                history.map(d => d.t),
                history.map(d => d.min_ms),
                history.map(d => d.mean_ms),
                history.map(d => d.max_ms)
            ];
            new uPlot({
                title: "Round-Trip Latency per Window",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Time (s)" },
                    { label: "Min", stroke: "#10b981", width: 2 },
                    { label: "Mean", stroke: "#667eea", width: 2 },
                    { label: "Max", stroke: "#ef4444", width: 2 }
                ],
                axes: [
                    { label: "Time (seconds)" },
                    { label: "Latency (ms)" }
                ]
            }, data, document.getElementById('latency-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
