package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/petersaints/YanuX-Cruncher/internal/evaluation"
)

// DefaultChartMetrics are the metrics RenderMetricsChart compares when none
// are given.
var DefaultChartMetrics = []string{
	evaluation.MetricMeanAbsoluteError,
	evaluation.MetricPercentile50,
	evaluation.MetricPercentile90,
}

// RenderMetricsChart writes an HTML page with one grouped bar chart: a group
// per scenario and a bar per metric. Undefined (NaN) values are left blank.
func RenderMetricsChart(w io.Writer, summaries []evaluation.ScenarioSummary, metrics []string) error {
	if len(summaries) == 0 {
		return fmt.Errorf("no summaries to chart")
	}
	if len(metrics) == 0 {
		metrics = DefaultChartMetrics
	}

	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Scenario
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scenario metrics", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Positioning error by scenario", Subtitle: fmt.Sprintf("scenarios=%d", len(summaries))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Error (m)"}),
	)
	bar.SetXAxis(names)

	for _, metric := range metrics {
		data := make([]opts.BarData, len(summaries))
		for i, s := range summaries {
			v, ok := s.Summary.Get(metric)
			if !ok {
				return fmt.Errorf("scenario %s has no metric %s", s.Scenario, metric)
			}
			if !math.IsNaN(v) {
				data[i] = opts.BarData{Value: v}
			}
		}
		bar.AddSeries(metric, data)
	}

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}
