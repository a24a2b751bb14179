package evaluation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
)

// Metric names, in summary order.
const (
	MetricMeanAbsoluteError = "mean_absolute_error"
	MetricStdDev            = "std_dev_distance_error"
	MetricMeanSquaredError  = "mean_squared_error"
	MetricPercentile25      = "percentile_25"
	MetricPercentile50      = "percentile_50"
	MetricPercentile75      = "percentile_75"
	MetricPercentile90      = "percentile_90"
	MetricPercentile95      = "percentile_95"
	MetricMin               = "min"
	MetricMax               = "max"
)

// MetricNames lists every metric in the order Summarize reports them.
var MetricNames = []string{
	MetricMeanAbsoluteError,
	MetricStdDev,
	MetricMeanSquaredError,
	MetricPercentile25,
	MetricPercentile50,
	MetricPercentile75,
	MetricPercentile90,
	MetricPercentile95,
	MetricMin,
	MetricMax,
}

// ErrEmptyResultSet is returned when summarising zero errors.
var ErrEmptyResultSet = errors.New("empty result set")

// Metric is one named summary statistic.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Summary is an ordered set of metrics.
type Summary []Metric

// Get returns the value of the named metric.
func (s Summary) Get(name string) (float64, bool) {
	for _, m := range s {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Names returns the metric names in order.
func (s Summary) Names() []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = m.Name
	}
	return out
}

// Values returns the metric values in order.
func (s Summary) Values() []float64 {
	out := make([]float64, len(s))
	for i, m := range s {
		out[i] = m.Value
	}
	return out
}

// ScenarioSummary ties a summary to the scenario it was computed for.
type ScenarioSummary struct {
	Scenario string
	Summary  Summary
}

// Summarize reduces the error column of an Evaluate result.
func Summarize(result *dataset.Table) (Summary, error) {
	return SummarizeColumn(result, DefaultErrorColumn)
}

// SummarizeColumn reduces the named error column of result.
func SummarizeColumn(result *dataset.Table, column string) (Summary, error) {
	if result == nil {
		return nil, ErrEmptyResultSet
	}
	errs, err := result.Float(column)
	if err != nil {
		return nil, err
	}
	return SummarizeErrors(errs)
}

// SummarizeErrors computes the distance error summary of errs.
//
// mean_absolute_error is the plain mean of the distances and
// mean_squared_error is the mean squared difference to an all-zero
// reference, kept in that form so values stay comparable with earlier runs.
// Percentiles interpolate linearly between closest ranks. The standard
// deviation uses n-1 and is NaN for a single error.
func SummarizeErrors(errs []float64) (Summary, error) {
	n := len(errs)
	if n == 0 {
		return nil, ErrEmptyResultSet
	}

	sorted := append([]float64(nil), errs...)
	sort.Float64s(sorted)

	baseline := make([]float64, n)
	diff := make([]float64, n)
	floats.SubTo(diff, baseline, errs)
	mse := floats.Dot(diff, diff) / float64(n)

	return Summary{
		{MetricMeanAbsoluteError, stat.Mean(errs, nil)},
		{MetricStdDev, stat.StdDev(errs, nil)},
		{MetricMeanSquaredError, mse},
		{MetricPercentile25, Percentile(sorted, 0.25)},
		{MetricPercentile50, Percentile(sorted, 0.50)},
		{MetricPercentile75, Percentile(sorted, 0.75)},
		{MetricPercentile90, Percentile(sorted, 0.90)},
		{MetricPercentile95, Percentile(sorted, 0.95)},
		{MetricMin, floats.Min(errs)},
		{MetricMax, floats.Max(errs)},
	}, nil
}

// Percentile returns the q quantile (0 <= q <= 1) of ascending sorted
// values, interpolating linearly between the two closest ranks.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 || q < 0 || q > 1 {
		return math.NaN()
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Format renders the summary on one line for logs.
func (s Summary) Format() string {
	var b strings.Builder
	for i, m := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%.4f", m.Name, m.Value)
	}
	return b.String()
}
