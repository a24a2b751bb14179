package persist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
	"github.com/petersaints/YanuX-Cruncher/internal/evaluation"
	"github.com/petersaints/YanuX-Cruncher/internal/fsutil"
	"github.com/petersaints/YanuX-Cruncher/internal/scenario"
)

func resultTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl := dataset.New()
	require.NoError(t, tbl.AddFloat("x", []float64{0, 1}))
	require.NoError(t, tbl.AddFloat("y", []float64{0, 0}))
	require.NoError(t, tbl.AddFloat("error", []float64{1.5, 0.25}))
	return tbl
}

func TestSaveResult(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: mfs, Dir: "out/results", Prefix: "knn5_"}

	tbl := resultTable(t)
	require.NoError(t, w.SaveResult("full_data", tbl))

	data, err := mfs.ReadFile("out/results/knn5_full_data.csv")
	require.NoError(t, err)
	assert.Equal(t, "x,y,error,scenario_name\n0,0,1.5,knn5_full_data\n1,0,0.25,knn5_full_data\n", string(data))

	assert.False(t, tbl.Has(ColumnScenarioName), "input table must not be modified")
}

func TestSaveScenarios(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: mfs, Dir: "out"}

	set := scenario.NewSet()
	require.NoError(t, set.Add("full_data", resultTable(t)))
	require.NoError(t, set.Add("partial_data_fraction=0.5", resultTable(t)))
	require.NoError(t, w.SaveScenarios(set))

	assert.Equal(t, []string{"out/full_data.csv", "out/partial_data_fraction=0.5.csv"}, mfs.Files())

	data, err := mfs.ReadFile("out/partial_data_fraction=0.5.csv")
	require.NoError(t, err)
	saved, err := dataset.ReadCSV(strings.NewReader(string(data)), dataset.ReadOptions{StringColumns: []string{ColumnScenarioName}})
	require.NoError(t, err)
	names, err := saved.String(ColumnScenarioName)
	require.NoError(t, err)
	assert.Equal(t, []string{"partial_data_fraction=0.5", "partial_data_fraction=0.5"}, names)
}

func TestSaveSummaries(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: mfs, Dir: "out", Prefix: "run1_"}

	full, err := evaluation.SummarizeErrors([]float64{0, 1, 2, 3, 4})
	require.NoError(t, err)
	single, err := evaluation.SummarizeErrors([]float64{2})
	require.NoError(t, err)

	err = w.SaveSummaries("summary", []evaluation.ScenarioSummary{
		{Scenario: "full_data", Summary: full},
		{Scenario: "partial_data_fraction=0.5", Summary: single},
	})
	require.NoError(t, err)

	data, err := mfs.ReadFile("out/run1_summary.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "scenario_name,"+strings.Join(evaluation.MetricNames, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "run1_full_data,2,"), lines[1])
	// The std dev of a single error is undefined and written as an empty cell.
	assert.True(t, strings.HasPrefix(lines[2], "run1_partial_data_fraction=0.5,2,,4,"), lines[2])
}

func TestSaveSummariesMismatchedMetrics(t *testing.T) {
	w := &Writer{FS: fsutil.NewMemoryFileSystem(), Dir: "out"}
	full, err := evaluation.SummarizeErrors([]float64{1, 2})
	require.NoError(t, err)

	err = w.SaveSummaries("summary", []evaluation.ScenarioSummary{
		{Scenario: "a", Summary: full},
		{Scenario: "b", Summary: full[:3]},
	})
	assert.Error(t, err)
}

func TestSaveRejectsUnsafeNames(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := &Writer{FS: mfs, Dir: "out"}

	for _, name := range []string{"", "../escape", "nested/name"} {
		assert.Error(t, w.SaveResult(name, resultTable(t)), "name %q", name)
	}
	assert.Empty(t, mfs.Files())
}

func TestSaveResultDuplicateColumn(t *testing.T) {
	w := &Writer{FS: fsutil.NewMemoryFileSystem(), Dir: "out"}
	tbl := resultTable(t)
	tagged, err := tbl.WithString(ColumnScenarioName, "old")
	require.NoError(t, err)
	assert.Error(t, w.SaveResult("full_data", tagged))
}
