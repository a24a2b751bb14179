package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petersaints/YanuX-Cruncher/internal/config"
	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
	"github.com/petersaints/YanuX-Cruncher/internal/db"
	"github.com/petersaints/YanuX-Cruncher/internal/fsutil"
)

// Four locations on one floor, three samples each, recorded in two walks.
const survey = `x,y,floor,ap1,ap2,filename
0,0,1,-40,-80,walk-a.csv
0,0,1,-42,-78,walk-b.csv
0,0,1,-41,,walk-a.csv
0,1,1,-50,-70,walk-b.csv
0,1,1,-52,-72,walk-a.csv
0,1,1,-51,-71,walk-b.csv
1,0,1,-60,-60,walk-a.csv
1,0,1,-61,-62,walk-b.csv
1,0,1,-59,-61,walk-a.csv
1,1,1,-70,-50,walk-b.csv
1,1,1,-72,-52,walk-a.csv
1,1,1,-71,-51,walk-b.csv
`

func testPipeline(t *testing.T, k int) (*pipeline, *fsutil.MemoryFileSystem) {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile("survey.csv", []byte(survey))

	cfg := config.EmptyEvaluationConfig()
	fill := -100.0
	cfg.Neighbors = &k
	cfg.FillMissing = &fill
	cfg.Aggregates = []string{"raw", "mean"}
	cfg.FilenamePrefixes = []string{"walk-"}
	require.NoError(t, cfg.Validate())

	return &pipeline{
		fs:        fs,
		cfg:       cfg,
		dataPath:  "survey.csv",
		outDir:    "out",
		prefix:    "exp_",
		reportDir: "report",
	}, fs
}

func TestPipelineRun(t *testing.T) {
	p, fs := testPipeline(t, 3)

	failed, err := p.run()
	require.NoError(t, err)
	assert.Empty(t, failed)

	for _, name := range []string{
		"out/scenarios/exp_full_data.csv",
		"out/scenarios/exp_full_groupby_mean_data.csv",
		"out/scenarios/exp_filename_startswith_data_walk-.csv",
		"out/scenarios/exp_filename_startswith_groupby_mean_data_walk-.csv",
		"out/results/exp_full_data.csv",
		"out/results/exp_full_groupby_mean_data.csv",
		"out/exp_summary.csv",
		"report/exp_error_cdf.png",
		"report/exp_metrics.html",
	} {
		assert.True(t, fs.Exists(name), "missing %s", name)
	}

	summary, err := fs.ReadFile("out/exp_summary.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(summary)), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "scenario_name,mean_absolute_error,"))
	assert.True(t, strings.HasPrefix(lines[1], "exp_full_data,"))

	data, err := fs.ReadFile("out/results/exp_full_data.csv")
	require.NoError(t, err)
	result, err := dataset.ReadCSV(bytes.NewReader(data), dataset.ReadOptions{StringColumns: []string{"scenario_name"}})
	require.NoError(t, err)
	assert.Equal(t, 12, result.Len())
	assert.Equal(t, []string{"x", "y", "x_predicted", "y_predicted", "error", "scenario_name"}, result.Columns())
}

func TestPipelineScenarioFailures(t *testing.T) {
	// Mean scenarios hold one row per location, leaving 3 training rows per
	// fold, fewer than 5 neighbours.
	p, fs := testPipeline(t, 5)

	failed, err := p.run()
	require.NoError(t, err)
	assert.Equal(t, []string{"full_groupby_mean_data", "filename_startswith_groupby_mean_data_walk-"}, failed)
	assert.True(t, fs.Exists("out/results/exp_full_data.csv"))
	assert.False(t, fs.Exists("out/results/exp_full_groupby_mean_data.csv"))
}

func TestPipelineNothingEvaluated(t *testing.T) {
	p, fs := testPipeline(t, 50)

	failed, err := p.run()
	assert.ErrorContains(t, err, "none of the 4 scenarios")
	assert.Len(t, failed, 4)
	assert.False(t, fs.Exists("out/exp_summary.csv"))
}

func TestPipelineMissingData(t *testing.T) {
	p, _ := testPipeline(t, 3)
	p.dataPath = "missing.csv"
	_, err := p.run()
	assert.Error(t, err)
}

func TestPipelineRecordsRun(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	p, _ := testPipeline(t, 3)
	p.db = database
	p.reportDir = ""

	_, err = p.run()
	require.NoError(t, err)

	runs, err := database.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	summaries, err := database.Summaries(runs[0].ID)
	require.NoError(t, err)
	require.Len(t, summaries, 4)
	assert.Equal(t, "full_data", summaries[0].Scenario)

	n, err := database.PredictionCount(runs[0].ID, "full_data")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestSelectFeatures(t *testing.T) {
	samples, err := dataset.ReadCSV(strings.NewReader(survey), dataset.DefaultReadOptions())
	require.NoError(t, err)

	prefix := "ap2"
	tests := []struct {
		name    string
		cfg     *config.EvaluationConfig
		want    []string
		wantErr bool
	}{
		{"all numeric", &config.EvaluationConfig{}, []string{"ap1", "ap2"}, false},
		{"prefix", &config.EvaluationConfig{FeaturePrefix: &prefix}, []string{"ap2"}, false},
		{"explicit", &config.EvaluationConfig{Features: []string{"ap2", "ap1"}}, []string{"ap2", "ap1"}, false},
		{"explicit string column", &config.EvaluationConfig{Features: []string{"filename"}}, nil, true},
		{"explicit missing column", &config.EvaluationConfig{Features: []string{"ap9"}}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectFeatures(samples, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildScenarios(t *testing.T) {
	samples, err := dataset.ReadCSV(strings.NewReader(survey), dataset.DefaultReadOptions())
	require.NoError(t, err)

	suffix := "mw"
	cfg := &config.EvaluationConfig{
		Aggregates:     []string{"raw", "max"},
		Partials:       []float64{0.5},
		PathDirection:  []string{"mean"},
		ScenarioSuffix: &suffix,
	}
	set, err := buildScenarios(samples, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"full_data_mw",
		"full_groupby_max_data_mw",
		"partial_data_fraction=0.5_mw",
		"partial_groupby_max_data_fraction=0.5_mw",
		"path_direction_aggregated_mean_data_mw",
	}, set.Names())
}
