package main

import (
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/petersaints/YanuX-Cruncher/internal/config"
	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
	"github.com/petersaints/YanuX-Cruncher/internal/db"
	"github.com/petersaints/YanuX-Cruncher/internal/evaluation"
	"github.com/petersaints/YanuX-Cruncher/internal/fsutil"
	"github.com/petersaints/YanuX-Cruncher/internal/persist"
	"github.com/petersaints/YanuX-Cruncher/internal/report"
	"github.com/petersaints/YanuX-Cruncher/internal/scenario"
)

// Output names, relative to the output and report directories.
const (
	scenariosDir     = "scenarios"
	resultsDir       = "results"
	summaryName      = "summary"
	cdfPlotName      = "error_cdf.png"
	metricsChartName = "metrics.html"
)

// pipeline is one evaluation run: load the survey, build scenarios, evaluate
// each one and write the outputs.
type pipeline struct {
	fs           fsutil.FileSystem
	cfg          *config.EvaluationConfig
	dataPath     string
	testDataPath string
	outDir       string
	prefix       string
	reportDir    string

	// db is optional; when set every summary and prediction is stored
	// under a new run.
	db *db.DB
}

// run evaluates every scenario and returns the names of those that failed.
// A failing scenario is logged and skipped; err is only returned when
// nothing could be evaluated or an output could not be written.
func (p *pipeline) run() (failed []string, err error) {
	start := time.Now()
	cfg := p.cfg

	samples, err := p.readTable(p.dataPath)
	if err != nil {
		return nil, err
	}
	if ratio := cfg.GetSubsetRatio(); ratio < 1 {
		rng := rand.New(rand.NewSource(cfg.GetSeed()))
		samples, err = scenario.SubsetLocations(samples, ratio, rng, cfg.GetGroupColumns())
		if err != nil {
			return nil, err
		}
		log.Printf("kept %d samples after subsetting %.0f%% of locations", samples.Len(), ratio*100)
	}

	featureCols, err := selectFeatures(samples, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("using %d feature columns", len(featureCols))
	if samples, err = p.preprocess(samples, featureCols); err != nil {
		return nil, err
	}

	var test *dataset.Table
	if p.testDataPath != "" {
		if test, err = p.readTable(p.testDataPath); err != nil {
			return nil, err
		}
		if test, err = p.preprocess(test, featureCols); err != nil {
			return nil, fmt.Errorf("test data: %w", err)
		}
	}

	set, err := buildScenarios(samples, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("built %d scenarios from %d samples", set.Len(), samples.Len())

	scenarioWriter := &persist.Writer{FS: p.fs, Dir: filepath.Join(p.outDir, scenariosDir), Prefix: p.prefix}
	if err := scenarioWriter.SaveScenarios(set); err != nil {
		return nil, fmt.Errorf("save scenarios: %w", err)
	}

	var run *db.Run
	if p.db != nil {
		if run, err = p.db.CreateRun(cfg); err != nil {
			return nil, err
		}
		log.Printf("recording results under run %s", run.ID)
	}

	coordCols := cfg.GetCoords()
	opts := []evaluation.Option{evaluation.WithWorkers(cfg.GetWorkers())}
	if test != nil {
		opts = append(opts, evaluation.WithTestData(test))
	}
	resultWriter := &persist.Writer{FS: p.fs, Dir: filepath.Join(p.outDir, resultsDir), Prefix: p.prefix}

	var (
		summaries []evaluation.ScenarioSummary
		series    []report.Series
	)
	for _, sc := range set.Scenarios() {
		result, err := evaluation.Evaluate(sc.Data, featureCols, coordCols, cfg.KNN(), opts...)
		if err != nil {
			log.Printf("scenario %s failed: %v", sc.Name, err)
			failed = append(failed, sc.Name)
			continue
		}
		summary, err := evaluation.Summarize(result)
		if err != nil {
			log.Printf("scenario %s failed: %v", sc.Name, err)
			failed = append(failed, sc.Name)
			continue
		}
		log.Printf("%s: %s", sc.Name, summary.Format())

		if err := resultWriter.SaveResult(sc.Name, result); err != nil {
			return failed, err
		}
		named := evaluation.ScenarioSummary{Scenario: sc.Name, Summary: summary}
		if run != nil {
			if err := p.db.RecordSummary(run.ID, named); err != nil {
				return failed, err
			}
			if err := p.db.RecordPredictions(run.ID, sc.Name, result, predictionColumns(coordCols)); err != nil {
				return failed, err
			}
		}
		summaries = append(summaries, named)
		errs, _ := result.Float(evaluation.DefaultErrorColumn)
		series = append(series, report.Series{Name: sc.Name, Errors: errs})
	}

	if len(summaries) == 0 {
		return failed, fmt.Errorf("none of the %d scenarios could be evaluated", set.Len())
	}
	summaryWriter := &persist.Writer{FS: p.fs, Dir: p.outDir, Prefix: p.prefix}
	if err := summaryWriter.SaveSummaries(summaryName, summaries); err != nil {
		return failed, err
	}
	if err := p.writeReports(summaries, series); err != nil {
		return failed, err
	}

	log.Printf("evaluated %d scenarios in %s", len(summaries), time.Since(start).Round(time.Millisecond))
	return failed, nil
}

func (p *pipeline) readTable(path string) (*dataset.Table, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := dataset.ReadCSV(f, dataset.DefaultReadOptions())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// preprocess fills missing readings and converts signal units.
func (p *pipeline) preprocess(t *dataset.Table, featureCols []string) (*dataset.Table, error) {
	var err error
	if p.cfg.FillMissing != nil {
		if t, err = t.FillNaN(featureCols, *p.cfg.FillMissing); err != nil {
			return nil, err
		}
	}
	return scenario.ConvertUnits(t, featureCols, p.cfg.GetFromUnits(), p.cfg.GetToUnits())
}

func (p *pipeline) writeReports(summaries []evaluation.ScenarioSummary, series []report.Series) error {
	if p.reportDir == "" {
		return nil
	}
	if err := p.fs.MkdirAll(p.reportDir, 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := report.PlotErrorCDF(p.fs, filepath.Join(p.reportDir, p.prefix+cdfPlotName), series); err != nil {
		return fmt.Errorf("error CDF: %w", err)
	}

	path := filepath.Join(p.reportDir, p.prefix+metricsChartName)
	f, err := p.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := report.RenderMetricsChart(f, summaries, nil); err != nil {
		f.Close()
		return fmt.Errorf("metrics chart: %w", err)
	}
	return f.Close()
}

// selectFeatures returns the explicit feature list, else the numeric columns
// with the configured prefix, else every numeric column that is neither a
// coordinate nor a location column.
func selectFeatures(t *dataset.Table, cfg *config.EvaluationConfig) ([]string, error) {
	if len(cfg.Features) > 0 {
		for _, c := range cfg.Features {
			if !t.IsFloat(c) {
				return nil, fmt.Errorf("feature column %q is missing or not numeric", c)
			}
		}
		return cfg.Features, nil
	}

	var cols []string
	if prefix := cfg.GetFeaturePrefix(); prefix != "" {
		cols = t.ColumnsWithPrefix(prefix)
	} else {
		skip := make(map[string]bool)
		for _, c := range append(append([]string(nil), cfg.GetCoords()...), cfg.GetGroupColumns()...) {
			skip[c] = true
		}
		for _, c := range t.ColumnsWithPrefix("") {
			if !skip[c] {
				cols = append(cols, c)
			}
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no feature columns found")
	}
	return cols, nil
}

// buildScenarios derives every configured scenario from samples.
func buildScenarios(samples *dataset.Table, cfg *config.EvaluationConfig) (*scenario.Set, error) {
	set := scenario.NewSet()
	opts := scenario.Options{
		GroupColumns: cfg.GetGroupColumns(),
		Suffix:       cfg.GetScenarioSuffix(),
	}
	aggregates := cfg.GetAggregates()

	if err := scenario.Full(set, samples, aggregates, opts); err != nil {
		return nil, err
	}
	if len(cfg.Partials) > 0 {
		if err := scenario.Partial(set, samples, cfg.Partials, cfg.GetPartialFromEnd(), aggregates, opts); err != nil {
			return nil, err
		}
	}
	for _, prefix := range cfg.FilenamePrefixes {
		if err := scenario.FilenamePrefix(set, samples, prefix, aggregates, opts); err != nil {
			return nil, err
		}
	}
	if pd := cfg.GetPathDirection(); len(pd) > 0 {
		if err := scenario.PathDirection(set, samples, pd, opts); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func predictionColumns(coords []string) db.PredictionColumns {
	return db.PredictionColumns{
		X:          coords[0],
		Y:          coords[1],
		XPredicted: coords[0] + evaluation.DefaultPredictedSuffix,
		YPredicted: coords[1] + evaluation.DefaultPredictedSuffix,
		Error:      evaluation.DefaultErrorColumn,
	}
}
