// Package evaluation runs leave-one-location-out k-NN positioning
// experiments and summarises their distance errors.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
	"github.com/petersaints/YanuX-Cruncher/internal/knn"
	"github.com/petersaints/YanuX-Cruncher/internal/monitoring"
)

// Default result column naming.
const (
	DefaultPredictedSuffix = "_predicted"
	DefaultErrorColumn     = "error"
)

// ErrInvalidConfig is returned before any fold runs when the columns,
// datasets or regressor settings cannot be evaluated.
var ErrInvalidConfig = errors.New("invalid evaluation configuration")

type options struct {
	testData        *dataset.Table
	workers         int
	predictedSuffix string
	errorColumn     string
}

// Option customises Evaluate.
type Option func(*options)

// WithTestData draws held-out targets from test instead of the training data.
func WithTestData(test *dataset.Table) Option {
	return func(o *options) { o.testData = test }
}

// WithWorkers evaluates up to n folds concurrently. The result is the same
// as sequential evaluation.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithPredictedSuffix names predicted coordinate columns <coord><suffix>.
func WithPredictedSuffix(suffix string) Option {
	return func(o *options) { o.predictedSuffix = suffix }
}

// WithErrorColumn names the distance error column.
func WithErrorColumn(name string) Option {
	return func(o *options) { o.errorColumn = name }
}

// Evaluate runs leave-one-location-out regression over data.
//
// Each distinct combination of values in coords is one fold. For every fold
// a fresh regressor is fitted on all rows of data outside the fold and
// predicts the fold's rows (taken from the test data when given). The result
// holds, per predicted row, the true coordinates, the predicted coordinates
// and the Euclidean distance between them. Rows are grouped by fold in key
// order.
func Evaluate(data *dataset.Table, features, coords []string, cfg knn.Config, opts ...Option) (*dataset.Table, error) {
	o := options{
		workers:         1,
		predictedSuffix: DefaultPredictedSuffix,
		errorColumn:     DefaultErrorColumn,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := validate(data, features, coords, cfg, &o); err != nil {
		return nil, err
	}

	start := time.Now()
	folds, err := data.GroupBy(coords...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	source, targets := data, folds
	if o.testData != nil {
		source = o.testData
		if targets, err = o.testData.GroupBy(coords...); err != nil {
			return nil, fmt.Errorf("%w: test data: %v", ErrInvalidConfig, err)
		}
	}

	ev := &foldEvaluator{
		data:     data,
		source:   source,
		folds:    folds,
		targets:  targets,
		features: features,
		coords:   coords,
		cfg:      cfg,
		opts:     o,
	}
	results := make([]*dataset.Table, folds.Len())

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(o.workers)
	for i := range folds.Groups {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := ev.run(i)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := ev.emptyResult()
	parts := []*dataset.Table{out}
	for _, res := range results {
		if res != nil {
			parts = append(parts, res)
		}
	}
	out, err = dataset.Concat(parts...)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("evaluated %d folds, %d predictions in %s", folds.Len(), out.Len(), time.Since(start).Round(time.Millisecond))
	return out, nil
}

func validate(data *dataset.Table, features, coords []string, cfg knn.Config, o *options) error {
	if data == nil || data.Len() == 0 {
		return fmt.Errorf("%w: data has no rows", ErrInvalidConfig)
	}
	if len(coords) != 2 {
		return fmt.Errorf("%w: need exactly 2 coordinate columns, got %d", ErrInvalidConfig, len(coords))
	}
	if coords[0] == coords[1] {
		return fmt.Errorf("%w: coordinate columns must differ, got %q twice", ErrInvalidConfig, coords[0])
	}
	if len(features) == 0 {
		return fmt.Errorf("%w: no feature columns", ErrInvalidConfig)
	}
	if o.workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, o.workers)
	}
	if o.predictedSuffix == "" || o.errorColumn == "" {
		return fmt.Errorf("%w: result column names must not be empty", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := checkColumns(data, "data", features, coords, false); err != nil {
		return err
	}
	if o.testData != nil {
		if err := checkColumns(o.testData, "test data", features, coords, true); err != nil {
			return err
		}
	}
	return nil
}

// checkColumns requires every feature and coordinate column to be numeric
// and free of NaN. With nanCoords, NaN coordinates are accepted since such
// rows never match a fold.
func checkColumns(t *dataset.Table, label string, features, coords []string, nanCoords bool) error {
	check := func(col string, allowNaN bool) error {
		v, err := t.Float(col)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, label, err)
		}
		if allowNaN {
			return nil
		}
		if floats.HasNaN(v) {
			return fmt.Errorf("%w: %s: column %q contains missing values", ErrInvalidConfig, label, col)
		}
		return nil
	}
	for _, c := range features {
		if err := check(c, false); err != nil {
			return err
		}
	}
	for _, c := range coords {
		if err := check(c, nanCoords); err != nil {
			return err
		}
	}
	return nil
}

type foldEvaluator struct {
	data     *dataset.Table
	source   *dataset.Table
	folds    *dataset.GroupIndex
	targets  *dataset.GroupIndex
	features []string
	coords   []string
	cfg      knn.Config
	opts     options
}

// run evaluates fold i. A fold without target rows returns nil.
func (e *foldEvaluator) run(i int) (*dataset.Table, error) {
	fold := e.folds.Groups[i]
	targetRows, ok := e.targets.Lookup(fold.Key)
	if !ok || len(targetRows) == 0 {
		return nil, nil
	}

	train := e.data.Take(complement(fold.Rows, e.data.Len()))
	trainX, err := train.Matrix(e.features)
	if err != nil {
		return nil, err
	}
	trainY, err := train.Matrix(e.coords)
	if err != nil {
		return nil, err
	}

	reg, err := knn.New(e.cfg)
	if err != nil {
		return nil, err
	}
	if err := reg.Fit(trainX, trainY); err != nil {
		return nil, fmt.Errorf("fold %s: %w", fold.Key, err)
	}

	target := e.source.Take(targetRows)
	targetX, err := target.Matrix(e.features)
	if err != nil {
		return nil, err
	}
	pred, err := reg.Predict(targetX)
	if err != nil {
		return nil, fmt.Errorf("fold %s: %w", fold.Key, err)
	}
	monitoring.Verbosef("fold %s: %d training rows, %d predictions", fold.Key, train.Len(), target.Len())
	return e.result(target, pred)
}

func (e *foldEvaluator) result(target *dataset.Table, pred *mat.Dense) (*dataset.Table, error) {
	n := target.Len()
	truth := make([][]float64, len(e.coords))
	for j, c := range e.coords {
		v, err := target.Float(c)
		if err != nil {
			return nil, err
		}
		truth[j] = v
	}

	distances := make([]float64, n)
	actual := make([]float64, len(e.coords))
	for i := 0; i < n; i++ {
		for j := range e.coords {
			actual[j] = truth[j][i]
		}
		distances[i] = floats.Distance(pred.RawRowView(i), actual, 2)
	}

	out := dataset.New()
	for j, c := range e.coords {
		if err := out.AddFloat(c, truth[j]); err != nil {
			return nil, err
		}
	}
	for j, c := range e.coords {
		if err := out.AddFloat(c+e.opts.predictedSuffix, mat.Col(nil, j, pred)); err != nil {
			return nil, err
		}
	}
	if err := out.AddFloat(e.opts.errorColumn, distances); err != nil {
		return nil, err
	}
	return out, nil
}

// emptyResult is a zero-row table with the result columns.
func (e *foldEvaluator) emptyResult() *dataset.Table {
	out := dataset.New()
	for _, c := range e.coords {
		_ = out.AddFloat(c, nil)
	}
	for _, c := range e.coords {
		_ = out.AddFloat(c+e.opts.predictedSuffix, nil)
	}
	_ = out.AddFloat(e.opts.errorColumn, nil)
	return out
}

// complement returns the rows in [0, n) that are not in rows. rows must be
// sorted ascending.
func complement(rows []int, n int) []int {
	out := make([]int, 0, n-len(rows))
	next := 0
	for i := 0; i < n; i++ {
		if next < len(rows) && rows[next] == i {
			next++
			continue
		}
		out = append(out, i)
	}
	return out
}
