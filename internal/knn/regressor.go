package knn

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
)

var (
	// ErrTrainingDataEmpty is returned by Fit when there are no training rows.
	ErrTrainingDataEmpty = errors.New("training data is empty")
	// ErrTooFewSamples is returned by Predict when the model holds fewer
	// training rows than the configured neighbour count.
	ErrTooFewSamples = errors.New("fewer training samples than neighbours")
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("regressor is not fitted")
)

// Regressor predicts targets as the (weighted) mean of the targets of the
// nearest training rows.
type Regressor struct {
	cfg  Config
	x    *mat.Dense
	y    *mat.Dense
	tree *kdtree.Tree
}

// New returns an unfitted regressor for cfg.
func New(cfg Config) (*Regressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Regressor{cfg: cfg}, nil
}

// Config returns the hyperparameters the regressor was built with.
func (r *Regressor) Config() Config { return r.cfg }

// Fit stores copies of the training features x and targets y. A nil x or y
// means zero rows.
func (r *Regressor) Fit(x, y *mat.Dense) error {
	if x == nil || y == nil {
		return ErrTrainingDataEmpty
	}
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	if xr == 0 {
		return ErrTrainingDataEmpty
	}
	if xr != yr {
		return fmt.Errorf("features have %d rows but targets have %d", xr, yr)
	}

	r.x = mat.DenseCopyOf(x)
	r.y = mat.DenseCopyOf(y)
	r.tree = nil
	if r.cfg.useTree() {
		pts := make(trainPoints, xr)
		for i := range pts {
			pts[i] = trainPoint{coords: r.x.RawRowView(i), row: i}
		}
		r.tree = kdtree.New(pts, false)
	}
	return nil
}

// Predict returns one row of predicted targets per row of x. A nil x yields
// a nil result.
func (r *Regressor) Predict(x *mat.Dense) (*mat.Dense, error) {
	if r.x == nil {
		return nil, ErrNotFitted
	}
	if x == nil {
		return nil, nil
	}
	n, cols := x.Dims()
	trainRows, trainCols := r.x.Dims()
	if cols != trainCols {
		return nil, fmt.Errorf("query has %d features, model was fitted with %d", cols, trainCols)
	}
	if trainRows < r.cfg.Neighbors {
		return nil, fmt.Errorf("%w: n_neighbors=%d, training rows=%d", ErrTooFewSamples, r.cfg.Neighbors, trainRows)
	}

	_, outputs := r.y.Dims()
	out := mat.NewDense(n, outputs, nil)

	var g errgroup.Group
	g.SetLimit(r.cfg.Jobs)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			query := mat.Row(nil, i, x)
			r.predictRow(query, out.RawRowView(i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// neighbour is a training row and its distance to the query.
type neighbour struct {
	row  int
	dist float64
}

func (r *Regressor) predictRow(query, dst []float64) {
	var nn []neighbour
	if r.tree != nil {
		nn = r.treeNeighbours(query)
	} else {
		nn = r.bruteNeighbours(query)
	}

	weights := make([]float64, len(nn))
	if r.cfg.Weights == WeightsDistance {
		exact := false
		for _, n := range nn {
			if n.dist == 0 {
				exact = true
				break
			}
		}
		for i, n := range nn {
			switch {
			case exact && n.dist == 0:
				weights[i] = 1
			case exact:
				weights[i] = 0
			default:
				weights[i] = 1 / n.dist
			}
		}
	} else {
		for i := range weights {
			weights[i] = 1
		}
	}

	total := floats.Sum(weights)
	for j := range dst {
		var sum float64
		for i, n := range nn {
			sum += weights[i] * r.y.At(n.row, j)
		}
		dst[j] = sum / total
	}
}

// bruteNeighbours scans every training row. Equal distances keep training
// row order.
func (r *Regressor) bruteNeighbours(query []float64) []neighbour {
	rows, _ := r.x.Dims()
	p := r.cfg.power()
	all := make([]neighbour, rows)
	for i := 0; i < rows; i++ {
		all[i] = neighbour{row: i, dist: floats.Distance(query, r.x.RawRowView(i), p)}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	return all[:r.cfg.Neighbors]
}

// treeNeighbours finds the k nearest rows through the kd-tree. Every row tied
// with the k-th distance is collected before truncating, so equal distances
// keep training row order as in bruteNeighbours.
func (r *Regressor) treeNeighbours(query []float64) []neighbour {
	q := trainPoint{coords: query, row: -1}
	nearest := kdtree.NewNKeeper(r.cfg.Neighbors)
	r.tree.NearestSet(nearest, q)

	var kth float64
	for _, cd := range nearest.Heap {
		if cd.Comparable != nil && cd.Dist > kth {
			kth = cd.Dist
		}
	}

	// The search bound is widened slightly so rows on a splitting plane at
	// exactly the k-th distance are visited; the filter below is exact.
	within := kdtree.NewDistKeeper(kth*(1+1e-9) + 1e-12)
	r.tree.NearestSet(within, q)

	nn := make([]neighbour, 0, len(within.Heap))
	for _, cd := range within.Heap {
		if cd.Comparable == nil || cd.Dist > kth {
			continue
		}
		// kd-tree distances are squared.
		nn = append(nn, neighbour{row: cd.Comparable.(trainPoint).row, dist: math.Sqrt(cd.Dist)})
	}
	sort.Slice(nn, func(a, b int) bool {
		if nn[a].dist != nn[b].dist {
			return nn[a].dist < nn[b].dist
		}
		return nn[a].row < nn[b].row
	})
	if len(nn) > r.cfg.Neighbors {
		nn = nn[:r.cfg.Neighbors]
	}
	return nn
}

// trainPoint is a training row stored in the kd-tree.
type trainPoint struct {
	coords []float64
	row    int
}

func (p trainPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(trainPoint)
	return p.coords[d] - q.coords[d]
}

func (p trainPoint) Dims() int { return len(p.coords) }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (p trainPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(trainPoint)
	var sum float64
	for i, v := range p.coords {
		d := v - q.coords[i]
		sum += d * d
	}
	return sum
}

type trainPoints []trainPoint

func (p trainPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p trainPoints) Len() int                      { return len(p) }
func (p trainPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}
func (p trainPoints) Pivot(d kdtree.Dim) int {
	return plane{points: p, dim: d}.Pivot()
}

// plane sorts training points along one dimension for tree construction.
type plane struct {
	points trainPoints
	dim    kdtree.Dim
}

func (p plane) Less(i, j int) bool { return p.points[i].coords[p.dim] < p.points[j].coords[p.dim] }
func (p plane) Swap(i, j int)      { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p plane) Len() int           { return len(p.points) }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{points: p.points[start:end], dim: p.dim}
}
