// Package knn implements k-nearest-neighbour regression of multi-output
// targets on dense feature matrices.
package knn

import (
	"fmt"
	"math"
)

// Weighting schemes
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// Neighbour search algorithms
const (
	AlgorithmAuto   = "auto"
	AlgorithmBrute  = "brute"
	AlgorithmKDTree = "kd_tree"
)

// Distance metrics
const (
	MetricMinkowski = "minkowski"
	MetricEuclidean = "euclidean"
	MetricManhattan = "manhattan"
	MetricChebyshev = "chebyshev"
)

// Config holds the regressor hyperparameters. A Config is a value and is
// never modified by the regressor; each call to New builds an independent
// model from it.
type Config struct {
	Neighbors int     `json:"n_neighbors" yaml:"n_neighbors"`
	Weights   string  `json:"weights" yaml:"weights"`
	Algorithm string  `json:"algorithm" yaml:"algorithm"`
	LeafSize  int     `json:"leaf_size" yaml:"leaf_size"` // validated and recorded with a run; does not change the search
	P         float64 `json:"p" yaml:"p"`                 // Minkowski power, used when Metric is minkowski
	Metric    string  `json:"metric" yaml:"metric"`
	Jobs      int     `json:"n_jobs" yaml:"n_jobs"` // max goroutines used by Predict
}

// DefaultConfig returns 5 uniformly weighted neighbours under the Euclidean
// (Minkowski p=2) metric, predicted on a single goroutine.
func DefaultConfig() Config {
	return Config{
		Neighbors: 5,
		Weights:   WeightsUniform,
		Algorithm: AlgorithmAuto,
		LeafSize:  30,
		P:         2,
		Metric:    MetricMinkowski,
		Jobs:      1,
	}
}

// Validate checks that the configuration values are valid.
func (c Config) Validate() error {
	if c.Neighbors < 1 {
		return fmt.Errorf("n_neighbors must be at least 1, got %d", c.Neighbors)
	}
	switch c.Weights {
	case WeightsUniform, WeightsDistance:
	default:
		return fmt.Errorf("unknown weights %q (want %s or %s)", c.Weights, WeightsUniform, WeightsDistance)
	}
	switch c.Metric {
	case MetricMinkowski:
		if c.P < 1 || math.IsNaN(c.P) {
			return fmt.Errorf("p must be >= 1 for the minkowski metric, got %g", c.P)
		}
	case MetricEuclidean, MetricManhattan, MetricChebyshev:
	default:
		return fmt.Errorf("unknown metric %q", c.Metric)
	}
	switch c.Algorithm {
	case AlgorithmAuto, AlgorithmBrute:
	case AlgorithmKDTree:
		if c.power() != 2 {
			return fmt.Errorf("algorithm %s requires a euclidean metric, got %s with p=%g", AlgorithmKDTree, c.Metric, c.power())
		}
	default:
		return fmt.Errorf("unknown algorithm %q", c.Algorithm)
	}
	if c.LeafSize < 1 {
		return fmt.Errorf("leaf_size must be at least 1, got %d", c.LeafSize)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("n_jobs must be at least 1, got %d", c.Jobs)
	}
	return nil
}

// power returns the Minkowski power the metric corresponds to.
func (c Config) power() float64 {
	switch c.Metric {
	case MetricEuclidean:
		return 2
	case MetricManhattan:
		return 1
	case MetricChebyshev:
		return math.Inf(1)
	default:
		return c.P
	}
}

// useTree reports whether neighbour queries go through the kd-tree.
func (c Config) useTree() bool {
	switch c.Algorithm {
	case AlgorithmKDTree:
		return true
	case AlgorithmAuto:
		return c.power() == 2
	default:
		return false
	}
}
