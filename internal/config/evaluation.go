// Package config loads evaluation run settings from JSON or YAML files.
// Every field is optional; Get* accessors supply defaults for anything the
// file leaves out.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
	"github.com/petersaints/YanuX-Cruncher/internal/fsutil"
	"github.com/petersaints/YanuX-Cruncher/internal/knn"
	"github.com/petersaints/YanuX-Cruncher/internal/scenario"
	"github.com/petersaints/YanuX-Cruncher/internal/units"
)

// maxFileSize caps config files at 1MB.
const maxFileSize = 1 * 1024 * 1024

// EvaluationConfig describes one evaluation run: the regressor, which
// columns to use, and which scenarios to build.
type EvaluationConfig struct {
	// k-NN regressor
	Neighbors *int     `json:"n_neighbors,omitempty" yaml:"n_neighbors,omitempty"`
	Weights   *string  `json:"weights,omitempty" yaml:"weights,omitempty"`
	Algorithm *string  `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	LeafSize  *int     `json:"leaf_size,omitempty" yaml:"leaf_size,omitempty"`
	P         *float64 `json:"p,omitempty" yaml:"p,omitempty"`
	Metric    *string  `json:"metric,omitempty" yaml:"metric,omitempty"`
	Jobs      *int     `json:"n_jobs,omitempty" yaml:"n_jobs,omitempty"`

	// Folds evaluated concurrently
	Workers *int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Columns
	Features      []string `json:"features,omitempty" yaml:"features,omitempty"`
	FeaturePrefix *string  `json:"feature_prefix,omitempty" yaml:"feature_prefix,omitempty"`
	Coords        []string `json:"coords,omitempty" yaml:"coords,omitempty"`
	GroupColumns  []string `json:"group_columns,omitempty" yaml:"group_columns,omitempty"`

	// Signal preprocessing
	FromUnits   *string  `json:"from_units,omitempty" yaml:"from_units,omitempty"`
	ToUnits     *string  `json:"to_units,omitempty" yaml:"to_units,omitempty"`
	FillMissing *float64 `json:"fill_missing,omitempty" yaml:"fill_missing,omitempty"`

	// Scenarios
	Aggregates       []string  `json:"aggregates,omitempty" yaml:"aggregates,omitempty"`
	Partials         []float64 `json:"partials,omitempty" yaml:"partials,omitempty"`
	PartialFromEnd   *bool     `json:"partial_from_end,omitempty" yaml:"partial_from_end,omitempty"`
	FilenamePrefixes []string  `json:"filename_prefixes,omitempty" yaml:"filename_prefixes,omitempty"`
	PathDirection    []string  `json:"path_direction,omitempty" yaml:"path_direction,omitempty"`
	SubsetRatio      *float64  `json:"subset_locations,omitempty" yaml:"subset_locations,omitempty"`
	Seed             *int64    `json:"seed,omitempty" yaml:"seed,omitempty"`
	ScenarioSuffix   *string   `json:"scenario_suffix,omitempty" yaml:"scenario_suffix,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyEvaluationConfig returns a config with every field unset.
func EmptyEvaluationConfig() *EvaluationConfig {
	return &EvaluationConfig{}
}

// Load reads a config from the OS filesystem.
func Load(path string) (*EvaluationConfig, error) {
	return LoadFS(fsutil.OSFileSystem{}, path)
}

// LoadFS reads a .json, .yaml or .yml config from fsys. The file must be
// under 1MB. Fields omitted from the file keep their defaults, so partial
// configs are safe.
func LoadFS(fsys fsutil.FileSystem, path string) (*EvaluationConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety
	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEvaluationConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *EvaluationConfig) Validate() error {
	if err := c.KNN().Validate(); err != nil {
		return err
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.Coords != nil && len(c.Coords) != 2 {
		return fmt.Errorf("coords must name exactly 2 columns, got %d", len(c.Coords))
	}
	for _, u := range []*string{c.FromUnits, c.ToUnits} {
		if u != nil && !units.IsValid(*u) {
			return fmt.Errorf("unknown signal unit %q, valid units are %s", *u, units.GetValidUnitsString())
		}
	}
	if c.FillMissing != nil && (math.IsNaN(*c.FillMissing) || math.IsInf(*c.FillMissing, 0)) {
		return fmt.Errorf("fill_missing must be a finite number")
	}
	for _, a := range append(append([]string(nil), c.Aggregates...), c.PathDirection...) {
		if _, err := scenario.ParseAggregate(a); err != nil {
			return err
		}
	}
	for _, a := range c.PathDirection {
		if agg, _ := scenario.ParseAggregate(a); agg == scenario.Raw {
			return fmt.Errorf("path_direction does not accept %q", a)
		}
	}
	for _, f := range c.Partials {
		if math.IsNaN(f) || f <= 0 || f > 1 {
			return fmt.Errorf("partials must be in (0, 1], got %v", f)
		}
	}
	if c.SubsetRatio != nil && (math.IsNaN(*c.SubsetRatio) || *c.SubsetRatio <= 0 || *c.SubsetRatio > 1) {
		return fmt.Errorf("subset_locations must be in (0, 1], got %v", *c.SubsetRatio)
	}
	return nil
}

// KNN returns the regressor settings with defaults filled in.
func (c *EvaluationConfig) KNN() knn.Config {
	cfg := knn.DefaultConfig()
	if c.Neighbors != nil {
		cfg.Neighbors = *c.Neighbors
	}
	if c.Weights != nil {
		cfg.Weights = *c.Weights
	}
	if c.Algorithm != nil {
		cfg.Algorithm = *c.Algorithm
	}
	if c.LeafSize != nil {
		cfg.LeafSize = *c.LeafSize
	}
	if c.P != nil {
		cfg.P = *c.P
	}
	if c.Metric != nil {
		cfg.Metric = *c.Metric
	}
	if c.Jobs != nil {
		cfg.Jobs = *c.Jobs
	}
	return cfg
}

// GetWorkers returns the number of folds evaluated concurrently.
func (c *EvaluationConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetCoords returns the coordinate columns, x and y by default.
func (c *EvaluationConfig) GetCoords() []string {
	if len(c.Coords) == 0 {
		return []string{dataset.ColumnX, dataset.ColumnY}
	}
	return c.Coords
}

// GetGroupColumns returns the location columns used to build scenarios.
func (c *EvaluationConfig) GetGroupColumns() []string {
	if len(c.GroupColumns) == 0 {
		return scenario.DefaultOptions().GroupColumns
	}
	return c.GroupColumns
}

// GetFeaturePrefix returns the prefix selecting feature columns when no
// explicit features are listed. The default selects every numeric column
// that is not a coordinate or location column.
func (c *EvaluationConfig) GetFeaturePrefix() string {
	if c.FeaturePrefix == nil {
		return ""
	}
	return *c.FeaturePrefix
}

// GetFromUnits returns the unit the survey is recorded in.
func (c *EvaluationConfig) GetFromUnits() string {
	if c.FromUnits == nil {
		return units.DBM
	}
	return *c.FromUnits
}

// GetToUnits returns the unit features are converted to before evaluation.
func (c *EvaluationConfig) GetToUnits() string {
	if c.ToUnits == nil {
		return c.GetFromUnits()
	}
	return *c.ToUnits
}

// GetAggregates returns the scenario aggregates, raw only by default.
func (c *EvaluationConfig) GetAggregates() []scenario.Aggregate {
	if len(c.Aggregates) == 0 {
		return []scenario.Aggregate{scenario.Raw}
	}
	return parseAggregates(c.Aggregates)
}

// GetPathDirection returns the path direction aggregates; none by default.
func (c *EvaluationConfig) GetPathDirection() []scenario.Aggregate {
	return parseAggregates(c.PathDirection)
}

func parseAggregates(names []string) []scenario.Aggregate {
	var out []scenario.Aggregate
	for _, n := range names {
		if a, err := scenario.ParseAggregate(n); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// GetPartialFromEnd reports whether partial scenarios keep the last samples
// of each location instead of the first.
func (c *EvaluationConfig) GetPartialFromEnd() bool {
	return c.PartialFromEnd != nil && *c.PartialFromEnd
}

// GetSubsetRatio returns the share of locations kept, 1 by default.
func (c *EvaluationConfig) GetSubsetRatio() float64 {
	if c.SubsetRatio == nil {
		return 1
	}
	return *c.SubsetRatio
}

// GetSeed returns the seed for location subsetting.
func (c *EvaluationConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetScenarioSuffix returns the suffix appended to scenario names.
func (c *EvaluationConfig) GetScenarioSuffix() string {
	if c.ScenarioSuffix == nil {
		return ""
	}
	return *c.ScenarioSuffix
}
