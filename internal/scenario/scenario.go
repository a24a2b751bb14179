// Package scenario derives named dataset variants from a fingerprint survey.
// Each builder adds the raw subset and any requested per-location
// aggregates to a Set under a stable, human readable name.
package scenario

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
	"github.com/petersaints/YanuX-Cruncher/internal/units"
)

// Aggregate selects which variants of a subset a builder emits.
type Aggregate int

const (
	// Raw keeps every sample of the subset.
	Raw Aggregate = iota
	// Mean averages samples per location.
	Mean
	// Min keeps the per-location minimum of each column.
	Min
	// Max keeps the per-location maximum of each column.
	Max
)

func (a Aggregate) String() string {
	switch a {
	case Raw:
		return "raw"
	case Mean:
		return "mean"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return "Aggregate(" + strconv.Itoa(int(a)) + ")"
	}
}

// ParseAggregate maps "raw", "mean", "min" or "max" to an Aggregate.
func ParseAggregate(s string) (Aggregate, error) {
	for _, a := range []Aggregate{Raw, Mean, Min, Max} {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregate %q", s)
}

func (a Aggregate) agg() (dataset.Agg, error) {
	switch a {
	case Mean:
		return dataset.AggMean, nil
	case Min:
		return dataset.AggMin, nil
	case Max:
		return dataset.AggMax, nil
	}
	return 0, fmt.Errorf("%s is not a grouping aggregate", a)
}

// Options controls how scenarios are grouped and named.
type Options struct {
	// GroupColumns identify a location. Defaults to x, y, floor.
	GroupColumns []string
	// Suffix is appended to every scenario name as "_<suffix>" when set.
	Suffix string
	// FilenameColumn holds the survey file each sample came from.
	FilenameColumn string
}

// DefaultOptions groups by x, y and floor and reads file names from the
// filename column.
func DefaultOptions() Options {
	return Options{
		GroupColumns:   []string{dataset.ColumnX, dataset.ColumnY, dataset.ColumnFloor},
		FilenameColumn: dataset.ColumnFilename,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.GroupColumns) == 0 {
		o.GroupColumns = d.GroupColumns
	}
	if o.FilenameColumn == "" {
		o.FilenameColumn = d.FilenameColumn
	}
	return o
}

func (o Options) suffix() string {
	if o.Suffix == "" {
		return ""
	}
	return "_" + o.Suffix
}

// namer returns the scenario name for one aggregate of a subset.
type namer func(Aggregate) string

// groupedNamer names Raw as <base>_data<params> and the others as
// <base>_groupby_<agg>_data<params>.
func groupedNamer(base, params string) namer {
	return func(a Aggregate) string {
		if a == Raw {
			return base + "_data" + params
		}
		return base + "_groupby_" + a.String() + "_data" + params
	}
}

// add registers each requested aggregate of subset in set.
func add(set *Set, name namer, subset *dataset.Table, aggregates []Aggregate, groupCols []string) error {
	for _, a := range aggregates {
		data := subset
		if a != Raw {
			agg, err := a.agg()
			if err != nil {
				return err
			}
			if data, err = subset.Aggregate(agg, groupCols...); err != nil {
				return fmt.Errorf("scenario %s: %w", name(a), err)
			}
		}
		if err := set.Add(name(a), data); err != nil {
			return err
		}
	}
	return nil
}

// Full adds the whole survey: full_data and full_groupby_<agg>_data.
func Full(set *Set, samples *dataset.Table, aggregates []Aggregate, opts Options) error {
	opts = opts.withDefaults()
	return add(set, groupedNamer("full", opts.suffix()), samples, aggregates, opts.GroupColumns)
}

// Partial adds, per fraction f, a subset keeping the first int(n*f) samples
// of every location, or with fromEnd the samples from position
// int(n*(1-f)) onwards. Names are partial_data_fraction=<f> and
// partial_groupby_<agg>_data_fraction=<f>.
func Partial(set *Set, samples *dataset.Table, fractions []float64, fromEnd bool, aggregates []Aggregate, opts Options) error {
	opts = opts.withDefaults()
	groups, err := samples.GroupBy(opts.GroupColumns...)
	if err != nil {
		return err
	}
	for _, f := range fractions {
		if math.IsNaN(f) || f <= 0 || f > 1 {
			return fmt.Errorf("partial fraction %v must be in (0, 1]", f)
		}
		var rows []int
		for _, g := range groups.Groups {
			n := len(g.Rows)
			if fromEnd {
				rows = append(rows, g.Rows[int(float64(n)*(1-f)):]...)
			} else {
				rows = append(rows, g.Rows[:int(float64(n)*f)]...)
			}
		}
		params := "_fraction=" + FormatFraction(f) + opts.suffix()
		if err := add(set, groupedNamer("partial", params), samples.Take(rows), aggregates, opts.GroupColumns); err != nil {
			return err
		}
	}
	return nil
}

// FormatFraction renders f the way scenario names carry it: shortest
// decimal form, always with a fractional part ("0.5", "1.0").
func FormatFraction(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FilenamePrefix adds the samples whose source file name starts with
// prefix: filename_startswith_data_<prefix> and
// filename_startswith_groupby_<agg>_data_<prefix>.
func FilenamePrefix(set *Set, samples *dataset.Table, prefix string, aggregates []Aggregate, opts Options) error {
	opts = opts.withDefaults()
	names, err := samples.String(opts.FilenameColumn)
	if err != nil {
		return err
	}
	subset := samples.Filter(func(row int) bool { return strings.HasPrefix(names[row], prefix) })
	params := "_" + prefix + opts.suffix()
	return add(set, groupedNamer("filename_startswith", params), subset, aggregates, opts.GroupColumns)
}

// PathDirection first averages samples per location and source file, so
// each walk direction contributes one fingerprint per location, then
// aggregates those per location: path_direction_aggregated_<agg>_data.
// Raw is not meaningful here and is rejected.
func PathDirection(set *Set, samples *dataset.Table, aggregates []Aggregate, opts Options) error {
	opts = opts.withDefaults()
	perPath, err := samples.Aggregate(dataset.AggMean, append(append([]string(nil), opts.GroupColumns...), opts.FilenameColumn)...)
	if err != nil {
		return err
	}
	for _, a := range aggregates {
		if a == Raw {
			return fmt.Errorf("path direction scenarios need a grouping aggregate, got %s", a)
		}
	}
	name := func(a Aggregate) string {
		return "path_direction_aggregated_" + a.String() + "_data" + opts.suffix()
	}
	return add(set, name, perPath, aggregates, opts.GroupColumns)
}

// SubsetLocations keeps int(groups*ratio) randomly chosen locations with all
// of their samples. Chosen locations are emitted in key order.
func SubsetLocations(samples *dataset.Table, ratio float64, rng *rand.Rand, groupCols []string) (*dataset.Table, error) {
	if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("location ratio %v must be in [0, 1]", ratio)
	}
	if len(groupCols) == 0 {
		groupCols = DefaultOptions().GroupColumns
	}
	groups, err := samples.GroupBy(groupCols...)
	if err != nil {
		return nil, err
	}
	keep := rng.Perm(groups.Len())[:int(float64(groups.Len())*ratio)]
	sort.Ints(keep)
	var rows []int
	for _, g := range keep {
		rows = append(rows, groups.Groups[g].Rows...)
	}
	return samples.Take(rows), nil
}

// ConvertUnits returns a copy of t with the named signal columns converted
// between dBm and mW.
func ConvertUnits(t *dataset.Table, cols []string, from, to string) (*dataset.Table, error) {
	if from == to && units.IsValid(from) {
		return t, nil
	}
	return t.MapFloat(cols, func(v []float64) ([]float64, error) {
		return units.ConvertSlice(v, from, to)
	})
}
