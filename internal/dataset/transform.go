package dataset

import (
	"fmt"
	"math"
)

// MapFloat returns a copy of the table with fn applied to each named float
// column. fn must return a slice of the same length.
func (t *Table) MapFloat(cols []string, fn func([]float64) ([]float64, error)) (*Table, error) {
	out := t.Take(allRows(t.rows))
	for _, c := range cols {
		v, err := out.Float(c)
		if err != nil {
			return nil, err
		}
		mapped, err := fn(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c, err)
		}
		if len(mapped) != len(v) {
			return nil, fmt.Errorf("column %q: mapped to %d values, want %d", c, len(mapped), len(v))
		}
		out.floats[c] = append([]float64(nil), mapped...)
	}
	return out, nil
}

// FillNaN returns a copy of the table with NaN cells of the named float
// columns replaced by value. Missing access point readings are usually
// filled with a floor such as -100 dBm before evaluation.
func (t *Table) FillNaN(cols []string, value float64) (*Table, error) {
	return t.MapFloat(cols, func(v []float64) ([]float64, error) {
		out := make([]float64, len(v))
		for i, x := range v {
			if math.IsNaN(x) {
				x = value
			}
			out[i] = x
		}
		return out, nil
	})
}
