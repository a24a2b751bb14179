package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Key holds one value per grouping column: float64 for numeric columns and
// string for string columns.
type Key []any

// String formats the key for logs and error messages.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Group is one distinct key and the rows that hold it, in table order.
type Group struct {
	Key  Key
	Rows []int
}

// GroupIndex maps each distinct key over a set of columns to its rows.
// Keys compare by exact equality. Rows with a NaN in any grouping column
// belong to no group.
type GroupIndex struct {
	Columns []string
	Groups  []Group
	lookup  map[string]int
}

// Len returns the number of groups.
func (g *GroupIndex) Len() int { return len(g.Groups) }

// Lookup returns the rows holding key.
func (g *GroupIndex) Lookup(key Key) ([]int, bool) {
	i, ok := g.lookup[encodeKey(key)]
	if !ok {
		return nil, false
	}
	return g.Groups[i].Rows, true
}

// GroupBy builds the index of distinct keys over cols. Groups are sorted by
// key, numerically for float columns and lexically for string columns.
func (t *Table) GroupBy(cols ...string) (*GroupIndex, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("group by needs at least one column")
	}
	for _, c := range cols {
		if !t.Has(c) {
			return nil, fmt.Errorf("column %q not found", c)
		}
	}

	idx := &GroupIndex{Columns: append([]string(nil), cols...), lookup: make(map[string]int)}
	for row := 0; row < t.rows; row++ {
		key, ok := t.keyAt(cols, row)
		if !ok {
			continue
		}
		enc := encodeKey(key)
		gi, seen := idx.lookup[enc]
		if !seen {
			gi = len(idx.Groups)
			idx.lookup[enc] = gi
			idx.Groups = append(idx.Groups, Group{Key: key})
		}
		idx.Groups[gi].Rows = append(idx.Groups[gi].Rows, row)
	}

	sort.SliceStable(idx.Groups, func(i, j int) bool {
		return compareKeys(idx.Groups[i].Key, idx.Groups[j].Key) < 0
	})
	for i, g := range idx.Groups {
		idx.lookup[encodeKey(g.Key)] = i
	}
	return idx, nil
}

// keyAt returns the key of row over cols, or false if any value is NaN.
func (t *Table) keyAt(cols []string, row int) (Key, bool) {
	key := make(Key, len(cols))
	for i, c := range cols {
		if v, ok := t.floats[c]; ok {
			if math.IsNaN(v[row]) {
				return nil, false
			}
			key[i] = v[row]
			continue
		}
		key[i] = t.strings[c][row]
	}
	return key, true
}

func encodeKey(key Key) string {
	var b strings.Builder
	for _, v := range key {
		switch val := v.(type) {
		case float64:
			if val == 0 {
				val = 0 // fold -0 into +0
			}
			b.WriteByte('f')
			b.WriteString(strconv.FormatUint(math.Float64bits(val), 16))
		case string:
			b.WriteByte('s')
			b.WriteString(strconv.Quote(val))
		default:
			b.WriteByte('?')
			b.WriteString(fmt.Sprint(val))
		}
		b.WriteByte(0)
	}
	return b.String()
}

func compareKeys(a, b Key) int {
	for i := range a {
		switch av := a[i].(type) {
		case float64:
			bv, _ := b[i].(float64)
			if av < bv {
				return -1
			}
			if av > bv {
				return 1
			}
		case string:
			if c := strings.Compare(av, b[i].(string)); c != 0 {
				return c
			}
		}
	}
	return 0
}

// Agg selects how non-key columns are reduced within a group.
type Agg int

const (
	AggMean Agg = iota
	AggMin
	AggMax
)

func (a Agg) String() string {
	switch a {
	case AggMean:
		return "mean"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	default:
		return "Agg(" + strconv.Itoa(int(a)) + ")"
	}
}

// Aggregate reduces the table to one row per distinct key over cols.
// The output holds the key columns first, then every other column in table
// order. NaN values are skipped; a group with only NaN values yields NaN.
// String columns are dropped by AggMean and reduced lexically by AggMin and
// AggMax.
func (t *Table) Aggregate(agg Agg, cols ...string) (*Table, error) {
	idx, err := t.GroupBy(cols...)
	if err != nil {
		return nil, err
	}
	isKey := make(map[string]bool, len(cols))
	for _, c := range cols {
		isKey[c] = true
	}

	out := New()
	for i, c := range cols {
		if t.IsFloat(c) {
			col := make([]float64, idx.Len())
			for g, grp := range idx.Groups {
				col[g] = grp.Key[i].(float64)
			}
			if err := out.AddFloat(c, col); err != nil {
				return nil, err
			}
			continue
		}
		col := make([]string, idx.Len())
		for g, grp := range idx.Groups {
			col[g] = grp.Key[i].(string)
		}
		if err := out.AddString(c, col); err != nil {
			return nil, err
		}
	}

	for _, name := range t.names {
		if isKey[name] {
			continue
		}
		if v, ok := t.floats[name]; ok {
			col := make([]float64, idx.Len())
			for g, grp := range idx.Groups {
				col[g] = reduceFloats(agg, v, grp.Rows)
			}
			if err := out.AddFloat(name, col); err != nil {
				return nil, err
			}
			continue
		}
		if agg == AggMean {
			continue
		}
		v := t.strings[name]
		col := make([]string, idx.Len())
		for g, grp := range idx.Groups {
			col[g] = reduceStrings(agg, v, grp.Rows)
		}
		if err := out.AddString(name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func reduceFloats(agg Agg, values []float64, rows []int) float64 {
	xs := make([]float64, 0, len(rows))
	for _, r := range rows {
		if !math.IsNaN(values[r]) {
			xs = append(xs, values[r])
		}
	}
	if len(xs) == 0 {
		return math.NaN()
	}
	switch agg {
	case AggMin:
		return floats.Min(xs)
	case AggMax:
		return floats.Max(xs)
	default:
		return stat.Mean(xs, nil)
	}
}

func reduceStrings(agg Agg, values []string, rows []int) string {
	best := values[rows[0]]
	for _, r := range rows[1:] {
		v := values[r]
		if (agg == AggMin && v < best) || (agg == AggMax && v > best) {
			best = v
		}
	}
	return best
}
