package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadOptions controls how CSV cells are typed.
type ReadOptions struct {
	// StringColumns are kept as strings. Every other column must parse as
	// float64; an empty cell is NaN.
	StringColumns []string
}

// DefaultReadOptions keeps the filename column as text.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{StringColumns: []string{ColumnFilename}}
}

// ReadCSV loads a table from CSV with a header row. Columns with an empty
// header (a leading row index written by other tools) are skipped.
func ReadCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv has no header row")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	header = append([]string(nil), header...)

	isString := make(map[string]bool, len(opts.StringColumns))
	for _, c := range opts.StringColumns {
		isString[c] = true
	}

	floatCols := make(map[int][]float64)
	stringCols := make(map[int][]string)
	for i, name := range header {
		name = strings.TrimSpace(name)
		header[i] = name
		if name == "" {
			continue
		}
		if isString[name] {
			stringCols[i] = nil
		} else {
			floatCols[i] = nil
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		for i := range header {
			if col, ok := stringCols[i]; ok {
				stringCols[i] = append(col, record[i])
				continue
			}
			col, ok := floatCols[i]
			if !ok {
				continue
			}
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				floatCols[i] = append(col, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: invalid float '%s': %w", line, header[i], cell, err)
			}
			floatCols[i] = append(col, v)
		}
	}

	t := New()
	rows := line - 1
	for i, name := range header {
		if col, ok := stringCols[i]; ok {
			if col == nil {
				col = make([]string, rows)
			}
			if err := t.AddString(name, col); err != nil {
				return nil, err
			}
			continue
		}
		if col, ok := floatCols[i]; ok {
			if col == nil {
				col = make([]float64, rows)
			}
			if err := t.AddFloat(name, col); err != nil {
				return nil, err
			}
		}
	}
	t.rows = rows
	return t, nil
}

// WriteCSV writes the table with a header row. Floats use the shortest
// representation that round-trips; NaN is written as an empty cell.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.names); err != nil {
		return err
	}
	record := make([]string, len(t.names))
	for row := 0; row < t.rows; row++ {
		for j, name := range t.names {
			if v, ok := t.floats[name]; ok {
				record[j] = FormatFloat(v[row])
				continue
			}
			record[j] = t.strings[name][row]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatFloat renders v the way WriteCSV does.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
