// Package persist writes scenarios, evaluation results and metric summaries
// as CSV files.
package persist

import (
	"encoding/csv"
	"fmt"
	"path/filepath"

	"github.com/petersaints/YanuX-Cruncher/internal/dataset"
	"github.com/petersaints/YanuX-Cruncher/internal/evaluation"
	"github.com/petersaints/YanuX-Cruncher/internal/fsutil"
	"github.com/petersaints/YanuX-Cruncher/internal/monitoring"
	"github.com/petersaints/YanuX-Cruncher/internal/scenario"
	"github.com/petersaints/YanuX-Cruncher/internal/security"
)

// ColumnScenarioName is added to every persisted table.
const ColumnScenarioName = "scenario_name"

// Writer stores tables as <Dir>/<Prefix><name>.csv.
type Writer struct {
	FS     fsutil.FileSystem
	Dir    string
	Prefix string
}

// NewWriter returns a Writer on the OS filesystem.
func NewWriter(dir, prefix string) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, Dir: dir, Prefix: prefix}
}

// Path returns the file a table named name is written to.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir(), w.Prefix+name+".csv")
}

func (w *Writer) dir() string {
	if w.Dir == "" {
		return "."
	}
	return w.Dir
}

// SaveScenarios writes every scenario in set, in set order.
func (w *Writer) SaveScenarios(set *scenario.Set) error {
	for _, sc := range set.Scenarios() {
		if err := w.SaveResult(sc.Name, sc.Data); err != nil {
			return err
		}
	}
	return nil
}

// SaveResult writes table with an extra scenario_name column holding
// Prefix+name. table is not modified.
func (w *Writer) SaveResult(name string, table *dataset.Table) error {
	tagged, err := table.WithString(ColumnScenarioName, w.Prefix+name)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", name, err)
	}
	path, err := w.prepare(name)
	if err != nil {
		return err
	}

	f, err := w.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := tagged.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	monitoring.Verbosef("wrote %d rows to %s", table.Len(), path)
	return nil
}

// SaveSummaries writes one row per scenario: its prefixed name followed by
// the metric values in summary order. All summaries must report the same
// metrics.
func (w *Writer) SaveSummaries(name string, summaries []evaluation.ScenarioSummary) error {
	path, err := w.prepare(name)
	if err != nil {
		return err
	}

	header := append([]string{ColumnScenarioName}, evaluation.MetricNames...)
	if len(summaries) > 0 {
		header = append([]string{ColumnScenarioName}, summaries[0].Summary.Names()...)
	}

	f, err := w.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	writer := csv.NewWriter(f)
	writer.Write(header)
	for _, s := range summaries {
		if len(s.Summary) != len(header)-1 {
			f.Close()
			return fmt.Errorf("scenario %s reports %d metrics, want %d", s.Scenario, len(s.Summary), len(header)-1)
		}
		record := []string{w.Prefix + s.Scenario}
		for i, m := range s.Summary {
			if m.Name != header[i+1] {
				f.Close()
				return fmt.Errorf("scenario %s: metric %d is %s, want %s", s.Scenario, i, m.Name, header[i+1])
			}
			record = append(record, dataset.FormatFloat(m.Value))
		}
		writer.Write(record)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// prepare validates name and creates the output directory.
func (w *Writer) prepare(name string) (string, error) {
	if err := security.ValidateScenarioName(w.Prefix + name); err != nil {
		return "", err
	}
	path := w.Path(name)
	if err := security.ValidatePathWithinDirectory(path, w.dir()); err != nil {
		return "", err
	}
	if err := w.FS.MkdirAll(w.dir(), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return path, nil
}
