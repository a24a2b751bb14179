// Package report renders evaluation results as charts: a PNG error CDF per
// run and an HTML bar chart comparing scenario metrics.
package report

import (
	"fmt"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/petersaints/YanuX-Cruncher/internal/fsutil"
)

// Series is the distance errors of one scenario.
type Series struct {
	Name   string
	Errors []float64
}

// cdfPoints returns the empirical CDF of errs as a step-free line through
// (sorted[i], (i+1)/n).
func cdfPoints(errs []float64) plotter.XYs {
	sorted := append([]float64(nil), errs...)
	sort.Float64s(sorted)
	pts := make(plotter.XYs, len(sorted))
	n := float64(len(sorted))
	for i, e := range sorted {
		pts[i] = plotter.XY{X: e, Y: float64(i+1) / n}
	}
	return pts
}

// PlotErrorCDF draws the cumulative distribution of each series' errors on
// one chart and writes it as a PNG to path. Series without errors are
// skipped.
func PlotErrorCDF(fs fsutil.FileSystem, path string, series []Series) error {
	p := plot.New()
	p.Title.Text = "Positioning error CDF"
	p.X.Label.Text = "Error (m)"
	p.Y.Label.Text = "Cumulative probability"
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	drawn := 0
	for i, s := range series {
		if len(s.Errors) == 0 {
			continue
		}
		line, err := plotter.NewLine(cdfPoints(s.Errors))
		if err != nil {
			return fmt.Errorf("series %s: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.Name, line)
		drawn++
	}
	if drawn == 0 {
		return fmt.Errorf("no errors to plot")
	}

	p.Legend.Top = false
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = 10

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
