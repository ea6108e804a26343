package sml

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//LearningCurvesDump is the on-disk format of recorded learning curves.
type LearningCurvesDump struct {
	Titles []string
	Values [][]float64
}

//DumpLearningCurves writes one or more learning curves to a JSON file.
func DumpLearningCurves(dump LearningCurvesDump, filename string) error {
	bytesResult, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode learning curves")
	}
	if err := os.WriteFile(filename, bytesResult, 0o644); err != nil {
		return errors.Wrapf(err, "write learning curves to %s", filename)
	}
	return nil
}

//PlotLearningCurve renders a per-stage metric as a line plot. The output
//format follows the filename extension (png, svg, pdf, ...).
func PlotLearningCurve(values []float64, title, filename string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "stage"
	p.Y.Label.Text = "metric"

	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "build learning curve line")
	}
	p.Add(line)

	return errors.Wrapf(p.Save(8*vg.Inch, 4*vg.Inch, filename), "save plot %s", filename)
}
