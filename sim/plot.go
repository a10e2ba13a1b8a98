package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var palette = []color.Color{
	color.RGBA{R: 255, B: 128, A: 255},
	color.RGBA{G: 160, A: 255},
	color.RGBA{B: 255, A: 255},
	color.RGBA{R: 169, G: 169, B: 169, A: 255},
}

// NewPredictionPlot creates new plot of predicted trajectories over time.
// Every column of pred is drawn as a line sampled every dt seconds.
// If ref is not nil its columns are drawn as scatter points.
// It returns error if the plot fails to be created. This can be due to either of the following conditions:
// * pred is nil or dt is not positive
// * ref does not have the same dimensions as pred
// * gonum plot fails to be created
func NewPredictionPlot(title string, dt float64, pred, ref *mat.Dense) (*plot.Plot, error) {
	if pred == nil || pred.IsEmpty() || dt <= 0 {
		return nil, fmt.Errorf("invalid data supplied")
	}

	rows, cols := pred.Dims()
	if ref != nil {
		if r, c := ref.Dims(); r != rows || c != cols {
			return nil, fmt.Errorf("invalid reference dimensions: [%d x %d]", r, c)
		}
	}

	p := plot.New()

	p.Title.Text = title
	p.X.Label.Text = "t"
	p.Y.Label.Text = "x"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	for j := 0; j < cols; j++ {
		line, err := plotter.NewLine(makePoints(pred, j, dt))
		if err != nil {
			return nil, fmt.Errorf("failed to create line: %v", err)
		}
		line.LineStyle.Color = palette[j%len(palette)]
		line.LineStyle.Width = vg.Points(1)

		p.Add(line)
		p.Legend.Add(fmt.Sprintf("x%d", j), line)

		if ref == nil {
			continue
		}

		refScatter, err := plotter.NewScatter(makePoints(ref, j, dt))
		if err != nil {
			return nil, fmt.Errorf("failed to create scatter: %v", err)
		}
		refScatter.GlyphStyle.Color = palette[j%len(palette)]
		refScatter.Shape = draw.CrossGlyph{}
		refScatter.GlyphStyle.Radius = vg.Points(2)

		p.Add(refScatter)
		p.Legend.Add(fmt.Sprintf("x%d ref", j), refScatter)
	}

	return p, nil
}

func makePoints(m *mat.Dense, col int, dt float64) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = float64(i) * dt
		pts[i].Y = m.At(i, col)
	}

	return pts
}
