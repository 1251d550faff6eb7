package training

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SaveTrainingCurves writes loss.png and accuracy.png under dir, each with
// the train and validation curve per epoch.
func SaveTrainingCurves(h *History, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := saveCurve(filepath.Join(dir, "loss.png"), "Loss", h.TrainLoss, h.ValLoss); err != nil {
		return err
	}
	return saveCurve(filepath.Join(dir, "accuracy.png"), "Accuracy", h.TrainAccuracy, h.ValAccuracy)
}

func saveCurve(path, label string, train, val []float64) error {
	p := plot.New()
	p.Title.Text = label + " per epoch"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = label

	args := []interface{}{"train", epochPoints(train)}
	if len(val) > 0 {
		args = append(args, "validation", epochPoints(val))
	}
	if err := plotutil.AddLinePoints(p, args...); err != nil {
		return fmt.Errorf("failed to build %s plot: %w", label, err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func epochPoints(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}

// confusionGrid adapts a confusion matrix to the heat map grid interface.
// Rows are flipped so the first class renders at the top.
type confusionGrid struct {
	cm *ConfusionMatrix
}

func (g confusionGrid) Dims() (cols, rows int) { return g.cm.NumClasses, g.cm.NumClasses }
func (g confusionGrid) X(c int) float64        { return float64(c) }
func (g confusionGrid) Y(r int) float64        { return float64(r) }
func (g confusionGrid) Z(c, r int) float64 {
	return float64(g.cm.Matrix[g.cm.NumClasses-1-r][c])
}

// SaveConfusionHeatmap renders the confusion matrix as a heat map PNG.
func SaveConfusionHeatmap(cm *ConfusionMatrix, classNames []string, path string) error {
	p := plot.New()
	p.Title.Text = "Confusion matrix"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True"

	p.Add(plotter.NewHeatMap(confusionGrid{cm}, palette.Heat(16, 1)))

	if len(classNames) == cm.NumClasses {
		ticks := make([]plot.Tick, cm.NumClasses)
		for i, name := range classNames {
			ticks[i] = plot.Tick{Value: float64(i), Label: name}
		}
		p.X.Tick.Marker = plot.ConstantTicks(ticks)
		// rows are flipped in the grid, so flip the y tick labels too
		flipped := make([]plot.Tick, cm.NumClasses)
		for i, name := range classNames {
			flipped[i] = plot.Tick{Value: float64(cm.NumClasses - 1 - i), Label: name}
		}
		p.Y.Tick.Marker = plot.ConstantTicks(flipped)
	}

	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// SaveClassDistribution renders the per-class sample counts as a bar chart.
func SaveClassDistribution(dist map[string]int, classes []string, path string) error {
	p := plot.New()
	p.Title.Text = "Class distribution"
	p.Y.Label.Text = "Samples"

	values := make(plotter.Values, len(classes))
	for i, class := range classes {
		values[i] = float64(dist[class])
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(classes...)

	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
