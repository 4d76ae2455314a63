package output

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/torosent/xrayload/internal/analysis"
	"github.com/torosent/xrayload/internal/metrics"
)

func newPlot(theme Theme, title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.BackgroundColor = theme.Background
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	if theme.Grid != nil {
		grid := plotter.NewGrid()
		grid.Vertical.Color = theme.Grid
		grid.Horizontal.Color = theme.Grid
		p.Add(grid)
	}
	return p
}

// WriteResponseTimeChart draws response time against timestamp with one line
// per operation. Rows without a numeric response time are skipped. When no
// timestamp can be parsed the row index is used for the X axis.
func WriteResponseTimeChart(path string, table analysis.Table, operations []string, theme Theme) error {
	useTime := true
	for _, r := range table.Rows {
		if _, ok := r.Time(); !ok {
			useTime = false
			break
		}
	}

	xLabel := "Timestamp"
	if !useTime {
		xLabel = "Row"
	}
	p := newPlot(theme, "Response Time Over Time by Operation", xLabel, "Response Time (ms)")
	if useTime {
		p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	}

	for i, op := range operations {
		var pts plotter.XYs
		for idx, r := range table.Rows {
			// Infinite times cannot be plotted.
			if r.Operation != op || !r.Timed() || math.IsInf(r.ResponseTime, 0) {
				continue
			}
			x := float64(idx)
			if useTime {
				ts, _ := r.Time()
				x = float64(ts.UnixNano()) / 1e9
			}
			pts = append(pts, plotter.XY{X: x, Y: r.ResponseTime})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("response time line for %s: %w", op, err)
		}
		line.Color = theme.color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(op, line)
	}
	p.Legend.Top = true

	if err := p.Save(12*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WriteFailureCountChart draws one bar per operation with failed rows.
func WriteFailureCountChart(path string, table analysis.Table, theme Theme) error {
	p := newPlot(theme, "Failure Counts by Operation", "Operation", "Failure Count")

	var (
		names  []string
		counts plotter.Values
		index  = map[string]int{}
	)
	for _, r := range table.Rows {
		if r.Status != string(metrics.StatusFailed) {
			continue
		}
		i, ok := index[r.Operation]
		if !ok {
			i = len(names)
			index[r.Operation] = i
			names = append(names, r.Operation)
			counts = append(counts, 0)
		}
		counts[i]++
	}

	if len(counts) > 0 {
		bars, err := plotter.NewBarChart(counts, vg.Points(40))
		if err != nil {
			return fmt.Errorf("failure bars: %w", err)
		}
		bars.Color = theme.color(0)
		bars.LineStyle.Width = 0
		p.Add(bars)

		ticks := make([]plot.Tick, len(names))
		for i, name := range names {
			ticks[i] = plot.Tick{Value: float64(i), Label: name}
		}
		p.X.Min = -0.5
		p.X.Max = float64(len(names)) - 0.5
		p.X.Tick.Marker = plot.ConstantTicks(ticks)
		p.Y.Min = 0
	}

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
