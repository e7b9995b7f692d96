// Package report renders the success-ratio series as a chart and as CSV.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gateway-fm/jointsim/internal/sim"
)

// Chart labels.
const (
	Title  = "Transaction Success Ratio Over Time"
	XLabel = "Number of Transactions"
	YLabel = "Success Ratio"
)

// ErrEmptySeries is returned when there is nothing to render.
var ErrEmptySeries = errors.New("success ratio series is empty")

// ratioPlaces is the precision of ratios in exports.
const ratioPlaces = 6

// Ratio returns the exact successes/attempts ratio rounded to six places.
func Ratio(s sim.Sample) decimal.Decimal {
	if s.Attempts == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.Successes)).DivRound(decimal.NewFromInt(int64(s.Attempts)), ratioPlaces)
}

// Points converts the series to plot coordinates: x is the attempt count, y the ratio.
func Points(series []sim.Sample) plotter.XYs {
	pts := make(plotter.XYs, len(series))
	for i, s := range series {
		pts[i].X = float64(s.Attempts)
		pts[i].Y = s.Ratio
	}
	return pts
}

// NewPlot builds the success-ratio line chart.
func NewPlot(series []sim.Sample) (*plot.Plot, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	p := plot.New()
	p.Title.Text = Title
	p.X.Label.Text = XLabel
	p.Y.Label.Text = YLabel
	p.Y.Min = 0
	p.Y.Max = 1
	p.X.Min = 0
	p.Add(plotter.NewGrid())

	pts := Points(series)
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("build line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1.5)

	marks, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("build markers: %w", err)
	}
	marks.Color = line.Color
	marks.Radius = vg.Points(2)

	p.Add(line, marks)
	return p, nil
}

// SaveChart renders the series to path. The image format follows the extension
// (.png, .svg, .pdf, .jpg).
func SaveChart(path string, series []sim.Sample) error {
	p, err := NewPlot(series)
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}

// WriteCSV writes one row per sample: attempts, successes, ratio.
func WriteCSV(w io.Writer, series []sim.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"attempts", "successes", "ratio"}); err != nil {
		return err
	}
	for _, s := range series {
		row := []string{
			strconv.Itoa(s.Attempts),
			strconv.Itoa(s.Successes),
			Ratio(s).String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the series as CSV to path.
func SaveCSV(path string, series []sim.Sample) (err error) {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, series)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
