// Package render draws overlay plots of histogram pairs with gonum/plot.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/airframesio/table-compare/cmd/histogram"
	"github.com/spf13/afero"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgeps"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"
)

// ErrUnsupportedFormat is returned for output formats without a canvas
var ErrUnsupportedFormat = errors.New("unsupported plot format")

// Formats lists the accepted output formats.
var Formats = []string{"pdf", "png", "svg", "eps", "jpg", "jpeg", "tif", "tiff"}

// SupportedFormat reports whether format can be rendered.
func SupportedFormat(format string) bool {
	format = strings.ToLower(format)
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Config controls the appearance of every plot drawn by a Plotter.
type Config struct {
	Width  vg.Length
	Height vg.Length
	// Ratio adds a lower panel with the per-bin ratio of the two series.
	Ratio bool
	// RatioMin and RatioMax bound the ratio panel. Points outside are clamped.
	RatioMin float64
	RatioMax float64
	// RatioShare is the fraction of the canvas height given to the ratio panel.
	RatioShare float64
	Color1     color.Color
	Color2     color.Color
}

// DefaultConfig returns the standard layout: 8x6 inch canvas with a ratio
// panel clamped to [0.8, 1.2].
func DefaultConfig() Config {
	return Config{
		Width:      8 * vg.Inch,
		Height:     6 * vg.Inch,
		Ratio:      true,
		RatioMin:   0.8,
		RatioMax:   1.2,
		RatioShare: 0.3,
		Color1:     color.Black,
		Color2:     color.RGBA{R: 255, A: 255},
	}
}

// Input is one plot.
type Input struct {
	Title  string
	Label1 string
	Label2 string
	Pair   *histogram.Pair
}

// Plotter writes plots to a filesystem.
type Plotter struct {
	fs  afero.Fs
	cfg Config
}

// New creates a Plotter
func New(fs afero.Fs, cfg Config) *Plotter {
	return &Plotter{fs: fs, cfg: cfg}
}

// Render draws in and writes it to path in the given format.
func (p *Plotter) Render(path, format string, in Input) error {
	if in.Pair == nil {
		return errors.New("render: nil histogram pair")
	}

	c, err := newCanvas(format, p.cfg.Width, p.cfg.Height)
	if err != nil {
		return err
	}
	dc := draw.New(c)

	overlay, err := p.overlay(in)
	if err != nil {
		return err
	}

	if p.cfg.Ratio && in.Pair.H2.MaxCount() > 0 {
		ratio, err := p.ratio(in)
		if err != nil {
			return err
		}
		split := p.cfg.Height * vg.Length(p.cfg.RatioShare)
		overlay.Draw(draw.Crop(dc, 0, 0, split, 0))
		ratio.Draw(draw.Crop(dc, 0, 0, 0, split-p.cfg.Height))
	} else {
		overlay.Draw(dc)
	}

	f, err := p.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func newCanvas(format string, w, h vg.Length) (vg.CanvasWriterTo, error) {
	switch strings.ToLower(format) {
	case "pdf":
		return vgpdf.New(w, h), nil
	case "svg":
		return vgsvg.New(w, h), nil
	case "eps":
		return vgeps.New(w, h), nil
	case "png":
		return vgimg.PngCanvas{Canvas: vgimg.New(w, h)}, nil
	case "jpg", "jpeg":
		return vgimg.JpegCanvas{Canvas: vgimg.New(w, h)}, nil
	case "tif", "tiff":
		return vgimg.TiffCanvas{Canvas: vgimg.New(w, h)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// errorPoints carries bin contents with symmetric Poisson errors.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

func (p *Plotter) overlay(in Input) (*plot.Plot, error) {
	h1, h2 := in.Pair.H1, in.Pair.H2

	pl := plot.New()
	pl.Title.Text = in.Title
	pl.X.Label.Text = in.Title
	pl.Y.Label.Text = "Entries"
	pl.X.Min, pl.X.Max = h1.Range.Min, h1.Range.Max
	pl.Y.Min = 0
	pl.Y.Max = 1.1 * math.Max(1, math.Max(h1.MaxCount(), h2.MaxCount()))
	pl.Legend.Top = true

	bins := make([]plotter.HistogramBin, h1.Bins())
	points := errorPoints{
		XYs:     make(plotter.XYs, h1.Bins()),
		YErrors: make(plotter.YErrors, h1.Bins()),
	}
	edges := h1.Edges()
	for i, n := range h1.Counts {
		bins[i] = plotter.HistogramBin{Min: edges[i], Max: edges[i+1], Weight: n}
		points.XYs[i] = plotter.XY{X: h1.BinCenter(i), Y: n}
		e := h1.BinError(i)
		points.YErrors[i] = struct{ Low, High float64 }{Low: e, High: e}
	}

	series1 := &plotter.Histogram{
		Bins:      bins,
		Width:     h1.BinWidth(),
		LineStyle: plotter.DefaultLineStyle,
	}
	series1.LineStyle.Color = p.cfg.Color1

	errs, err := plotter.NewYErrorBars(points)
	if err != nil {
		return nil, fmt.Errorf("failed to build error bars: %w", err)
	}
	errs.LineStyle.Color = p.cfg.Color1

	xys2 := make(plotter.XYs, 0, h2.Bins())
	for i, n := range h2.Counts {
		if n > 0 {
			xys2 = append(xys2, plotter.XY{X: h2.BinCenter(i), Y: n})
		}
	}
	series2, err := plotter.NewScatter(xys2)
	if err != nil {
		return nil, fmt.Errorf("failed to build scatter: %w", err)
	}
	series2.GlyphStyle.Color = p.cfg.Color2
	series2.GlyphStyle.Shape = draw.PyramidGlyph{}
	series2.GlyphStyle.Radius = vg.Points(3)

	pl.Add(series1, errs, series2)
	pl.Legend.Add(legendEntry(in.Label1, h1), series1)
	pl.Legend.Add(legendEntry(in.Label2, h2), series2)
	return pl, nil
}

func (p *Plotter) ratio(in Input) (*plot.Plot, error) {
	h1 := in.Pair.H1

	pl := plot.New()
	pl.Y.Label.Text = "Ratio"
	pl.X.Min, pl.X.Max = h1.Range.Min, h1.Range.Max

	var points errorPoints
	for i := 0; i < h1.Bins(); i++ {
		r, e, ok := in.Pair.Ratio(i)
		if !ok {
			continue
		}
		points.XYs = append(points.XYs, plotter.XY{X: h1.BinCenter(i), Y: clamp(r, p.cfg.RatioMin, p.cfg.RatioMax)})
		points.YErrors = append(points.YErrors, struct{ Low, High float64 }{Low: e, High: e})
	}

	unity, err := plotter.NewLine(plotter.XYs{{X: h1.Range.Min, Y: 1}, {X: h1.Range.Max, Y: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to build unity line: %w", err)
	}
	unity.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	pl.Add(unity)

	if len(points.XYs) > 0 {
		scatter, err := plotter.NewScatter(points.XYs)
		if err != nil {
			return nil, fmt.Errorf("failed to build ratio points: %w", err)
		}
		scatter.GlyphStyle.Color = p.cfg.Color1
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}

		errs, err := plotter.NewYErrorBars(points)
		if err != nil {
			return nil, fmt.Errorf("failed to build ratio errors: %w", err)
		}
		pl.Add(scatter, errs)
	}
	// Error bars may reach past the clamp bounds.
	pl.Y.Min, pl.Y.Max = p.cfg.RatioMin, p.cfg.RatioMax
	return pl, nil
}

func legendEntry(label string, h *histogram.Histogram) string {
	return fmt.Sprintf("%s: Entries %d  Mean %.4g  Std Dev %.4g", label, h.Entries, h.Mean, h.StdDev)
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
