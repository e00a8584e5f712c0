// Package report renders small diagnostic images for prepared datasets.
package report

import (
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// Series is one labelled sample of values to histogram.
type Series struct {
	Label  string
	Values []float64
}

// HistogramOptions controls the rendered image.
type HistogramOptions struct {
	Title  string
	XLabel string
	Bins   int
	Width  vg.Length
	Height vg.Length
}

func (o HistogramOptions) withDefaults() HistogramOptions {
	if o.Bins <= 0 {
		o.Bins = 50
	}
	if o.Width <= 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 5 * vg.Inch
	}
	return o
}

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 160},
	color.RGBA{R: 255, G: 127, B: 14, A: 160},
	color.RGBA{R: 44, G: 160, B: 44, A: 160},
}

// WriteHistogramPNG overlays one normalized histogram per series and writes
// the plot to w as PNG. NaN and infinite values are ignored; empty series are
// skipped.
func WriteHistogramPNG(w io.Writer, opts HistogramOptions, series ...Series) error {
	opts = opts.withDefaults()

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = "density"

	drawn := 0
	for i, s := range series {
		values := finite(s.Values)
		if len(values) == 0 {
			continue
		}
		h, err := plotter.NewHist(values, opts.Bins)
		if err != nil {
			return errors.Wrapf(err, "histogram %s", s.Label)
		}
		h.Normalize(1)
		h.FillColor = palette[i%len(palette)]
		h.LineStyle.Width = vg.Points(0.5)
		p.Add(h)
		p.Legend.Add(s.Label, h)
		drawn++
	}
	if drawn == 0 {
		return errors.Wrap(errors.ErrEmptyData, "histogram")
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return errors.Wrap(err, "render histogram")
	}
	_, err = wt.WriteTo(w)
	return err
}

func finite(in []float64) plotter.Values {
	out := make(plotter.Values, 0, len(in))
	for _, v := range in {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
