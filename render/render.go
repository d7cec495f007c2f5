// Package render draws previews of splits.
package render

import (
	"image/color"
	"io"
	"math"
	"math/big"

	"github.com/pkg/errors"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
	"github.com/tdewolff/canvas/renderers/svg"
	"github.com/tdewolff/parcel"
)

// Layer is a set of contours drawn with the same style.
type Layer struct {
	Contours []parcel.Contour
	Points   []parcel.Point
	Fill     color.RGBA
	Stroke   color.RGBA
	Dashed   bool
}

// Options sets the drawing size and styles. Sizes are in millimeters.
type Options struct {
	Width       float64
	Margin      float64
	StrokeWidth float64
	PointRadius float64
}

// DefaultOptions draws on a 100mm wide canvas.
var DefaultOptions = Options{
	Width:       100.0,
	Margin:      5.0,
	StrokeWidth: 0.3,
	PointRadius: 0.8,
}

var (
	RemainingFill = canvas.Hex("#e3dccd")
	ResultFill    = canvas.Hex("#c9b2a6cc")
	ClipStroke    = canvas.Hex("#3c6e91")
	PointFill     = canvas.Hex("#d1495b")
	OutlineStroke = canvas.Hex("#404040")
)

// ErrEmpty is returned when there is nothing to draw.
var ErrEmpty = errors.New("nothing to draw")

// Split returns the layers of a finished split: the remaining subject, the clipped-off polygons, the outline of the clipping polygon and its intersections with the subject. Unfinished operations show the input polygons only.
func Split(op *parcel.SplitOperation) []Layer {
	remaining, err := op.SubjectOutput()
	if err != nil {
		return []Layer{
			{Contours: []parcel.Contour{op.Subject()}, Fill: RemainingFill, Stroke: OutlineStroke},
			{Contours: []parcel.Contour{op.Clip()}, Fill: canvas.Transparent, Stroke: ClipStroke, Dashed: true},
		}
	}
	results, _ := op.ResultPolygons()
	layers := []Layer{
		{Contours: []parcel.Contour{remaining}, Fill: RemainingFill, Stroke: OutlineStroke},
		{Contours: results, Fill: ResultFill, Stroke: OutlineStroke},
		{Contours: []parcel.Contour{op.Clip()}, Fill: canvas.Transparent, Stroke: ClipStroke, Dashed: true},
	}

	// intersections are vertices of the outputs that are not vertices of the inputs
	eps := big.NewInt(op.Epsilon())
	points := []parcel.Point{}
	for _, c := range append([]parcel.Contour{remaining}, results...) {
		for _, p := range c {
			if op.Subject().Index(p, eps) < 0 && op.Clip().Index(p, eps) < 0 && indexPoint(points, p) < 0 {
				points = append(points, p)
			}
		}
	}
	if 0 < len(points) {
		layers = append(layers, Layer{Points: points, Fill: PointFill, Stroke: canvas.Transparent})
	}
	return layers
}

func indexPoint(ps []parcel.Point, p parcel.Point) int {
	for i, q := range ps {
		if q.Equals(p) {
			return i
		}
	}
	return -1
}

// Draw draws the layers in order onto a new canvas, scaled to fit the options' width.
func Draw(layers []Layer, opts Options) (*canvas.Canvas, error) {
	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	extend := func(p parcel.Point) {
		x, y := p.Float()
		xmin, xmax = math.Min(xmin, x), math.Max(xmax, x)
		ymin, ymax = math.Min(ymin, y), math.Max(ymax, y)
	}
	for _, layer := range layers {
		for _, c := range layer.Contours {
			for _, p := range c {
				extend(p)
			}
		}
		for _, p := range layer.Points {
			extend(p)
		}
	}
	if math.IsInf(xmin, 1) {
		return nil, ErrEmpty
	}

	w := opts.Width - 2.0*opts.Margin
	size := math.Max(xmax-xmin, ymax-ymin)
	if size == 0.0 || w <= 0.0 {
		return nil, errors.Wrap(ErrEmpty, "zero extent")
	}
	scale := w / size
	h := (ymax - ymin) * scale

	c := canvas.New(opts.Width, h+2.0*opts.Margin)
	ctx := canvas.NewContext(c)
	view := canvas.Identity.Translate(opts.Margin, opts.Margin).Scale(scale, scale).Translate(-xmin, -ymin)

	ctx.SetStrokeWidth(opts.StrokeWidth)
	for _, layer := range layers {
		ctx.SetFillColor(layer.Fill)
		ctx.SetStrokeColor(layer.Stroke)
		if layer.Dashed {
			ctx.SetDashes(0.0, 2.0*opts.StrokeWidth, 2.0*opts.StrokeWidth)
		} else {
			ctx.SetDashes(0.0)
		}
		for _, contour := range layer.Contours {
			if len(contour) == 0 {
				continue
			}
			ctx.DrawPath(0.0, 0.0, path(contour).Transform(view))
		}
		for _, p := range layer.Points {
			x, y := p.Float()
			q := view.Dot(canvas.Point{X: x, Y: y})
			ctx.DrawPath(q.X, q.Y, canvas.Circle(opts.PointRadius))
		}
	}
	return c, nil
}

func path(c parcel.Contour) *canvas.Path {
	p := &canvas.Path{}
	for i, q := range c {
		x, y := q.Float()
		if i == 0 {
			p.MoveTo(x, y)
		} else {
			p.LineTo(x, y)
		}
	}
	p.Close()
	return p
}

// WriteSVG writes the canvas as SVG.
func WriteSVG(w io.Writer, c *canvas.Canvas) error {
	r := svg.New(w, c.W, c.H, nil)
	c.Render(r)
	return r.Close()
}

// WriteFile writes the canvas to a file, with the image format given by its extension (svg, png, jpg, pdf, ...). Raster formats use the resolution in dots per millimeter.
func WriteFile(filename string, c *canvas.Canvas, resolution float64) error {
	if err := renderers.Write(filename, c, canvas.DPMM(resolution)); err != nil {
		return errors.Wrapf(err, "render %s", filename)
	}
	parcel.Logger().Sugar().Debugf("rendered %s (%.0fx%.0fmm)", filename, c.W, c.H)
	return nil
}
