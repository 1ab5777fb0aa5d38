package canvas

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/plot"
	gplotter "gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pithecene-io/rdint/log"
	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/types"
)

// defaultWidth is the export width in points when no screen size is given.
const defaultWidth = 800

// ErrEmptyCanvas is returned by Dump when the drawing area is degenerate.
var ErrEmptyCanvas = errors.New("canvas has a degenerate bounding box")

// Options configures a Canvas.
type Options struct {
	// Bed is the machine area discovered from the header limits.
	Bed types.BoundingBox
	// Clip, when set, discards work outside the box.
	Clip types.BoundingBox
	// AutoCrop exports only the drawn area.
	AutoCrop bool
	// Screen, when valid, fixes the export size in points.
	Screen types.BoundingBox
	// PreviewPath is re-exported every PreviewEvery pen lifts while
	// auto-update is on.
	PreviewPath  string
	PreviewEvery int
	// Logger receives preview failures. Nil discards them.
	Logger *log.Logger
}

// Polyline is one continuous pen-down stroke.
type Polyline struct {
	Color  color.RGBA
	Layer  int
	Points []types.Point
}

// Canvas collects pen-down strokes for export. The replay goroutine writes
// it while the console may dump it, so all access is serialized.
type Canvas struct {
	opts Options

	mu         sync.Mutex
	color      color.RGBA
	layer      int
	lines      []Polyline
	broken     bool
	drawn      types.BoundingBox
	lifts      int
	autoUpdate bool
}

// New creates an empty canvas.
func New(opts Options) *Canvas {
	return &Canvas{
		opts:   opts,
		color:  color.RGBA{A: 0xFF},
		layer:  -1,
		broken: true,
	}
}

// SetAutoUpdate toggles the periodic preview export.
func (c *Canvas) SetAutoUpdate(on bool) {
	c.mu.Lock()
	c.autoUpdate = on
	c.mu.Unlock()
}

// AutoUpdate reports whether periodic preview export is on.
func (c *Canvas) AutoUpdate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoUpdate
}

// PenUp ends the current stroke and may refresh the preview.
func (c *Canvas) PenUp(types.Point) {
	c.mu.Lock()
	c.broken = true
	c.lifts++
	refresh := c.autoUpdate && c.opts.PreviewPath != "" &&
		c.opts.PreviewEvery > 0 && c.lifts%c.opts.PreviewEvery == 0
	c.mu.Unlock()

	if refresh {
		if err := c.RefreshPreview(); err != nil && !errors.Is(err, ErrEmptyCanvas) && c.opts.Logger != nil {
			c.opts.Logger.Warn("preview export failed", map[string]any{
				"path":  c.opts.PreviewPath,
				"error": err.Error(),
			})
		}
	}
}

// PenDown starts a new stroke.
func (c *Canvas) PenDown(types.Point) {
	c.mu.Lock()
	c.broken = true
	c.mu.Unlock()
}

// Travel is ignored; only work is drawn.
func (c *Canvas) Travel(_, _ types.Point) {}

// Work adds a segment to the current stroke, clipped when a clip box is set.
func (c *Canvas) Work(from, to types.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, b := from, to
	if c.opts.Clip.Present {
		var ok bool
		if a, b, ok = clipSegment(from, to, c.opts.Clip); !ok {
			c.broken = true
			return
		}
	}

	n := len(c.lines)
	if c.broken || n == 0 || last(c.lines[n-1].Points) != a {
		c.lines = append(c.lines, Polyline{Color: c.color, Layer: c.layer, Points: []types.Point{a}})
		n++
	}
	c.lines[n-1].Points = append(c.lines[n-1].Points, b)
	c.broken = false
	c.drawn.Update(a)
	c.drawn.Update(b)
}

// LayerChanged switches the stroke color to the layer's color.
func (c *Canvas) LayerChanged(index int, layer plotter.Layer) {
	c.mu.Lock()
	c.layer = index
	c.color = color.RGBA{R: layer.Red, G: layer.Green, B: layer.Blue, A: 0xFF}
	c.broken = true
	c.mu.Unlock()
}

// Lines returns a copy of the collected strokes.
func (c *Canvas) Lines() []Polyline {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Polyline, len(c.lines))
	for i, l := range c.lines {
		out[i] = l
		out[i].Points = append([]types.Point(nil), l.Points...)
	}
	return out
}

// Drawn returns the bounding box of everything drawn so far.
func (c *Canvas) Drawn() types.BoundingBox {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawn
}

// Bounds returns the exported area: the drawn box when autocropping,
// else the clip box, else the bed, else the drawn box.
func (c *Canvas) Bounds() types.BoundingBox {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boundsLocked()
}

func (c *Canvas) boundsLocked() types.BoundingBox {
	switch {
	case c.opts.AutoCrop:
		return c.drawn
	case c.opts.Clip.Valid():
		return c.opts.Clip
	case c.opts.Bed.Valid():
		return c.opts.Bed
	default:
		return c.drawn
	}
}

// Valid reports whether the exported area is non-degenerate.
func (c *Canvas) Valid() bool {
	return c.Bounds().Valid()
}

// RefreshPreview exports the preview file once.
func (c *Canvas) RefreshPreview() error {
	if c.opts.PreviewPath == "" {
		return errors.New("no preview path configured")
	}
	return c.Dump(c.opts.PreviewPath)
}

// Dump exports the canvas to path. The format follows the extension
// (png, svg, pdf, eps, jpg, tif). Coordinates are drawn in millimeters.
func (c *Canvas) Dump(path string) error {
	lines := c.Lines()
	bounds := c.Bounds()
	if !bounds.Valid() {
		return ErrEmptyCanvas
	}

	p := plot.New()
	p.HideAxes()
	p.X.Min, p.X.Max = mm(bounds.Min.X), mm(bounds.Max.X)
	p.Y.Min, p.Y.Max = mm(bounds.Min.Y), mm(bounds.Max.Y)

	for _, l := range lines {
		xys := make(gplotter.XYs, len(l.Points))
		for i, pt := range l.Points {
			xys[i].X, xys[i].Y = mm(pt.X), mm(pt.Y)
		}
		line, err := gplotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("building stroke: %w", err)
		}
		line.LineStyle.Color = l.Color
		line.LineStyle.Width = vg.Points(0.5)
		p.Add(line)
	}

	w, h := c.exportSize(bounds)
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

// DumpAll exports to every non-empty path and aggregates failures. It
// returns the paths that were written.
func (c *Canvas) DumpAll(paths ...string) ([]string, error) {
	var written []string
	var result *multierror.Error
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := c.Dump(path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		written = append(written, path)
	}
	return written, result.ErrorOrNil()
}

func (c *Canvas) exportSize(bounds types.BoundingBox) (vg.Length, vg.Length) {
	if c.opts.Screen.Valid() {
		return vg.Length(c.opts.Screen.Width()), vg.Length(c.opts.Screen.Height())
	}
	aspect := float64(bounds.Height()) / float64(bounds.Width())
	return vg.Length(defaultWidth), vg.Length(math.Max(1, defaultWidth*aspect))
}

func mm(raw int64) float64 {
	return float64(raw) / 1000
}

func last(pts []types.Point) types.Point {
	return pts[len(pts)-1]
}

// clipSegment clips a-b to box (Liang-Barsky). ok is false when the
// segment lies entirely outside.
func clipSegment(a, b types.Point, box types.BoundingBox) (types.Point, types.Point, bool) {
	x0, y0 := float64(a.X), float64(a.Y)
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	t0, t1 := 0.0, 1.0

	edges := [4][2]float64{
		{-dx, x0 - float64(box.Min.X)},
		{dx, float64(box.Max.X) - x0},
		{-dy, y0 - float64(box.Min.Y)},
		{dy, float64(box.Max.Y) - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return a, b, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return a, b, false
			}
			t1 = math.Min(t1, r)
		}
	}

	at := func(t float64) types.Point {
		return types.Point{X: int64(math.Round(x0 + t*dx)), Y: int64(math.Round(y0 + t*dy))}
	}
	ca, cb := a, b
	if t0 > 0 {
		ca = at(t0)
	}
	if t1 < 1 {
		cb = at(t1)
	}
	return ca, cb, true
}

var (
	_ Observer              = (*Canvas)(nil)
	_ plotter.LayerObserver = (*Canvas)(nil)
)
