package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"SharedBoard/internal/state"
)

// Canvas size agreed by every end of a session.
const (
	DefaultWidth  = 700
	DefaultHeight = 450
)

// Raster is a fixed-size RGBA drawing surface. It is not safe for concurrent
// use; the Reconciler owns the locking.
type Raster struct {
	img *image.RGBA
}

// NewRaster returns a blank raster filled with the background color.
func NewRaster(width, height int) *Raster {
	r := &Raster{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	r.Clear()
	return r
}

func (r *Raster) Bounds() image.Rectangle { return r.img.Bounds() }

func (r *Raster) At(x, y int) color.RGBA { return r.img.RGBAAt(x, y) }

// Clear resets every pixel to the background color.
func (r *Raster) Clear() {
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(state.Background), image.Point{}, draw.Src)
}

// Clone returns an independent copy.
func (r *Raster) Clone() *Raster {
	img := image.NewRGBA(r.img.Bounds())
	copy(img.Pix, r.img.Pix)
	return &Raster{img: img}
}

// CopyFrom overwrites r with the pixels of src. Both rasters must share bounds.
func (r *Raster) CopyFrom(src *Raster) {
	if src.img.Bounds() == r.img.Bounds() {
		copy(r.img.Pix, src.img.Pix)
		return
	}
	draw.Draw(r.img, r.img.Bounds(), src.img, image.Point{}, draw.Src)
}

// Image returns a copy of the pixels for rendering or encoding.
func (r *Raster) Image() *image.RGBA {
	return r.Clone().img
}

// Draw strokes the outline of s with a square pen of the given width.
func (r *Raster) Draw(s state.Shape, c color.RGBA, width int) {
	switch s.Kind {
	case state.ShapeLine:
		if len(s.Vertices) == 2 {
			r.line(s.Vertices[0], s.Vertices[1], c, width)
		}
	case state.ShapeTriangle:
		r.polygon(s.Vertices, c, width)
	case state.ShapeRectangle:
		b := s.Bounds
		r.polygon([]image.Point{b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y}}, c, width)
	case state.ShapeCircle:
		r.circle(s.Bounds, c, width)
	}
}

// DrawText renders text with its baseline starting at p.
func (r *Raster) DrawText(p image.Point, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  r.img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(p.X, p.Y),
	}
	d.DrawString(text)
}

// Paste scales src onto the whole raster.
func (r *Raster) Paste(src image.Image) {
	fit(r.img, src)
}

func (r *Raster) polygon(pts []image.Point, c color.RGBA, width int) {
	for i := range pts {
		r.line(pts[i], pts[(i+1)%len(pts)], c, width)
	}
}

// maxCircleSteps caps the chord count of very large circles; most of such an
// outline is off the raster anyway.
const maxCircleSteps = 4096

func (r *Raster) circle(box image.Rectangle, c color.RGBA, width int) {
	radius := float64(box.Dx()) / 2
	if radius == 0 {
		r.dot(box.Min, c, width)
		return
	}
	cx := float64(box.Min.X) + radius
	cy := float64(box.Min.Y) + radius
	if !r.outlineVisible(cx, cy, radius, width) {
		return
	}
	steps := min(maxCircleSteps, max(8, int(math.Ceil(2*math.Pi*radius))))
	prev := image.Pt(int(math.Round(cx+radius)), int(math.Round(cy)))
	for i := 1; i <= steps; i++ {
		theta := 2 * math.Pi * float64(i) / float64(steps)
		next := image.Pt(int(math.Round(cx+radius*math.Cos(theta))), int(math.Round(cy+radius*math.Sin(theta))))
		r.line(prev, next, c, width)
		prev = next
	}
}

// outlineVisible reports whether a circle outline can touch the raster: the
// pen-padded raster must overlap the circle's box without lying wholly
// inside the circle.
func (r *Raster) outlineVisible(cx, cy, radius float64, width int) bool {
	b := r.padded(width)
	minX, minY := float64(b.Min.X), float64(b.Min.Y)
	maxX, maxY := float64(b.Max.X), float64(b.Max.Y)
	if cx+radius < minX || cx-radius > maxX || cy+radius < minY || cy-radius > maxY {
		return false
	}
	far := math.Hypot(math.Max(math.Abs(cx-minX), math.Abs(cx-maxX)), math.Max(math.Abs(cy-minY), math.Abs(cy-maxY)))
	return far >= radius-1
}

// line walks Bresenham's algorithm from a to b, stamping the pen at each step.
// Segments reaching outside the pen-padded raster are clipped first.
func (r *Raster) line(a, b image.Point, c color.RGBA, width int) {
	pad := r.padded(width)
	if !a.In(pad) || !b.In(pad) {
		var ok bool
		if a, b, ok = clipSegment(a, b, pad); !ok {
			return
		}
	}
	dx := absInt(b.X - a.X)
	dy := -absInt(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	p := a
	for {
		r.dot(p, c, width)
		if p == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			p.X += sx
		}
		if e2 <= dx {
			e += dx
			p.Y += sy
		}
	}
}

// padded is the raster bounds grown by the pen width.
func (r *Raster) padded(width int) image.Rectangle {
	return r.img.Bounds().Inset(-max(width, 1))
}

// Region codes for clipSegment.
const (
	outLeft = 1 << iota
	outRight
	outBottom
	outTop
)

func outCode(x, y float64, minX, minY, maxX, maxY float64) int {
	code := 0
	switch {
	case x < minX:
		code |= outLeft
	case x > maxX:
		code |= outRight
	}
	switch {
	case y < minY:
		code |= outTop
	case y > maxY:
		code |= outBottom
	}
	return code
}

// clipSegment cuts a-b to rect with Cohen-Sutherland. ok is false when the
// segment misses rect entirely.
func clipSegment(a, b image.Point, rect image.Rectangle) (image.Point, image.Point, bool) {
	minX, minY := float64(rect.Min.X), float64(rect.Min.Y)
	maxX, maxY := float64(rect.Max.X-1), float64(rect.Max.Y-1)
	x0, y0, x1, y1 := float64(a.X), float64(a.Y), float64(b.X), float64(b.Y)
	c0 := outCode(x0, y0, minX, minY, maxX, maxY)
	c1 := outCode(x1, y1, minX, minY, maxX, maxY)
	// Each endpoint moves onto at most two edges.
	for i := 0; i < 8; i++ {
		if c0|c1 == 0 {
			return image.Pt(int(math.Round(x0)), int(math.Round(y0))), image.Pt(int(math.Round(x1)), int(math.Round(y1))), true
		}
		if c0&c1 != 0 {
			return a, b, false
		}
		out := c0
		if out == 0 {
			out = c1
		}
		var x, y float64
		switch {
		case out&outTop != 0:
			x, y = x0+(x1-x0)*(minY-y0)/(y1-y0), minY
		case out&outBottom != 0:
			x, y = x0+(x1-x0)*(maxY-y0)/(y1-y0), maxY
		case out&outRight != 0:
			x, y = maxX, y0+(y1-y0)*(maxX-x0)/(x1-x0)
		default:
			x, y = minX, y0+(y1-y0)*(minX-x0)/(x1-x0)
		}
		if out == c0 {
			x0, y0 = x, y
			c0 = outCode(x0, y0, minX, minY, maxX, maxY)
		} else {
			x1, y1 = x, y
			c1 = outCode(x1, y1, minX, minY, maxX, maxY)
		}
	}
	return a, b, false
}

func (r *Raster) dot(p image.Point, c color.RGBA, width int) {
	width = max(width, 1)
	off := width / 2
	pen := image.Rect(p.X-off, p.Y-off, p.X-off+width, p.Y-off+width).Intersect(r.img.Bounds())
	for y := pen.Min.Y; y < pen.Max.Y; y++ {
		for x := pen.Min.X; x < pen.Max.X; x++ {
			r.img.SetRGBA(x, y, c)
		}
	}
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
