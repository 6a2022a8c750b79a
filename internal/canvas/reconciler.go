package canvas

import (
	"image"
	"image/color"
	"sync"

	"SharedBoard/internal/state"
)

// TextPlaceholder is drawn while a text stroke is still being placed.
const TextPlaceholder = "Type your text here"

// Reconciler replays Draw Events onto a local raster mirror. It keeps one
// anchor per in-flight stroke, keyed by origin, and the frame captured when
// the latest stroke started so that shape previews can be erased.
//
// All methods are safe for concurrent use. The change callback runs after the
// lock is released and may be invoked from any goroutine.
type Reconciler struct {
	mu       sync.Mutex
	self     string
	raster   *Raster
	frame    *Raster
	anchors  map[string]image.Point
	onChange func()
}

func NewReconciler(self string, width, height int) *Reconciler {
	return &Reconciler{
		self:    self,
		raster:  NewRaster(width, height),
		anchors: make(map[string]image.Point),
	}
}

// SetSelf changes the id used for self-suppression.
func (r *Reconciler) SetSelf(id string) {
	r.mu.Lock()
	r.self = id
	r.mu.Unlock()
}

func (r *Reconciler) Self() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self
}

// OnChange registers the callback fired after every raster mutation.
func (r *Reconciler) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Apply consumes a remote event. Events that originate from this peer are
// ignored because the local input path already rendered them.
func (r *Reconciler) Apply(e state.DrawEvent) bool {
	return r.update(func() bool {
		if e.Origin == r.self {
			return false
		}
		return r.apply(e)
	})
}

// ApplyLocal renders an event produced by local input.
func (r *Reconciler) ApplyLocal(e state.DrawEvent) bool {
	return r.update(func() bool { return r.apply(e) })
}

// Anchor reports the in-flight anchor of origin, if any.
func (r *Reconciler) Anchor(origin string) (image.Point, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.anchors[origin]
	return p, ok
}

// Clear blanks the mirror.
func (r *Reconciler) Clear() {
	r.update(func() bool {
		r.raster.Clear()
		if r.frame != nil {
			r.frame.Clear()
		}
		return true
	})
}

// Load replaces the mirror with img, scaled to the canvas size.
func (r *Reconciler) Load(img image.Image) {
	r.update(func() bool {
		r.raster.Paste(img)
		if r.frame != nil {
			r.frame.CopyFrom(r.raster)
		}
		return true
	})
}

// Override decodes an encoded snapshot into the mirror.
func (r *Reconciler) Override(data []byte) error {
	img, err := DecodeBytes(data)
	if err != nil {
		return err
	}
	r.Load(img)
	return nil
}

// Snapshot encodes the current mirror.
func (r *Reconciler) Snapshot() ([]byte, error) {
	return EncodePNG(r.Image())
}

// Image returns a copy of the current pixels.
func (r *Reconciler) Image() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raster.Image()
}

func (r *Reconciler) At(x, y int) color.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raster.At(x, y)
}

func (r *Reconciler) Bounds() image.Rectangle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raster.Bounds()
}

func (r *Reconciler) update(fn func() bool) bool {
	r.mu.Lock()
	changed := fn()
	notify := r.onChange
	r.mu.Unlock()
	if changed && notify != nil {
		notify()
	}
	return changed
}

// apply runs the stroke state machine. The caller holds r.mu.
func (r *Reconciler) apply(e state.DrawEvent) bool {
	if !e.Tool.Valid() {
		return false
	}
	e = e.Clamped()
	switch e.Stage {
	case state.Start:
		r.anchors[e.Origin] = e.Point
		r.captureFrame()
		return false

	case state.Painting:
		anchor, ok := r.anchors[e.Origin]
		if !ok {
			return false
		}
		switch {
		case e.Tool.Incremental():
			r.stroke(e, anchor)
			r.anchors[e.Origin] = e.Point
		case e.Tool == state.Text:
			r.restoreFrame()
			r.raster.DrawText(e.Point, TextPlaceholder, e.Color)
		default:
			r.restoreFrame()
			r.stroke(e, anchor)
		}
		return true

	case state.End:
		anchor, ok := r.anchors[e.Origin]
		if !ok {
			return false
		}
		delete(r.anchors, e.Origin)
		switch {
		case e.Tool == state.Text:
			r.restoreFrame()
			r.raster.DrawText(e.Point, e.Text, e.Color)
		case e.Tool.Incremental():
			r.stroke(e, anchor)
		default:
			r.restoreFrame()
			r.stroke(e, anchor)
		}
		return true
	}
	return false
}

func (r *Reconciler) stroke(e state.DrawEvent, anchor image.Point) {
	r.raster.Draw(state.Geometry(e.Tool, anchor, e.Point), e.Tool.Paint(e.Color), e.Tool.StrokeWidth())
}

func (r *Reconciler) captureFrame() {
	if r.frame == nil {
		r.frame = r.raster.Clone()
		return
	}
	r.frame.CopyFrom(r.raster)
}

func (r *Reconciler) restoreFrame() {
	if r.frame != nil {
		r.raster.CopyFrom(r.frame)
	}
}
