package ui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"SharedBoard/internal/participant"
	"SharedBoard/internal/state"
)

// BoardWidget shows the participant's raster mirror and turns mouse input
// into Press/Drag/Release calls in raster coordinates.
type BoardWidget struct {
	widget.BaseWidget
	p      *participant.Participant
	log    zerolog.Logger
	raster *canvas.Image

	drawing bool
	last    image.Point

	// OnText asks for the string of a text stroke released at pt. The
	// callback must eventually call done exactly once.
	OnText func(pt image.Point, done func(text string))
	// OnError reports input the participant rejected.
	OnError func(err error)
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)

func NewBoardWidget(p *participant.Participant, log zerolog.Logger) *BoardWidget {
	b := &BoardWidget{p: p, log: log}
	b.raster = canvas.NewImageFromImage(p.Board().Image())
	b.raster.FillMode = canvas.ImageFillStretch
	b.raster.ScaleMode = canvas.ImageScalePixels
	b.ExtendBaseWidget(b)
	return b
}

// Redraw pulls the current pixels from the board. Call it on the fyne
// goroutine.
func (b *BoardWidget) Redraw() {
	b.raster.Image = b.p.Board().Image()
	b.raster.Refresh()
}

// toRaster maps a widget position onto the fixed raster grid.
func (b *BoardWidget) toRaster(pos fyne.Position) image.Point {
	bounds := b.p.Board().Bounds()
	size := b.Size()
	if size.Width <= 0 || size.Height <= 0 {
		return image.Pt(int(pos.X), int(pos.Y))
	}
	x := int(pos.X / size.Width * float32(bounds.Dx()))
	y := int(pos.Y / size.Height * float32(bounds.Dy()))
	return image.Pt(min(max(x, 0), bounds.Dx()-1), min(max(y, 0), bounds.Dy()-1))
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	pt := b.toRaster(e.Position)
	if err := b.p.Press(pt); err != nil {
		b.report(err)
		return
	}
	b.drawing = true
	b.last = pt
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	if !b.drawing {
		return
	}
	pt := b.toRaster(e.Position)
	if pt == b.last {
		return
	}
	b.last = pt
	b.report(b.p.Drag(pt))
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if !b.drawing || e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.drawing = false
	pt := b.toRaster(e.Position)
	if b.p.Tool() == state.Text && b.OnText != nil {
		b.OnText(pt, func(text string) { b.report(b.p.Release(pt, text)) })
		return
	}
	b.report(b.p.Release(pt, ""))
}

func (b *BoardWidget) report(err error) {
	if err == nil {
		return
	}
	b.log.Warn().Err(err).Msg("board input rejected")
	if b.OnError != nil {
		b.OnError(err)
	}
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent) {}
func (b *BoardWidget) MouseOut() {}
func (b *BoardWidget) MouseMoved(*desktop.MouseEvent) {}
func (b *BoardWidget) DragEnd() {}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	return &boardWidgetRenderer{board: b}
}

type boardWidgetRenderer struct {
	board *BoardWidget
}

func (r *boardWidgetRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.board.raster}
}

func (r *boardWidgetRenderer) Layout(size fyne.Size) {
	r.board.raster.Resize(size)
}

func (r *boardWidgetRenderer) MinSize() fyne.Size {
	bounds := r.board.p.Board().Bounds()
	return fyne.NewSize(float32(bounds.Dx()), float32(bounds.Dy()))
}

func (r *boardWidgetRenderer) Refresh() {
	canvas.Refresh(r.board.raster)
}

func (r *boardWidgetRenderer) Destroy() {}
