package ui

import (
	"fmt"
	"image"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"SharedBoard/internal/canvas"
	"SharedBoard/internal/net"
	"SharedBoard/internal/participant"
)

func TestBoardWidgetMapsToRaster(t *testing.T) {
	test.NewTempApp(t)
	p := participant.New(canvas.DefaultWidth, canvas.DefaultHeight, zerolog.Nop())
	b := NewBoardWidget(p, zerolog.Nop())
	b.Resize(fyne.NewSize(350, 225))

	assert.Equal(t, image.Pt(0, 0), b.toRaster(fyne.NewPos(0, 0)))
	assert.Equal(t, image.Pt(350, 225), b.toRaster(fyne.NewPos(175, 112.5)))
	assert.Equal(t, image.Pt(699, 449), b.toRaster(fyne.NewPos(400, 300)))
	assert.Equal(t, image.Pt(0, 0), b.toRaster(fyne.NewPos(-5, -5)))
}

func TestBoardWidgetReportsRejectedInput(t *testing.T) {
	test.NewTempApp(t)
	p := participant.New(canvas.DefaultWidth, canvas.DefaultHeight, zerolog.Nop())
	b := NewBoardWidget(p, zerolog.Nop())
	b.Resize(fyne.NewSize(700, 450))

	var got error
	b.OnError = func(err error) { got = err }
	b.report(nil)
	assert.NoError(t, got)
	b.report(participant.ErrNotJoined)
	assert.ErrorIs(t, got, participant.ErrNotJoined)
}

func TestTerminationMessage(t *testing.T) {
	assert.Contains(t, terminationMessage(net.ErrAccessDenied), "denied")
	assert.Contains(t, terminationMessage(fmt.Errorf("wrapped: %w", participant.ErrSessionEnded)), "ended")
	assert.Contains(t, terminationMessage(net.ErrNameConflict), "taken")
	assert.Equal(t, "boom", terminationMessage(fmt.Errorf("boom")))
}
