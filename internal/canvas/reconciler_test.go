package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SharedBoard/internal/state"
)

var red = color.RGBA{R: 255, A: 255}

func ev(stage state.Stage, tool state.Tool, origin string, x, y int) state.DrawEvent {
	return state.DrawEvent{Stage: stage, Tool: tool, Color: red, Point: image.Pt(x, y), Origin: origin}
}

func blank() *Raster {
	return NewRaster(DefaultWidth, DefaultHeight)
}

func TestSelfOriginIsSuppressed(t *testing.T) {
	r := NewReconciler("A", DefaultWidth, DefaultHeight)
	want := blank().Image().Pix

	for _, tool := range state.Tools() {
		for _, stage := range []state.Stage{state.Start, state.Painting, state.End} {
			changed := r.Apply(ev(stage, tool, "A", 20, 30))
			assert.False(t, changed, "%s/%s", stage, tool)
		}
	}
	_, ok := r.Anchor("A")
	assert.False(t, ok)
	assert.Equal(t, want, r.Image().Pix)
}

func TestShapeToolsCommitFinalGeometryOnly(t *testing.T) {
	p0, pf := image.Pt(40, 40), image.Pt(200, 120)
	intermediate := []image.Point{{X: 300, Y: 300}, {X: 10, Y: 400}, {X: 90, Y: 12}}

	for _, tool := range []state.Tool{state.Line, state.Circle, state.Triangle, state.Rectangle} {
		t.Run(tool.String(), func(t *testing.T) {
			r := NewReconciler("B", DefaultWidth, DefaultHeight)
			r.Apply(ev(state.Start, tool, "A", p0.X, p0.Y))
			for _, p := range intermediate {
				require.True(t, r.Apply(ev(state.Painting, tool, "A", p.X, p.Y)))
				anchor, ok := r.Anchor("A")
				require.True(t, ok)
				assert.Equal(t, p0, anchor, "anchor must not advance")
			}
			require.True(t, r.Apply(ev(state.End, tool, "A", pf.X, pf.Y)))

			want := blank()
			want.Draw(state.Geometry(tool, p0, pf), red, tool.StrokeWidth())
			assert.Equal(t, want.Image().Pix, r.Image().Pix)

			_, ok := r.Anchor("A")
			assert.False(t, ok)
		})
	}
}

func TestTextCommitsOnlyFinalText(t *testing.T) {
	r := NewReconciler("B", DefaultWidth, DefaultHeight)
	r.Apply(ev(state.Start, state.Text, "A", 50, 50))
	r.Apply(ev(state.Painting, state.Text, "A", 60, 60))
	r.Apply(ev(state.Painting, state.Text, "A", 80, 90))
	end := ev(state.End, state.Text, "A", 100, 100)
	end.Text = "hello"
	require.True(t, r.Apply(end))

	want := blank()
	want.DrawText(image.Pt(100, 100), "hello", red)
	assert.Equal(t, want.Image().Pix, r.Image().Pix)
}

func TestFreeHandCommitsUnionOfSegments(t *testing.T) {
	pts := []image.Point{{X: 10, Y: 10}, {X: 30, Y: 15}, {X: 45, Y: 60}, {X: 80, Y: 62}, {X: 120, Y: 20}}

	r := NewReconciler("B", DefaultWidth, DefaultHeight)
	r.Apply(ev(state.Start, state.FreeHand, "A", pts[0].X, pts[0].Y))
	for _, p := range pts[1 : len(pts)-1] {
		r.Apply(ev(state.Painting, state.FreeHand, "A", p.X, p.Y))
		anchor, _ := r.Anchor("A")
		assert.Equal(t, p, anchor, "anchor advances")
	}
	last := pts[len(pts)-1]
	r.Apply(ev(state.End, state.FreeHand, "A", last.X, last.Y))

	want := blank()
	for i := 1; i < len(pts); i++ {
		want.Draw(state.LineShape(pts[i-1], pts[i]), red, state.DefaultStrokeWidth)
	}
	assert.Equal(t, want.Image().Pix, r.Image().Pix)
}

func TestEraserUsesBackgroundAndWidePen(t *testing.T) {
	r := NewReconciler("B", DefaultWidth, DefaultHeight)
	black := image.NewRGBA(image.Rect(0, 0, DefaultWidth, DefaultHeight))
	draw.Draw(black, black.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	r.Load(black)

	r.Apply(ev(state.Start, state.Eraser, "A", 10, 100))
	r.Apply(ev(state.Painting, state.Eraser, "A", 60, 100))
	r.Apply(ev(state.End, state.Eraser, "A", 120, 100))

	assert.Equal(t, state.Background, r.At(40, 100))
	assert.Equal(t, state.Background, r.At(100, 100))
	// wider than the default pen
	assert.Equal(t, state.Background, r.At(100, 100+state.DefaultStrokeWidth+3))
	assert.Equal(t, color.RGBA{A: 255}, r.At(100, 140))
}

func TestReplayGapIsIgnored(t *testing.T) {
	r := NewReconciler("B", DefaultWidth, DefaultHeight)
	want := blank().Image().Pix

	assert.False(t, r.Apply(ev(state.Painting, state.FreeHand, "ghost", 10, 10)))
	assert.False(t, r.Apply(ev(state.End, state.Rectangle, "ghost", 90, 90)))
	assert.Equal(t, want, r.Image().Pix)
}

func TestConcurrentOriginsKeepSeparateAnchors(t *testing.T) {
	r := NewReconciler("Z", DefaultWidth, DefaultHeight)
	r.Apply(ev(state.Start, state.FreeHand, "A", 10, 10))
	r.Apply(ev(state.Start, state.FreeHand, "B", 300, 300))
	r.Apply(ev(state.Painting, state.FreeHand, "A", 20, 10))

	a, _ := r.Anchor("A")
	b, _ := r.Anchor("B")
	assert.Equal(t, image.Pt(20, 10), a)
	assert.Equal(t, image.Pt(300, 300), b)
}

func TestChangeNotification(t *testing.T) {
	r := NewReconciler("B", DefaultWidth, DefaultHeight)
	calls := 0
	r.OnChange(func() { calls++ })

	r.Apply(ev(state.Start, state.Line, "A", 1, 1))
	r.Apply(ev(state.End, state.Line, "A", 9, 9))
	r.Clear()
	assert.Equal(t, 2, calls)
}

func TestSnapshotRoundTrip(t *testing.T) {
	owner := NewReconciler("A", DefaultWidth, DefaultHeight)
	owner.ApplyLocal(ev(state.Start, state.Rectangle, "A", 5, 5))
	owner.ApplyLocal(ev(state.End, state.Rectangle, "A", 60, 40))

	data, err := owner.Snapshot()
	require.NoError(t, err)

	mirror := NewReconciler("C", DefaultWidth, DefaultHeight)
	require.NoError(t, mirror.Override(data))
	assert.Equal(t, owner.Image().Pix, mirror.Image().Pix)

	mirror.Clear()
	assert.Equal(t, blank().Image().Pix, mirror.Image().Pix)
}

func TestOverrideRejectsGarbage(t *testing.T) {
	r := NewReconciler("C", DefaultWidth, DefaultHeight)
	assert.ErrorIs(t, r.Override([]byte("not an image")), ErrSnapshotIO)
	assert.ErrorIs(t, r.Override(nil), ErrSnapshotIO)
}

func TestLoadScalesOtherSizes(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 70, 45))
	draw.Draw(small, small.Bounds(), image.NewUniform(red), image.Point{}, draw.Src)

	r := NewReconciler("A", DefaultWidth, DefaultHeight)
	r.Load(small)
	assert.Equal(t, image.Rect(0, 0, DefaultWidth, DefaultHeight), r.Bounds())
	assert.Equal(t, red, r.At(350, 225))
}

func applyWithin(t *testing.T, r *Reconciler, d time.Duration, events ...state.DrawEvent) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, e := range events {
			r.Apply(e)
		}
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("applying %d events took longer than %s", len(events), d)
	}
}

func TestOffCanvasLineIsClipped(t *testing.T) {
	r := NewReconciler("A", DefaultWidth, DefaultHeight)
	applyWithin(t, r, 2*time.Second,
		ev(state.Start, state.Line, "B", 0, 100),
		ev(state.End, state.Line, "B", 1<<30, 100),
	)
	assert.Equal(t, red, r.At(0, 100))
	assert.Equal(t, red, r.At(DefaultWidth-1, 100))
	assert.Equal(t, state.Background, r.At(350, 200))
}

func TestOffCanvasShapesFinishQuickly(t *testing.T) {
	r := NewReconciler("A", DefaultWidth, DefaultHeight)
	applyWithin(t, r, 2*time.Second,
		ev(state.Start, state.Circle, "B", 0, 0),
		ev(state.End, state.Circle, "B", 1<<26, 0),
		ev(state.Start, state.Circle, "C", -1<<30, -1<<30),
		ev(state.Painting, state.Circle, "C", 1<<30, 1<<30),
		ev(state.End, state.Circle, "C", 1<<30, 1<<30),
		ev(state.Start, state.FreeHand, "D", -1<<30, 50),
		ev(state.End, state.FreeHand, "D", 1<<30, 50),
	)
	assert.Equal(t, red, r.At(DefaultWidth/2, 50))
}

func TestClipSegment(t *testing.T) {
	rect := image.Rect(0, 0, 10, 10)
	tests := []struct {
		name   string
		a, b   image.Point
		ok     bool
		wa, wb image.Point
	}{
		{"inside", image.Pt(1, 1), image.Pt(8, 8), true, image.Pt(1, 1), image.Pt(8, 8)},
		{"horizontal", image.Pt(-100, 5), image.Pt(100, 5), true, image.Pt(0, 5), image.Pt(9, 5)},
		{"vertical", image.Pt(3, -50), image.Pt(3, 50), true, image.Pt(3, 0), image.Pt(3, 9)},
		{"diagonal", image.Pt(-9, -9), image.Pt(18, 18), true, image.Pt(0, 0), image.Pt(9, 9)},
		{"miss", image.Pt(-5, 20), image.Pt(20, 40), false, image.Point{}, image.Point{}},
		{"corner miss", image.Pt(-5, 3), image.Pt(3, -5), false, image.Point{}, image.Point{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, b, ok := clipSegment(tc.a, tc.b, rect)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.wa, a)
				assert.Equal(t, tc.wb, b)
			}
		})
	}
}
