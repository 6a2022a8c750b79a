package state

import (
	"fmt"
	"image/color"
)

// Tool is the closed set of drawing tools. Every per-tool constant lives in
// the toolSpecs table below.
type Tool uint8

const (
	FreeHand Tool = iota
	Line
	Circle
	Triangle
	Rectangle
	Text
	Eraser
)

const (
	DefaultStrokeWidth = 2
	EraserStrokeWidth  = 15
)

var (
	Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Foreground = color.RGBA{A: 255}
)

type toolSpec struct {
	name string
	// incremental tools advance the anchor on every Painting event.
	incremental bool
	// background tools paint with Background regardless of the event color.
	background bool
	width      int
	shape      ShapeKind
}

var toolSpecs = [...]toolSpec{
	FreeHand:  {name: "free", incremental: true, width: DefaultStrokeWidth, shape: ShapeLine},
	Line:      {name: "line", width: DefaultStrokeWidth, shape: ShapeLine},
	Circle:    {name: "circle", width: DefaultStrokeWidth, shape: ShapeCircle},
	Triangle:  {name: "triangle", width: DefaultStrokeWidth, shape: ShapeTriangle},
	Rectangle: {name: "rectangle", width: DefaultStrokeWidth, shape: ShapeRectangle},
	Text:      {name: "text", width: 1, shape: ShapeText},
	Eraser:    {name: "eraser", incremental: true, background: true, width: EraserStrokeWidth, shape: ShapeLine},
}

// Tools lists every tool in toolbar order.
func Tools() []Tool {
	return []Tool{FreeHand, Line, Circle, Triangle, Rectangle, Text, Eraser}
}

func (t Tool) Valid() bool { return int(t) < len(toolSpecs) }

func (t Tool) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tool(%d)", uint8(t))
	}
	return toolSpecs[t].name
}

// Incremental reports whether the tool draws segment by segment (FreeHand,
// Eraser) rather than re-drawing one shape from a fixed anchor.
func (t Tool) Incremental() bool { return t.Valid() && toolSpecs[t].incremental }

// StrokeWidth is the pen width in pixels used for this tool.
func (t Tool) StrokeWidth() int {
	if !t.Valid() {
		return DefaultStrokeWidth
	}
	return toolSpecs[t].width
}

// Shape is the geometry the tool produces.
func (t Tool) Shape() ShapeKind {
	if !t.Valid() {
		return ShapeLine
	}
	return toolSpecs[t].shape
}

// Paint resolves the color actually committed by this tool.
func (t Tool) Paint(c color.RGBA) color.RGBA {
	if t.Valid() && toolSpecs[t].background {
		return Background
	}
	return c
}

func (t Tool) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("state: unknown tool %d", uint8(t))
	}
	return []byte(toolSpecs[t].name), nil
}

func (t *Tool) UnmarshalText(b []byte) error {
	tool, err := ParseTool(string(b))
	if err != nil {
		return err
	}
	*t = tool
	return nil
}

// ParseTool maps a tool name back to its Tool.
func ParseTool(name string) (Tool, error) {
	for i, spec := range toolSpecs {
		if spec.name == name {
			return Tool(i), nil
		}
	}
	return 0, fmt.Errorf("state: unknown tool %q", name)
}

// NamedColor is one swatch of the palette.
type NamedColor struct {
	Name  string
	Color color.RGBA
}

// Palette holds the sixteen named colors offered by the toolbar.
var Palette = []NamedColor{
	{"black", color.RGBA{A: 255}},
	{"white", color.RGBA{R: 255, G: 255, B: 255, A: 255}},
	{"gray", color.RGBA{R: 128, G: 128, B: 128, A: 255}},
	{"silver", color.RGBA{R: 75, G: 75, B: 75, A: 255}},
	{"maroon", color.RGBA{R: 50, A: 255}},
	{"red", color.RGBA{R: 255, A: 255}},
	{"purple", color.RGBA{R: 128, B: 128, A: 255}},
	{"fuchsia", color.RGBA{R: 255, B: 255, A: 255}},
	{"green", color.RGBA{G: 128, A: 255}},
	{"lime", color.RGBA{G: 255, A: 255}},
	{"olive", color.RGBA{R: 128, G: 128, A: 255}},
	{"yellow", color.RGBA{R: 255, G: 255, A: 255}},
	{"navy", color.RGBA{B: 50, A: 255}},
	{"blue", color.RGBA{B: 255, A: 255}},
	{"teal", color.RGBA{G: 50, B: 50, A: 255}},
	{"aqua", color.RGBA{G: 100, B: 100, A: 255}},
}

// LookupColor finds a palette entry by name.
func LookupColor(name string) (color.RGBA, bool) {
	for _, c := range Palette {
		if c.Name == name {
			return c.Color, true
		}
	}
	return color.RGBA{}, false
}
