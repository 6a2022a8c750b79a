package state

import "image"

// ShapeKind identifies the geometry produced for a tool.
type ShapeKind uint8

const (
	ShapeLine ShapeKind = iota
	ShapeRectangle
	ShapeCircle
	ShapeTriangle
	ShapeText
)

// Shape is a pure description of what to draw. Lines and triangles use
// Vertices; rectangles and circles use Bounds; text uses Vertices[0] as its
// baseline origin.
type Shape struct {
	Kind     ShapeKind
	Vertices []image.Point
	Bounds   image.Rectangle
}

// Geometry maps (tool, anchor, current point) to the shape the tool draws.
func Geometry(tool Tool, p1, p2 image.Point) Shape {
	switch tool.Shape() {
	case ShapeRectangle:
		return RectangleShape(p1, p2)
	case ShapeCircle:
		return CircleShape(p1, p2)
	case ShapeTriangle:
		return TriangleShape(p1, p2)
	case ShapeText:
		return Shape{Kind: ShapeText, Vertices: []image.Point{p2}}
	default:
		return LineShape(p1, p2)
	}
}

func LineShape(p1, p2 image.Point) Shape {
	return Shape{Kind: ShapeLine, Vertices: []image.Point{p1, p2}}
}

// RectangleShape is the axis-aligned box spanned by p1 and p2.
func RectangleShape(p1, p2 image.Point) Shape {
	return Shape{Kind: ShapeRectangle, Bounds: image.Rectangle{Min: p1, Max: p2}.Canon()}
}

// CircleShape is always a true circle: its bounding square has side
// max(|dx|, |dy|) and sits at the componentwise minimum corner.
func CircleShape(p1, p2 image.Point) Shape {
	corner := image.Pt(min(p1.X, p2.X), min(p1.Y, p2.Y))
	side := max(absInt(p1.X-p2.X), absInt(p1.Y-p2.Y))
	return Shape{Kind: ShapeCircle, Bounds: image.Rectangle{Min: corner, Max: corner.Add(image.Pt(side, side))}}
}

// TriangleShape returns (left base, apex, right base). Dragging upward
// (p2.Y < p1.Y) swaps apex and base vertically.
func TriangleShape(p1, p2 image.Point) Shape {
	minX, maxX := min(p1.X, p2.X), max(p1.X, p2.X)
	minY, maxY := min(p1.Y, p2.Y), max(p1.Y, p2.Y)
	baseY, apexY := maxY, minY
	if p2.Y < p1.Y {
		baseY, apexY = minY, maxY
	}
	return Shape{Kind: ShapeTriangle, Vertices: []image.Point{
		{X: minX, Y: baseY},
		{X: (minX + maxX) / 2, Y: apexY},
		{X: maxX, Y: baseY},
	}}
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
