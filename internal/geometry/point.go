package geometry

import (
	"fmt"
	"image"
	"math"
)

// Point is a floating-point pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Corner indices into a Quad.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Quad is an ordered quadrilateral: top-left, top-right, bottom-right,
// bottom-left.
type Quad [4]Point

// RectQuad returns the axis-aligned rectangle [(0,0),(w,0),(w,h),(0,h)].
func RectQuad(w, h float64) Quad {
	return Quad{{0, 0}, {w, 0}, {w, h}, {0, h}}
}

// IsFinite reports whether every corner is finite.
func (q Quad) IsFinite() bool {
	for _, p := range q {
		if !p.IsFinite() {
			return false
		}
	}
	return true
}

// Scale multiplies every coordinate by k. Used to convert display-space
// corners into natural image pixels.
func (q Quad) Scale(k float64) Quad {
	var out Quad
	for i, p := range q {
		out[i] = Point{X: p.X * k, Y: p.Y * k}
	}
	return out
}

// EdgeLengths returns the lengths of the top, right, bottom and left edges.
func (q Quad) EdgeLengths() [4]float64 {
	var out [4]float64
	for i := range q {
		out[i] = q[i].Dist(q[(i+1)%4])
	}
	return out
}

// Area returns the absolute polygon area (shoelace formula).
func (q Quad) Area() float64 {
	var sum float64
	for i := range q {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(sum) / 2
}

// IsConvex reports whether the corners form a strictly convex polygon in
// either winding order.
func (q Quad) IsConvex() bool {
	var positive, negative bool
	for i := range q {
		a := q[i]
		b := q[(i+1)%4]
		c := q[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		switch {
		case cross > 0:
			positive = true
		case cross < 0:
			negative = true
		default:
			return false
		}
	}
	return positive != negative
}

// Bounds returns the smallest integer rectangle containing every corner.
func (q Quad) Bounds() image.Rectangle {
	minX, minY := q[0].X, q[0].Y
	maxX, maxY := q[0].X, q[0].Y
	for _, p := range q[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// NaturalSize estimates the rectified page size from the corner positions:
// the longer of the top and bottom edges by the longer of the left and right
// edges, rounded to whole pixels.
func (q Quad) NaturalSize() (width, height int) {
	e := q.EdgeLengths()
	w := math.Max(e[0], e[2])
	h := math.Max(e[1], e[3])
	return int(math.Round(w)), int(math.Round(h))
}
