package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectQuad(t *testing.T) {
	q := RectQuad(300, 200)
	assert.Equal(t, Quad{{0, 0}, {300, 0}, {300, 200}, {0, 200}}, q)
	assert.Equal(t, Point{300, 200}, q[BottomRight])
}

func TestQuad_EdgeLengthsAndArea(t *testing.T) {
	q := RectQuad(30, 40)
	assert.Equal(t, [4]float64{30, 40, 30, 40}, q.EdgeLengths())
	assert.InDelta(t, 1200.0, q.Area(), 1e-9)

	w, h := q.NaturalSize()
	assert.Equal(t, 30, w)
	assert.Equal(t, 40, h)
}

func TestQuad_NaturalSizeUsesLongerEdges(t *testing.T) {
	// Trapezoid: bottom edge longer than top, left edge longer than right.
	q := Quad{{10, 0}, {90, 0}, {100, 50}, {0, 60}}
	w, h := q.NaturalSize()
	assert.Equal(t, 100, w)
	assert.Equal(t, int(math.Round(math.Hypot(10, 60))), h)
}

func TestQuad_IsConvex(t *testing.T) {
	tests := []struct {
		name string
		q    Quad
		want bool
	}{
		{"rectangle", RectQuad(10, 10), true},
		{"counter-clockwise", Quad{{0, 0}, {0, 10}, {10, 10}, {10, 0}}, true},
		{"bow tie", Quad{{0, 0}, {10, 10}, {10, 0}, {0, 10}}, false},
		{"concave", Quad{{0, 0}, {10, 0}, {3, 3}, {0, 10}}, false},
		{"collinear edge", Quad{{0, 0}, {5, 0}, {10, 0}, {0, 10}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.IsConvex())
		})
	}
}

func TestQuad_Bounds(t *testing.T) {
	q := Quad{{10.5, 3}, {40, 2.2}, {41.1, 30}, {9, 31}}
	assert.Equal(t, image.Rect(9, 2, 42, 31), q.Bounds())
}

func TestQuad_Scale(t *testing.T) {
	q := Quad{{1, 2}, {3, 4}, {5, 6}, {7, 8}}
	assert.Equal(t, Quad{{2, 4}, {6, 8}, {10, 12}, {14, 16}}, q.Scale(2))
}

func TestPoint_IsFinite(t *testing.T) {
	assert.True(t, Pt(1, 2).IsFinite())
	assert.False(t, Pt(math.NaN(), 2).IsFinite())
	assert.False(t, Pt(1, math.Inf(-1)).IsFinite())
	assert.False(t, RectQuad(1, 1).Scale(math.Inf(1)).IsFinite())
}
