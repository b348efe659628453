package geometry

import (
	"math"
)

// Solver estimates the homography mapping src[i] to dst[i].
type Solver interface {
	Estimate(src, dst Quad) (Homography, error)
}

// Direct solves the DLT system with h8 fixed to 1 by Gauss-Jordan elimination.
// It is deterministic and is the default solver.
type Direct struct{}

// Estimate returns the homography H with dst[i] ~ H * src[i], normalized so
// that H[8] == 1. See Direct.
func Estimate(src, dst Quad) (Homography, error) {
	return Direct{}.Estimate(src, dst)
}

// Estimate implements Solver.
func (Direct) Estimate(src, dst Quad) (Homography, error) {
	if err := checkCorrespondence(src, dst); err != nil {
		return Homography{}, err
	}

	srcN, tSrc := normalizePoints(src)
	dstN, tDst := normalizePoints(dst)

	// Build 8x8 system A*h = b for h0..h7:
	//   x' = (h0 X + h1 Y + h2) / (h6 X + h7 Y + 1)
	//   y' = (h3 X + h4 Y + h5) / (h6 X + h7 Y + 1)
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := srcN[i].X, srcN[i].Y
		x, y := dstN[i].X, dstN[i].Y
		r := 2 * i
		a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}

	h, ok := solve8x8(a, b)
	if !ok {
		return Homography{}, degenerate("linear system is singular")
	}
	hn := Homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}
	return denormalize(hn, tSrc, tDst)
}

// pivotEpsilon is the smallest pivot accepted on Hartley-normalized input.
const pivotEpsilon = 1e-12

// solve8x8 runs Gauss-Jordan elimination with partial pivoting.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	for col := range 8 {
		pivot := col
		maxAbs := math.Abs(a[col][col])
		for r := col + 1; r < 8; r++ {
			if v := math.Abs(a[r][col]); v > maxAbs {
				maxAbs = v
				pivot = r
			}
		}
		if maxAbs < pivotEpsilon {
			return [8]float64{}, false
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}

		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div

		for r := range 8 {
			if r == col {
				continue
			}
			factor := a[r][col]
			if factor == 0 {
				continue
			}
			for c := col; c < 8; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}
	return b, true
}

// similarity is the Hartley normalization x' = s*(x - cx), y' = s*(y - cy).
type similarity struct {
	s, cx, cy float64
}

func (t similarity) matrix() Homography {
	return Homography{
		t.s, 0, -t.s * t.cx,
		0, t.s, -t.s * t.cy,
		0, 0, 1,
	}
}

func (t similarity) inverse() Homography {
	return Homography{
		1 / t.s, 0, t.cx,
		0, 1 / t.s, t.cy,
		0, 0, 1,
	}
}

// normalizePoints moves the centroid to the origin and scales the points so
// their mean distance from it is sqrt(2).
func normalizePoints(q Quad) (Quad, similarity) {
	var cx, cy float64
	for _, p := range q {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4

	var mean float64
	for _, p := range q {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= 4

	t := similarity{s: math.Sqrt2 / mean, cx: cx, cy: cy}
	var out Quad
	for i, p := range q {
		out[i] = Point{X: t.s * (p.X - cx), Y: t.s * (p.Y - cy)}
	}
	return out, t
}

// denormalize maps a homography between normalized point sets back to the
// original coordinates: H = Tdst^-1 * Hn * Tsrc.
func denormalize(hn Homography, tSrc, tDst similarity) (Homography, error) {
	h := tDst.inverse().Mul(hn).Mul(tSrc.matrix())
	if !h.IsFinite() {
		return Homography{}, degenerate("result is not finite")
	}
	if math.Abs(h[8]) < wEpsilon {
		return Homography{}, degenerate("h8 is zero")
	}
	out, ok := h.Normalize()
	if !ok {
		return Homography{}, degenerate("result cannot be normalized")
	}
	return out, nil
}

// collinearEpsilon bounds |cross| / extent^2 for three points to count as
// collinear.
const collinearEpsilon = 1e-9

func checkCorrespondence(src, dst Quad) error {
	if err := checkQuad("source", src); err != nil {
		return err
	}
	return checkQuad("destination", dst)
}

// quadExtent is the largest distance between two corners of q.
func quadExtent(q Quad) float64 {
	var extent float64
	for i := range q {
		for j := i + 1; j < 4; j++ {
			extent = math.Max(extent, q[i].Dist(q[j]))
		}
	}
	return extent
}

func checkQuad(name string, q Quad) error {
	if !q.IsFinite() {
		return degenerate("%s points are not finite", name)
	}

	extent := quadExtent(q)
	if extent == 0 {
		return degenerate("%s points are coincident", name)
	}

	for i := range q {
		for j := i + 1; j < 4; j++ {
			if q[i].Dist(q[j]) <= collinearEpsilon*extent {
				return degenerate("%s points %d and %d are coincident", name, i, j)
			}
		}
	}

	scale := extent * extent
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				ab := q[j].Sub(q[i])
				ac := q[k].Sub(q[i])
				cross := ab.X*ac.Y - ab.Y*ac.X
				if math.Abs(cross) <= collinearEpsilon*scale {
					return degenerate("%s points %d, %d and %d are collinear", name, i, j, k)
				}
			}
		}
	}
	return nil
}
