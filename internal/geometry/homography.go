package geometry

import (
	"math"
)

// Homography is a 3x3 projective matrix stored row-major:
//
//	h0 h1 h2
//	h3 h4 h5
//	h6 h7 h8
//
// Estimated matrices are normalized so that h8 == 1.
type Homography [9]float64

// wEpsilon is the smallest |W| Apply treats as a finite projection.
const wEpsilon = 1e-12

// Identity returns the identity homography.
func Identity() Homography {
	return Homography{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Apply projects (x, y) through h and returns (X/W, Y/W) where
//
//	X = h0*x + h1*y + h2
//	Y = h3*x + h4*y + h5
//	W = h6*x + h7*y + h8
//
// When W is (nearly) zero the point lies on the line at infinity and Apply
// returns (NaN, NaN).
func (h Homography) Apply(x, y float64) Point {
	w := h[6]*x + h[7]*y + h[8]
	if math.Abs(w) < wEpsilon {
		return Point{X: math.NaN(), Y: math.NaN()}
	}
	return Point{
		X: (h[0]*x + h[1]*y + h[2]) / w,
		Y: (h[3]*x + h[4]*y + h[5]) / w,
	}
}

// ApplyQuad projects every corner of q.
func (h Homography) ApplyQuad(q Quad) Quad {
	var out Quad
	for i, p := range q {
		out[i] = h.Apply(p.X, p.Y)
	}
	return out
}

// Mul returns the product h * o, so that applying the result equals applying
// o first and then h.
func (h Homography) Mul(o Homography) Homography {
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = h[r*3]*o[c] + h[r*3+1]*o[3+c] + h[r*3+2]*o[6+c]
		}
	}
	return out
}

// Normalize scales h so that h8 == 1. It reports false when h8 is zero or the
// result is not finite.
func (h Homography) Normalize() (Homography, bool) {
	if h[8] == 0 || math.IsNaN(h[8]) || math.IsInf(h[8], 0) {
		return h, false
	}
	var out Homography
	for i, v := range h {
		out[i] = v / h[8]
	}
	if !out.IsFinite() {
		return h, false
	}
	return out, true
}

// IsFinite reports whether every entry is a finite number.
func (h Homography) IsFinite() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Inverse returns the inverse transform, computed from the adjugate and
// normalized to h8 == 1.
func (h Homography) Inverse() (Homography, error) {
	adj := Homography{
		h[4]*h[8] - h[5]*h[7], h[2]*h[7] - h[1]*h[8], h[1]*h[5] - h[2]*h[4],
		h[5]*h[6] - h[3]*h[8], h[0]*h[8] - h[2]*h[6], h[2]*h[3] - h[0]*h[5],
		h[3]*h[7] - h[4]*h[6], h[1]*h[6] - h[0]*h[7], h[0]*h[4] - h[1]*h[3],
	}
	det := h[0]*adj[0] + h[1]*adj[3] + h[2]*adj[6]
	if det == 0 || math.IsNaN(det) {
		return Homography{}, degenerate("matrix is singular")
	}
	inv, ok := adj.Normalize()
	if !ok {
		return Homography{}, degenerate("inverse maps the origin to infinity")
	}
	return inv, nil
}

// ApproxEqual reports whether every entry of h and o differs by at most tol.
func (h Homography) ApproxEqual(o Homography, tol float64) bool {
	for i := range h {
		if math.Abs(h[i]-o[i]) > tol {
			return false
		}
	}
	return true
}
