package geometry

import (
	"math"
	"math/rand"
)

// DefaultPowerIterations is the fixed iteration count of PowerIteration.
const DefaultPowerIterations = 80

// PowerIteration approximates the DLT null vector as the eigenvector of AᵗA
// with the smallest eigenvalue, using shifted power iteration on
// B = alpha*I - AᵗA with alpha = trace(AᵗA) + 1. There is no convergence
// check inside the loop: the vector is multiplied and renormalized exactly
// Iterations times. The result is then checked by reprojecting src; if any
// corner lands further than powerResidual times the destination extent
// from its target, Estimate fails with ErrDegenerateCorrespondence instead of
// returning a wrong matrix.
//
// The starting vector is drawn from Rand, so a fixed seed reproduces the same
// matrix. Prefer Direct; this solver is kept for comparison with results
// produced by the eigenvector method.
type PowerIteration struct {
	// Rand seeds the start vector. A nil Rand uses a source seeded with 1.
	Rand *rand.Rand

	// Iterations is the number of multiply/renormalize steps.
	// Zero means DefaultPowerIterations.
	Iterations int
}

// Estimate implements Solver.
func (p PowerIteration) Estimate(src, dst Quad) (Homography, error) {
	if err := checkCorrespondence(src, dst); err != nil {
		return Homography{}, err
	}

	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	iterations := p.Iterations
	if iterations <= 0 {
		iterations = DefaultPowerIterations
	}

	srcN, tSrc := normalizePoints(src)
	dstN, tDst := normalizePoints(dst)

	var a [8][9]float64
	for i := range 4 {
		X, Y := srcN[i].X, srcN[i].Y
		x, y := dstN[i].X, dstN[i].Y
		a[2*i] = [9]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x, -x}
		a[2*i+1] = [9]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y, -y}
	}

	var ata [9][9]float64
	for r := range 9 {
		for c := range 9 {
			var sum float64
			for k := range 8 {
				sum += a[k][r] * a[k][c]
			}
			ata[r][c] = sum
		}
	}

	var trace float64
	for i := range 9 {
		trace += ata[i][i]
	}
	alpha := trace + 1

	var b [9][9]float64
	for r := range 9 {
		for c := range 9 {
			b[r][c] = -ata[r][c]
		}
		b[r][r] += alpha
	}

	var v [9]float64
	for i := range v {
		v[i] = rng.Float64()
	}

	for range iterations {
		var next [9]float64
		var norm float64
		for r := range 9 {
			var sum float64
			for c := range 9 {
				sum += b[r][c] * v[c]
			}
			next[r] = sum
			norm += sum * sum
		}
		norm = math.Sqrt(norm)
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			return Homography{}, degenerate("power iteration collapsed")
		}
		for i := range next {
			v[i] = next[i] / norm
		}
	}

	h, err := denormalize(Homography(v), tSrc, tDst)
	if err != nil {
		return Homography{}, err
	}
	if r := residual(h, src, dst); r > powerResidual*quadExtent(dst) {
		return Homography{}, degenerate("power iteration did not converge after %d iterations (residual %.3g)", iterations, r)
	}
	return h, nil
}

// powerResidual bounds the reprojection error of a power iteration result,
// relative to the destination extent.
const powerResidual = 1e-6

// residual returns the largest distance between h(src[i]) and dst[i].
func residual(h Homography, src, dst Quad) float64 {
	var worst float64
	for i, p := range h.ApplyQuad(src) {
		d := p.Dist(dst[i])
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		worst = math.Max(worst, d)
	}
	return worst
}
