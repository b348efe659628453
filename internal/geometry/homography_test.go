package geometry

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func TestIdentityApply(t *testing.T) {
	h := Identity()
	tests := []struct {
		x, y float64
	}{
		{0, 0},
		{1, 1},
		{-3.5, 12.25},
		{1e6, -1e6},
		{0.001, 499.999},
	}
	for _, tt := range tests {
		p := h.Apply(tt.x, tt.y)
		assert.Equal(t, tt.x, p.X)
		assert.Equal(t, tt.y, p.Y)
	}
}

func TestApply_PointAtInfinity(t *testing.T) {
	// W = x, so the y axis maps to infinity.
	h := Homography{1, 0, 0, 0, 1, 0, 1, 0, 0}
	p := h.Apply(0, 5)
	assert.False(t, p.IsFinite())
	assert.True(t, math.IsNaN(p.X))

	p = h.Apply(2, 4)
	assert.True(t, p.IsFinite())
	assert.InDelta(t, 1.0, p.X, tol)
	assert.InDelta(t, 2.0, p.Y, tol)
}

func TestEstimate_Identity(t *testing.T) {
	rect := RectQuad(640, 480)
	h, err := Estimate(rect, rect)
	require.NoError(t, err)
	assert.True(t, h.ApproxEqual(Identity(), tol), "got %v", h)
	assert.Equal(t, 1.0, h[8])
}

func TestEstimate_PureScale(t *testing.T) {
	for _, k := range []float64{0.25, 0.5, 2, 3.75} {
		src := RectQuad(120, 80)
		h, err := Estimate(src, src.Scale(k))
		require.NoError(t, err)
		want := Homography{k, 0, 0, 0, k, 0, 0, 0, 1}
		assert.True(t, h.ApproxEqual(want, 1e-9), "k=%g got %v", k, h)
	}
}

func TestEstimate_Perspective(t *testing.T) {
	src := Quad{{112, 64}, {530, 98}, {601, 455}, {40, 470}}
	dst := RectQuad(500, 700)

	h, err := Estimate(src, dst)
	require.NoError(t, err)
	for i := range src {
		p := h.Apply(src[i].X, src[i].Y)
		assert.InDelta(t, dst[i].X, p.X, 1e-6, "corner %d x", i)
		assert.InDelta(t, dst[i].Y, p.Y, 1e-6, "corner %d y", i)
	}

	inv, err := h.Inverse()
	require.NoError(t, err)
	for i := range dst {
		p := inv.Apply(dst[i].X, dst[i].Y)
		assert.InDelta(t, src[i].X, p.X, 1e-6)
		assert.InDelta(t, src[i].Y, p.Y, 1e-6)
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	src := Quad{{10, 20}, {300, 15}, {320, 260}, {5, 240}}
	dst := RectQuad(300, 250)
	h1, err := Estimate(src, dst)
	require.NoError(t, err)
	h2, err := Estimate(src, dst)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestEstimate_Degenerate(t *testing.T) {
	rect := RectQuad(100, 100)
	tests := []struct {
		name     string
		src, dst Quad
	}{
		{"all collinear", Quad{{0, 0}, {1, 1}, {2, 2}, {3, 3}}, rect},
		{"three collinear", Quad{{0, 0}, {50, 0}, {100, 0}, {0, 100}}, rect},
		{"coincident", Quad{{10, 10}, {10, 10}, {90, 90}, {10, 90}}, rect},
		{"all same point", Quad{{5, 5}, {5, 5}, {5, 5}, {5, 5}}, rect},
		{"nan", Quad{{math.NaN(), 0}, {100, 0}, {100, 100}, {0, 100}}, rect},
		{"inf", Quad{{0, 0}, {math.Inf(1), 0}, {100, 100}, {0, 100}}, rect},
		{"degenerate destination", rect, Quad{{0, 0}, {1, 1}, {2, 2}, {3, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Estimate(tt.src, tt.dst)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDegenerateCorrespondence))

			var de *DegenerateError
			assert.True(t, errors.As(err, &de))
			assert.NotEmpty(t, de.Reason)
			assert.Equal(t, Homography{}, h)
		})
	}
}

func TestPowerIteration_ReproducibleWithSeed(t *testing.T) {
	src := Quad{{30, 30}, {470, 40}, {460, 470}, {25, 455}}
	dst := RectQuad(500, 500)

	h1, err1 := PowerIteration{Rand: rand.New(rand.NewSource(7))}.Estimate(src, dst)
	h2, err2 := PowerIteration{Rand: rand.New(rand.NewSource(7))}.Estimate(src, dst)
	assert.Equal(t, err1, err2)
	assert.Equal(t, h1, h2)
}

func TestPowerIteration_Converges(t *testing.T) {
	rect := RectQuad(200, 100)
	solver := PowerIteration{Rand: rand.New(rand.NewSource(42)), Iterations: 1000000}

	h, err := solver.Estimate(rect, rect)
	require.NoError(t, err)
	assert.True(t, h.ApproxEqual(Identity(), 1e-6), "got %v", h)

	h, err = solver.Estimate(rect, rect.Scale(2))
	require.NoError(t, err)
	assert.True(t, h.ApproxEqual(Homography{2, 0, 0, 0, 2, 0, 0, 0, 1}, 1e-6), "got %v", h)
}

func TestPowerIteration_DefaultIterationsNeverWrong(t *testing.T) {
	dst := Quad{{30, 30}, {470, 40}, {460, 470}, {25, 455}}
	src := RectQuad(500, 500)

	for seed := int64(1); seed <= 5; seed++ {
		solver := PowerIteration{Rand: rand.New(rand.NewSource(seed)), Iterations: DefaultPowerIterations}
		h, err := solver.Estimate(src, dst)
		if err != nil {
			assert.ErrorIs(t, err, ErrDegenerateCorrespondence, "seed %d", seed)
			assert.ErrorContains(t, err, "did not converge", "seed %d", seed)
			assert.Equal(t, Homography{}, h)
			continue
		}
		for i, p := range h.ApplyQuad(src) {
			assert.InDelta(t, dst[i].X, p.X, 1e-3, "seed %d corner %d", seed, i)
			assert.InDelta(t, dst[i].Y, p.Y, 1e-3, "seed %d corner %d", seed, i)
		}
	}
}

func TestPowerIteration_TooFewIterations(t *testing.T) {
	dst := Quad{{30, 30}, {470, 40}, {460, 470}, {25, 455}}
	_, err := PowerIteration{Iterations: 1}.Estimate(RectQuad(500, 500), dst)
	assert.ErrorIs(t, err, ErrDegenerateCorrespondence)
}

func TestPowerIteration_Degenerate(t *testing.T) {
	_, err := PowerIteration{}.Estimate(Quad{{0, 0}, {1, 1}, {2, 2}, {3, 3}}, RectQuad(10, 10))
	assert.ErrorIs(t, err, ErrDegenerateCorrespondence)
}

func TestSolverInterface(t *testing.T) {
	var solvers = map[string]Solver{
		"direct": Direct{},
		"power":  PowerIteration{Iterations: 1000000},
	}
	src := RectQuad(64, 64)
	for name, s := range solvers {
		t.Run(name, func(t *testing.T) {
			h, err := s.Estimate(src, src)
			require.NoError(t, err)
			assert.True(t, h.ApproxEqual(Identity(), 1e-6))
		})
	}
}

func TestHomography_Mul(t *testing.T) {
	scale := Homography{2, 0, 0, 0, 2, 0, 0, 0, 1}
	shift := Homography{1, 0, 5, 0, 1, -3, 0, 0, 1}

	// shift first, then scale
	h := scale.Mul(shift)
	p := h.Apply(1, 1)
	assert.InDelta(t, 12.0, p.X, tol)
	assert.InDelta(t, -4.0, p.Y, tol)

	assert.Equal(t, shift, Identity().Mul(shift))
}

func TestHomography_InverseSingular(t *testing.T) {
	_, err := Homography{1, 2, 3, 2, 4, 6, 0, 0, 1}.Inverse()
	assert.ErrorIs(t, err, ErrDegenerateCorrespondence)
}

func TestHomography_Normalize(t *testing.T) {
	h, ok := Homography{2, 0, 0, 0, 2, 0, 0, 0, 2}.Normalize()
	require.True(t, ok)
	assert.Equal(t, Identity(), h)

	_, ok = Homography{1, 0, 0, 0, 1, 0, 0, 0, 0}.Normalize()
	assert.False(t, ok)
}
