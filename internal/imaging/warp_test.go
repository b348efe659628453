package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

func TestWarp_IdentityReproducesSource(t *testing.T) {
	src := createGradientImage(40, 30)

	out, err := Warp(src, geometry.RectQuad(40, 30), 40, 30)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, src.Pix, out.Pix)
}

func TestWarp_OutputShape(t *testing.T) {
	src := createGradientImage(50, 40)
	tests := []struct {
		name string
		quad geometry.Quad
		w, h int
	}{
		{"same size", geometry.RectQuad(50, 40), 50, 40},
		{"upscale", geometry.RectQuad(50, 40), 123, 77},
		{"tiny", geometry.Quad{{10, 10}, {12, 10}, {12, 12}, {10, 12}}, 1, 1},
		{"quad larger than image", geometry.Quad{{-100, -100}, {500, -50}, {450, 400}, {-80, 380}}, 64, 48},
		{"portrait from landscape", geometry.Quad{{5, 3}, {45, 6}, {44, 37}, {4, 35}}, 20, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Warp(src, tt.quad, tt.w, tt.h)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, tt.w, tt.h), out.Bounds())
			assert.Len(t, out.Pix, tt.w*tt.h*4)
		})
	}
}

func TestWarp_Downscale(t *testing.T) {
	src := createGradientImage(40, 30)
	out, err := Warp(src, geometry.RectQuad(40, 30), 20, 15)
	require.NoError(t, err)

	for j := 0; j < 15; j++ {
		for i := 0; i < 20; i++ {
			require.Equal(t, src.NRGBAAt(2*i, 2*j), out.NRGBAAt(i, j), "pixel %d,%d", i, j)
		}
	}
}

func TestWarp_OutsideSourceIsTransparent(t *testing.T) {
	src := createGradientImage(40, 30)
	// Left half of the quad hangs off the image.
	quad := geometry.Quad{{-20, 0}, {20, 0}, {20, 30}, {-20, 30}}

	out, err := Warp(src, quad, 40, 30)
	require.NoError(t, err)

	for j := 0; j < 30; j++ {
		for i := 0; i < 20; i++ {
			require.Equal(t, color.NRGBA{}, out.NRGBAAt(i, j), "pixel %d,%d should be transparent", i, j)
		}
		for i := 20; i < 40; i++ {
			require.Equal(t, src.NRGBAAt(i-20, j), out.NRGBAAt(i, j), "pixel %d,%d", i, j)
		}
	}
}

func TestWarp_CopiesRGBAsOpaque(t *testing.T) {
	src := createInMemoryImage(4, 4, color.NRGBA{10, 20, 30, 0})
	out, err := Warp(src, geometry.RectQuad(4, 4), 4, 4)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, out.NRGBAAt(2, 2))
}

func TestWarp_CornerFarOffImage(t *testing.T) {
	src := createGradientImage(30, 30)
	quad := geometry.Quad{{0, 0}, {30, 0}, {5000, 5000}, {0, 30}}

	out, err := Warp(src, quad, 30, 30)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 30), out.Bounds())
	assert.Equal(t, src.NRGBAAt(0, 0), out.NRGBAAt(0, 0))
}

func TestWarp_DoesNotModifySource(t *testing.T) {
	src := createGradientImage(60, 40)
	before := bytes.Clone(src.Pix)

	_, err := Warp(src, geometry.Quad{{3, 4}, {55, 2}, {58, 39}, {1, 35}}, 60, 40)
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix)
}

func TestWarp_Degenerate(t *testing.T) {
	src := createGradientImage(20, 20)
	quads := map[string]geometry.Quad{
		"collinear":  {{0, 0}, {5, 5}, {10, 10}, {15, 15}},
		"coincident": {{5, 5}, {5, 5}, {5, 5}, {5, 5}},
	}
	for name, q := range quads {
		t.Run(name, func(t *testing.T) {
			out, err := Warp(src, q, 20, 20)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, geometry.ErrDegenerateCorrespondence))
		})
	}
}

func TestWarp_InvalidSize(t *testing.T) {
	src := createGradientImage(20, 20)
	for _, size := range [][2]int{{0, 10}, {10, 0}, {-1, 5}} {
		_, err := Warp(src, geometry.RectQuad(20, 20), size[0], size[1])
		assert.ErrorIs(t, err, ErrInvalidSize)
	}

	_, err := Warp(nil, geometry.RectQuad(20, 20), 10, 10)
	assert.Error(t, err)
}

func TestWarper_MaxPixels(t *testing.T) {
	src := createGradientImage(20, 20)
	quad := geometry.RectQuad(20, 20)

	_, err := Warper{MaxPixels: 100}.Warp(src, quad, 11, 10)
	assert.ErrorIs(t, err, ErrInvalidSize)
	assert.ErrorContains(t, err, "limit of 100 pixels")

	out, err := Warper{MaxPixels: 100}.Warp(src, quad, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Bounds())

	// Huge requests fail before anything is allocated.
	_, err = Warp(src, quad, 200000, 200000)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestWarper_ParallelMatchesSequential(t *testing.T) {
	src := createGradientImage(200, 150)
	quad := geometry.Quad{{12, 9}, {190, 20}, {180, 140}, {5, 130}}

	seq, err := Warper{}.Warp(src, quad, 173, 211)
	require.NoError(t, err)
	par, err := Warper{Parallel: true}.Warp(src, quad, 173, 211)
	require.NoError(t, err)
	assert.Equal(t, seq.Pix, par.Pix)
}

func TestWarper_PowerIterationSolver(t *testing.T) {
	src := createGradientImage(32, 32)
	w := Warper{Solver: geometry.PowerIteration{Iterations: 1000000}}

	out, err := w.Warp(src, geometry.RectQuad(32, 32), 32, 32)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestWarper_WarpContext(t *testing.T) {
	src := createGradientImage(40, 30)
	quad := geometry.Quad{{2, 1}, {38, 3}, {37, 29}, {1, 28}}

	want, err := Warp(src, quad, 40, 30)
	require.NoError(t, err)

	got, err := Warper{Parallel: true}.WarpContext(context.Background(), src, quad, 40, 30)
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)
}

func TestWarper_WarpContextCanceled(t *testing.T) {
	src := createGradientImage(64, 64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := Warper{}.WarpContext(ctx, src, geometry.RectQuad(64, 64), 3000, 3000)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputSize(t *testing.T) {
	src := createGradientImage(640, 480)
	quad := geometry.Quad{{10, 10}, {310, 10}, {320, 410}, {0, 400}}

	w, h, err := OutputSize(SizeNatural, src, quad)
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	w, h, err = OutputSize(SizeAuto, src, quad)
	require.NoError(t, err)
	assert.Equal(t, 320, w)
	assert.Equal(t, 400, h)

	_, _, err = OutputSize(SizeAuto, src, geometry.Quad{})
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, _, err = OutputSize("a4", src, quad)
	assert.Error(t, err)
}

func TestParseSizeMode(t *testing.T) {
	m, err := ParseSizeMode("")
	require.NoError(t, err)
	assert.Equal(t, SizeNatural, m)

	m, err = ParseSizeMode("auto")
	require.NoError(t, err)
	assert.Equal(t, SizeAuto, m)

	_, err = ParseSizeMode("letter")
	assert.Error(t, err)
}
