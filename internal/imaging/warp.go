package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

// ErrInvalidSize is returned for a non-positive output width or height, or an
// output larger than the pixel limit.
var ErrInvalidSize = errors.New("invalid output size")

// DefaultMaxOutputPixels caps outW*outH when Warper.MaxPixels is zero
// (about 1 GiB of NRGBA).
const DefaultMaxOutputPixels = 1 << 28

// Warper resamples the region of a photo bounded by a corner quadrilateral
// into an axis-aligned output rectangle.
//
// The zero value uses geometry.Direct and a single goroutine.
type Warper struct {
	// Solver estimates the output-to-source homography. Nil means
	// geometry.Direct.
	Solver geometry.Solver

	// Parallel splits output rows across GOMAXPROCS goroutines. Every
	// goroutine writes a disjoint row range, so the result is identical to
	// the sequential pass.
	Parallel bool

	// MaxPixels rejects outputs with more than this many pixels. Zero means
	// DefaultMaxOutputPixels.
	MaxPixels int64
}

// Warp rectifies src with the zero Warper.
func Warp(src *image.NRGBA, quad geometry.Quad, outW, outH int) (*image.NRGBA, error) {
	return Warper{}.Warp(src, quad, outW, outH)
}

// Warp maps the quadrilateral quad (top-left, top-right, bottom-right,
// bottom-left, in src pixel coordinates) onto a new outW x outH raster.
//
// The homography is estimated from the output rectangle back into the source
// so that every output pixel is visited exactly once. Each output pixel
// (i, j) is projected into the source, rounded to the nearest pixel (halves
// round up) and, when that pixel exists, its RGB is copied with alpha 255.
// Samples that fall outside the source, including corners dragged off the
// photo, stay fully transparent.
//
// The output is always outW x outH; the content is stretched to fill it
// whatever the aspect ratio of quad. src is never modified.
//
// Errors:
//   - ErrInvalidSize when outW or outH is not positive, or outW*outH
//     exceeds MaxPixels
//   - geometry.ErrDegenerateCorrespondence when quad is collinear,
//     coincident or otherwise yields no usable transform
func (w Warper) Warp(src *image.NRGBA, quad geometry.Quad, outW, outH int) (*image.NRGBA, error) {
	if src == nil {
		return nil, errors.New("source image is nil")
	}
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, outW, outH)
	}
	limit := w.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxOutputPixels
	}
	if int64(outW)*int64(outH) > limit {
		return nil, fmt.Errorf("%w: %dx%d exceeds the limit of %d pixels", ErrInvalidSize, outW, outH, limit)
	}

	solver := w.Solver
	if solver == nil {
		solver = geometry.Direct{}
	}
	h, err := solver.Estimate(geometry.RectQuad(float64(outW), float64(outH)), quad)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate homography: %w", err)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	rows := func(start, end int) {
		for j := start; j < end; j++ {
			warpRow(dst, src, h, j)
		}
	}
	if w.Parallel {
		parallel.Line(outH, rows)
	} else {
		rows(0, outH)
	}
	return dst, nil
}

// WarpContext runs Warp on a background goroutine and waits for it. If ctx
// ends first it returns ctx.Err(); the pass itself is not interrupted and its
// result is dropped.
func (w Warper) WarpContext(ctx context.Context, src *image.NRGBA, quad geometry.Quad, outW, outH int) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		img *image.NRGBA
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := w.Warp(src, quad, outW, outH)
		ch <- result{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.img, res.err
	}
}

// warpRow fills output row j. Only dst.Pix bytes of that row are written.
func warpRow(dst, src *image.NRGBA, h geometry.Homography, j int) {
	sw := float64(src.Rect.Dx())
	sh := float64(src.Rect.Dy())
	row := dst.Pix[j*dst.Stride : j*dst.Stride+dst.Rect.Dx()*4]

	for i := 0; i < dst.Rect.Dx(); i++ {
		p := h.Apply(float64(i), float64(j))
		if !p.IsFinite() {
			continue
		}
		sx := math.Floor(p.X + 0.5)
		sy := math.Floor(p.Y + 0.5)
		if sx < 0 || sy < 0 || sx >= sw || sy >= sh {
			continue
		}
		si := src.PixOffset(src.Rect.Min.X+int(sx), src.Rect.Min.Y+int(sy))
		di := i * 4
		row[di] = src.Pix[si]
		row[di+1] = src.Pix[si+1]
		row[di+2] = src.Pix[si+2]
		row[di+3] = 0xff
	}
}

// SizeMode selects how callers derive the output size of a rectification.
type SizeMode string

const (
	// SizeNatural reuses the source photo's width and height.
	SizeNatural SizeMode = "natural"

	// SizeAuto uses the longer opposite edges of the quadrilateral.
	SizeAuto SizeMode = "auto"
)

// ParseSizeMode converts a name to a SizeMode; empty means SizeNatural.
func ParseSizeMode(s string) (SizeMode, error) {
	switch SizeMode(s) {
	case "", SizeNatural:
		return SizeNatural, nil
	case SizeAuto:
		return SizeAuto, nil
	default:
		return "", fmt.Errorf("unknown size mode: %s", s)
	}
}

// OutputSize returns the output dimensions for mode.
func OutputSize(mode SizeMode, src image.Image, quad geometry.Quad) (int, int, error) {
	switch mode {
	case "", SizeNatural:
		b := src.Bounds()
		return b.Dx(), b.Dy(), nil
	case SizeAuto:
		if !quad.IsFinite() {
			return 0, 0, fmt.Errorf("%w: quadrilateral is not finite", ErrInvalidSize)
		}
		w, h := quad.NaturalSize()
		if w <= 0 || h <= 0 {
			return 0, 0, fmt.Errorf("%w: quadrilateral has no extent", ErrInvalidSize)
		}
		return w, h, nil
	default:
		return 0, 0, fmt.Errorf("unknown size mode: %s", mode)
	}
}
