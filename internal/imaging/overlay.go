package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/docscan-mcp/internal/geometry"
)

// OverlayStyle controls how the corner editor overlay is drawn.
type OverlayStyle struct {
	LineColor   color.NRGBA
	HandleColor color.NRGBA
	LabelColor  color.NRGBA

	// LineWidth is the polygon stroke width in pixels.
	LineWidth int

	// HandleSize is the side of the filled corner squares. It should match
	// the editor's hit box so what is drawn is what can be grabbed.
	HandleSize int

	// Labels draws the corner numbers 1-4 next to the handles.
	Labels bool
}

// DefaultOverlayStyle returns a green outline with 14px handles.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		LineColor:   color.NRGBA{0, 200, 83, 255},
		HandleColor: color.NRGBA{0, 200, 83, 255},
		LabelColor:  color.NRGBA{255, 255, 255, 255},
		LineWidth:   2,
		HandleSize:  14,
		Labels:      true,
	}
}

// ParseColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	alpha := uint8(255)
	if len(hex) == 9 {
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:7]
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// RenderOverlay draws the closed corner polygon and a filled square handle at
// each corner on a copy of src. Corners may lie outside the image; only the
// visible parts are drawn and non-finite corners are skipped.
func RenderOverlay(src image.Image, quad geometry.Quad, style OverlayStyle) *image.NRGBA {
	dst := imaging.Clone(src)
	bounds := dst.Bounds()

	width := style.LineWidth
	if width < 1 {
		width = 1
	}
	clip := bounds.Inset(-width)
	for i := range quad {
		a, b := quad[i], quad[(i+1)%4]
		if !a.IsFinite() || !b.IsFinite() {
			continue
		}
		if a, b, ok := clipSegment(a, b, clip); ok {
			drawLine(dst, a, b, width, style.LineColor)
		}
	}

	handle := &image.Uniform{C: style.HandleColor}
	for i, p := range quad {
		if !p.IsFinite() {
			continue
		}
		r := HandleRect(p, style.HandleSize)
		draw.Draw(dst, r.Intersect(bounds), handle, image.Point{}, draw.Over)
		if style.Labels {
			drawCornerLabel(dst, r, strconv.Itoa(i+1), style.LabelColor)
		}
	}
	return dst
}

// RenderPreview renders the overlay and shrinks the result to fit within
// maxSide x maxSide. A non-positive maxSide keeps full resolution.
func RenderPreview(src image.Image, quad geometry.Quad, style OverlayStyle, maxSide int) *image.NRGBA {
	out := RenderOverlay(src, quad, style)
	b := out.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return out
	}
	return imaging.Fit(out, maxSide, maxSide, imaging.Lanczos)
}

// HandleRect returns the size x size square centered on p.
func HandleRect(p geometry.Point, size int) image.Rectangle {
	half := float64(size) / 2
	x0 := clampToInt(math.Round(p.X - half))
	y0 := clampToInt(math.Round(p.Y - half))
	return image.Rect(x0, y0, x0+size, y0+size)
}

// drawCornerLabel writes text just below-right of the handle square.
func drawCornerLabel(dst *image.NRGBA, handle image.Rectangle, text string, c color.NRGBA) {
	face := basicfont.Face7x13
	x := handle.Max.X + 2
	y := handle.Max.Y + face.Ascent
	if !image.Pt(x, y).In(dst.Bounds().Inset(-face.Height)) {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawLine strokes a segment with a width x width square brush (Bresenham).
func drawLine(dst *image.NRGBA, a, b geometry.Point, width int, c color.NRGBA) {
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	off := width / 2
	for {
		for by := 0; by < width; by++ {
			for bx := 0; bx < width; bx++ {
				dst.SetNRGBA(x0+bx-off, y0+by-off, c)
			}
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// clipSegment clips a-b to r (Liang-Barsky). It reports false when the
// segment misses r entirely.
func clipSegment(a, b geometry.Point, r image.Rectangle) (geometry.Point, geometry.Point, bool) {
	t0, t1 := 0.0, 1.0
	dx := b.X - a.X
	dy := b.Y - a.Y
	minX, minY := float64(r.Min.X), float64(r.Min.Y)
	maxX, maxY := float64(r.Max.X), float64(r.Max.Y)

	edges := [4][2]float64{
		{-dx, a.X - minX},
		{dx, maxX - a.X},
		{-dy, a.Y - minY},
		{dy, maxY - a.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return a, b, false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return a, b, false
			}
			if t < t1 {
				t1 = t
			}
		}
	}
	return geometry.Point{X: a.X + t0*dx, Y: a.Y + t0*dy},
		geometry.Point{X: a.X + t1*dx, Y: a.Y + t1*dy}, true
}

func clampToInt(v float64) int {
	const limit = 1 << 30
	switch {
	case v > limit:
		return limit
	case v < -limit:
		return -limit
	}
	return int(v)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
