package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// DefaultLanguage is used when no language is given.
const DefaultLanguage = "eng"

// ErrUnavailable is returned when the binary was built without Tesseract.
var ErrUnavailable = errors.New("ocr: tesseract support not compiled in")

// Bounds is a word bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion is one recognized word.
type TextRegion struct {
	Text string `json:"text"`

	// Confidence is Tesseract's word confidence scaled to 0-1.
	Confidence float64 `json:"confidence"`

	Bounds Bounds `json:"bounds"`
}

// Result is the text recognized on a page.
type Result struct {
	// FullText keeps Tesseract's line breaks.
	FullText string `json:"full_text"`

	// Regions is empty when word boxes could not be read; FullText is still
	// set in that case.
	Regions []TextRegion `json:"regions"`
}

// Info describes the OCR backend.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
	Backend   string `json:"backend"`
}

// Recognize runs OCR over the whole of img.
func Recognize(img image.Image, language string) (*Result, error) {
	if img == nil {
		return nil, errors.New("ocr: image is nil")
	}
	if language == "" {
		language = DefaultLanguage
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}
	return recognize(buf.Bytes(), language)
}

// RecognizeRegion runs OCR over r (clamped to img) and reports word boxes in
// img coordinates.
func RecognizeRegion(img image.Image, r image.Rectangle, language string) (*Result, error) {
	if img == nil {
		return nil, errors.New("ocr: image is nil")
	}
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("ocr: region %v does not overlap the image", r)
	}

	res, err := Recognize(imaging.Crop(img, r), language)
	if err != nil {
		return nil, err
	}
	for i := range res.Regions {
		res.Regions[i].Bounds.X1 += r.Min.X
		res.Regions[i].Bounds.Y1 += r.Min.Y
		res.Regions[i].Bounds.X2 += r.Min.X
		res.Regions[i].Bounds.Y2 += r.Min.Y
	}
	return res, nil
}
