package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is used when a caller passes a quality outside 1-100.
const DefaultJPEGQuality = 92

var mimeTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
	imaging.TIFF: "image/tiff",
	imaging.BMP:  "image/bmp",
}

// ParseFormat maps a format name or file extension ("png", ".jpg", "jpeg",
// "tiff", ...) to an output format.
func ParseFormat(name string) (imaging.Format, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	if name == "" {
		return imaging.PNG, nil
	}
	f, err := imaging.FormatFromExtension(name)
	if err != nil {
		return 0, fmt.Errorf("unsupported output format %q: %w", name, err)
	}
	return f, nil
}

// MimeType returns the MIME type for f.
func MimeType(f imaging.Format) string {
	if m, ok := mimeTypes[f]; ok {
		return m
	}
	return "application/octet-stream"
}

// Encode writes img in format f. quality applies to JPEG only.
func Encode(w io.Writer, img image.Image, f imaging.Format, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Encode(w, img, f, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// Save writes img to path; the format follows the file extension.
func Save(path string, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// EncodedImage is an encoded raster ready to hand to a client.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeBase64 encodes img in format f and base64-encodes the bytes.
func EncodeBase64(img image.Image, f imaging.Format, quality int) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, f, quality); err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &EncodedImage{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    MimeType(f),
	}, nil
}
