//go:build cgo

package ocr

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

const backend = "gosseract"

func recognize(png []byte, language string) (*Result, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	regions := []TextRegion{}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &Result{FullText: text, Regions: regions}, nil
	}
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}
	return &Result{FullText: text, Regions: regions}, nil
}

// Version returns the linked Tesseract version.
func Version() (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version(), nil
}

// GetInfo reports whether OCR can be used.
func GetInfo() Info {
	version, err := Version()
	if err != nil {
		return Info{Error: err.Error(), Backend: backend}
	}
	return Info{Available: true, Version: version, Backend: backend}
}
