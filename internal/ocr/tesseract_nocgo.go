//go:build !cgo

package ocr

func recognize([]byte, string) (*Result, error) {
	return nil, ErrUnavailable
}

// Version returns ErrUnavailable.
func Version() (string, error) {
	return "", ErrUnavailable
}

// GetInfo reports OCR as unavailable.
func GetInfo() Info {
	return Info{Error: ErrUnavailable.Error(), Backend: "none"}
}
