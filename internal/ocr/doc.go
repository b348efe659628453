// Package ocr reads text from rectified pages with Tesseract.
//
// Recognition uses gosseract/v2 and needs cgo plus the Tesseract and
// Leptonica libraries. Builds without cgo compile a stub whose functions
// return ErrUnavailable, so the rest of the scanner works without OCR.
//
// Language data must be installed for each language code passed in
// ("eng", "deu", "fra", ...). TESSDATA_PREFIX is honored by Tesseract
// itself.
//
// Images are handed to Tesseract in memory as PNG; no temporary files are
// written.
package ocr
