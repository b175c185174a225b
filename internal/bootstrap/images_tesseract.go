//go:build tesseract

package bootstrap

import (
	localocr "docscan-backend/internal/ocr/local"
	"docscan-backend/internal/ocr/tesseract"
)

// ImageEngine recognizes images with Tesseract in the given languages.
func ImageEngine(langs []string) localocr.ImageEngine {
	return tesseract.New(langs...)
}
