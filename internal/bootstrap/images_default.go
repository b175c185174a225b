//go:build !tesseract

package bootstrap

import localocr "docscan-backend/internal/ocr/local"

// ImageEngine is nil without the tesseract tag; the local OCR client then
// rejects images and only reads PDF text layers.
func ImageEngine(langs []string) localocr.ImageEngine {
	return nil
}
