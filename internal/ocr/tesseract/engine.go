//go:build tesseract

// Package tesseract recognizes images with the Tesseract C library. It needs
// libtesseract at build time, hence the build tag.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"docscan-backend/internal/ocr"
)

// Engine implements local.ImageEngine.
type Engine struct {
	Languages     []string
	clientFactory func() *gosseract.Client
}

// New returns an engine for the given languages (default "eng").
func New(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{Languages: languages, clientFactory: gosseract.NewClient}
}

// Recognize runs OCR on one image. Confidence is the mean word confidence.
func (e *Engine) Recognize(ctx context.Context, image []byte) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.Languages...); err != nil {
		return ocr.Result{}, fmt.Errorf("set languages: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return ocr.Result{Text: strings.TrimSpace(text), Confidence: wordConfidence(c)}, nil
}

func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}
