// Package cleanup turns raw OCR text into corrected text, tags and a
// suggested file path using a language model.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docscan-backend/internal/llm"
	"docscan-backend/internal/shared/errs"
)

var (
	// ErrEmptyInput is returned for blank text before any model call.
	ErrEmptyInput = fmt.Errorf("%w: text to clean is empty", errs.ErrInvalidInput)
	// ErrModelUnavailable means the model could not be reached or errored.
	ErrModelUnavailable = errors.New("cleanup model unavailable")
	// ErrUnparsable means the model answered but not with a usable object.
	ErrUnparsable = errors.New("cleanup response unparsable")
)

const systemPrompt = "You correct OCR output and classify documents. You always answer with one JSON object."

// Tier boundaries on average OCR confidence (0-100).
const (
	liberalThreshold      = 90.0
	conservativeThreshold = 80.0
)

// Guidance returns the correction instruction for a confidence level.
func Guidance(confidence float64) string {
	switch {
	case confidence >= liberalThreshold:
		return "Confidence is high: correct spelling, spacing and obvious OCR misreads liberally, and fix broken words and line joins."
	case confidence >= conservativeThreshold:
		return "Confidence is moderate: correct conservatively. Fix only errors you are sure of and leave ambiguous words unchanged."
	default:
		return "Confidence is low: make minimal or no corrections. Only fix whitespace and clearly broken line joins; never guess at unreadable words."
	}
}

// Client runs cleanup prompts.
type Client struct {
	LLM llm.Completer
}

// New returns a cleanup client on the given completer.
func New(c llm.Completer) *Client {
	return &Client{LLM: c}
}

// Clean corrects rawText, preferring one of existingPaths for the suggested path.
func (c *Client) Clean(ctx context.Context, rawText string, existingPaths []string, avgConfidence float64) (Result, error) {
	if strings.TrimSpace(rawText) == "" {
		return Result{}, ErrEmptyInput
	}
	if c.LLM == nil {
		return Result{}, fmt.Errorf("%w: %v", ErrModelUnavailable, llm.ErrNotConfigured)
	}

	prompt, err := llm.RenderPrompt(llm.PromptCleanup, promptData{
		Confidence:    avgConfidence,
		Guidance:      Guidance(avgConfidence),
		ExistingPaths: dedupePaths(existingPaths),
		Text:          rawText,
	})
	if err != nil {
		return Result{}, err
	}

	resp, err := c.LLM.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt, JSON: true})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return ParseResult(resp.Text)
}

type promptData struct {
	Confidence    float64
	Guidance      string
	ExistingPaths []string
	Text          string
}

func dedupePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = normalizePath(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
