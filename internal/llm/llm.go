package llm

import (
	"context"
	"errors"
)

// Request is a single-turn completion request.
type Request struct {
	System string
	Prompt string
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Response is the model output plus usage when the provider reports it.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer abstracts LLM providers.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ErrNotConfigured is returned when no provider is wired.
var ErrNotConfigured = errors.New("llm provider not configured")

// Disabled is the completer used when LLM_PROVIDER=none.
type Disabled struct{}

// Complete returns ErrNotConfigured.
func (Disabled) Complete(ctx context.Context, req Request) (Response, error) {
	return Response{}, ErrNotConfigured
}
