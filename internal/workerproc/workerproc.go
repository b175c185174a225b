// Package workerproc holds the transport-neutral handling of job completion
// messages shared by the queue worker and the Lambda consumer.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"docscan-backend/internal/ocr"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates the payload is not a job completion.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrProcess indicates processing failed after successful parsing. The
// message should be redelivered.
type ErrProcess struct {
	JobID string
	Err   error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process completion"
	}
	return "process completion: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Processor settles completions. HandleNotification accepts raw bodies and
// dead-letters the ones it cannot parse.
type Processor interface {
	HandleCompletion(ctx context.Context, c ocr.Completion) error
	HandleNotification(ctx context.Context, body []byte) error
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (ocr.Completion, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return ocr.Completion{}, meta, ErrEmptyBody{Meta: meta}
	}
	c, err := ocr.ParseCompletion([]byte(body))
	if err != nil {
		return ocr.Completion{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	return c, meta, nil
}

// HandleMessage parses and processes one payload. Undecodable payloads are
// handed to the processor for dead-lettering and reported as ErrDecode so
// the transport can drop them.
func HandleMessage(ctx context.Context, p Processor, body string) (ocr.Completion, error) {
	if p == nil {
		return ocr.Completion{}, errors.New("completion processor not configured")
	}
	c, _, err := ParseMessage(body)
	if err != nil {
		var decodeErr ErrDecode
		if errors.As(err, &decodeErr) {
			if dlErr := p.HandleNotification(ctx, []byte(body)); dlErr != nil {
				return ocr.Completion{}, ErrProcess{Err: dlErr}
			}
		}
		return ocr.Completion{}, err
	}
	if err := p.HandleCompletion(ctx, c); err != nil {
		return c, ErrProcess{JobID: c.JobID, Err: err}
	}
	return c, nil
}
