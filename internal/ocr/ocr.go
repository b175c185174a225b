package ocr

import (
	"context"
	"errors"
	"fmt"
)

// ErrProvider is the single kind every OCR backend failure is normalized to.
var ErrProvider = errors.New("ocr provider error")

// ErrMissingJobID means the provider accepted a job but returned no identifier.
var ErrMissingJobID = fmt.Errorf("%w: job started without a job id", ErrProvider)

// Result is normalized OCR output. Confidence is 0-100.
type Result struct {
	Text       string
	Confidence float64
}

// JobStatus mirrors the provider's terminal and running job states.
type JobStatus string

const (
	JobInProgress     JobStatus = "IN_PROGRESS"
	JobSucceeded      JobStatus = "SUCCEEDED"
	JobFailed         JobStatus = "FAILED"
	JobPartialSuccess JobStatus = "PARTIAL_SUCCESS"
)

// AsyncRequest starts a background text-detection job on a stored object.
type AsyncRequest struct {
	Bucket            string
	Key               string
	UserID            string
	DocumentID        string
	NotificationTopic string
	ServiceRole       string
}

// AsyncResult is the outcome of a background job.
type AsyncResult struct {
	Result
	Status JobStatus
}

// Client extracts text from scanned documents.
type Client interface {
	ExtractSync(ctx context.Context, body []byte) (Result, error)
	StartAsync(ctx context.Context, req AsyncRequest) (string, error)
	GetAsyncResult(ctx context.Context, jobID string) (AsyncResult, error)
}

// ProviderError wraps a backend error with the call that failed.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("ocr %s: %v", e.Op, e.Err) }

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches ErrProvider.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Wrap normalizes a backend error. Nil stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProvider) {
		return err
	}
	return &ProviderError{Op: op, Err: err}
}
