// Package local is an in-process OCR backend for development. PDFs are read
// from their embedded text layer; images go to an optional ImageEngine
// (Tesseract when built with -tags tesseract). Async jobs run inline and the
// completion notification is delivered through the Notify hook.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"docscan-backend/internal/ocr"
	"docscan-backend/internal/shared/telemetry"
)

// textLayerConfidence is reported for text read from a PDF text layer.
const textLayerConfidence = 99.0

// ErrNoImageEngine is returned for images when no engine is configured.
var ErrNoImageEngine = errors.New("no image OCR engine configured")

// ImageEngine recognizes text in a single image.
type ImageEngine interface {
	Recognize(ctx context.Context, image []byte) (ocr.Result, error)
}

// Source reads stored objects for async jobs.
type Source interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// NotifyFunc receives job completions.
type NotifyFunc func(ctx context.Context, c ocr.Completion) error

// Client implements ocr.Client without a remote provider.
type Client struct {
	Images ImageEngine
	Source Source
	Notify NotifyFunc

	mu   sync.Mutex
	jobs map[string]ocr.AsyncResult
	wg   sync.WaitGroup
}

// New creates a local client.
func New(source Source, images ImageEngine) *Client {
	return &Client{Source: source, Images: images, jobs: make(map[string]ocr.AsyncResult)}
}

// ExtractSync recognizes text in a PDF or image held in memory.
func (c *Client) ExtractSync(ctx context.Context, body []byte) (ocr.Result, error) {
	if len(body) == 0 {
		return ocr.Result{}, ocr.Wrap("detect text", errors.New("empty document"))
	}
	kind := http.DetectContentType(body)
	switch {
	case kind == "application/pdf":
		text, err := readPDF(body)
		if err != nil {
			return ocr.Result{}, ocr.Wrap("read pdf", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return ocr.Result{}, nil
		}
		return ocr.Result{Text: text, Confidence: textLayerConfidence}, nil
	case strings.HasPrefix(kind, "image/"):
		if c.Images == nil {
			return ocr.Result{}, ocr.Wrap("recognize image", ErrNoImageEngine)
		}
		res, err := c.Images.Recognize(ctx, body)
		if err != nil {
			return ocr.Result{}, ocr.Wrap("recognize image", err)
		}
		return res, nil
	default:
		return ocr.Result{}, ocr.Wrap("detect text", fmt.Errorf("unsupported content type %s", kind))
	}
}

// StartAsync runs the job immediately and delivers the completion on a
// background goroutine, so the caller observes the same ordering as with a
// remote provider: the job id comes back before the notification.
func (c *Client) StartAsync(ctx context.Context, req ocr.AsyncRequest) (string, error) {
	if c.Source == nil {
		return "", ocr.Wrap("start job", errors.New("no object source configured"))
	}
	body, err := c.Source.Get(ctx, req.Bucket, req.Key)
	if err != nil {
		return "", ocr.Wrap("start job", err)
	}

	jobID := uuid.NewString()
	result := ocr.AsyncResult{Status: ocr.JobSucceeded}
	res, extractErr := c.ExtractSync(ctx, body)
	if extractErr != nil {
		telemetry.Warn("ocr.local.job_failed", map[string]any{"job_id": jobID, "error": extractErr})
		result.Status = ocr.JobFailed
	} else {
		result.Result = res
	}

	c.mu.Lock()
	if c.jobs == nil {
		c.jobs = make(map[string]ocr.AsyncResult)
	}
	c.jobs[jobID] = result
	c.mu.Unlock()

	if c.Notify != nil {
		completion := ocr.Completion{
			JobID:     jobID,
			Status:    result.Status,
			JobTag:    ocr.EncodeJobTag(req.UserID, req.DocumentID),
			API:       "StartDocumentTextDetection",
			Bucket:    req.Bucket,
			Key:       req.Key,
			Timestamp: time.Now().UTC(),
		}
		notifyCtx := context.WithoutCancel(ctx)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.Notify(notifyCtx, completion); err != nil {
				telemetry.Error("ocr.local.notify_failed", map[string]any{"job_id": jobID, "error": err})
			}
		}()
	}
	return jobID, nil
}

// GetAsyncResult returns a finished job's output.
func (c *Client) GetAsyncResult(ctx context.Context, jobID string) (ocr.AsyncResult, error) {
	c.mu.Lock()
	res, ok := c.jobs[jobID]
	c.mu.Unlock()
	if !ok {
		return ocr.AsyncResult{}, ocr.Wrap("get job", fmt.Errorf("unknown job %q", jobID))
	}
	return res, nil
}

// Wait blocks until every pending notification has been delivered.
func (c *Client) Wait() {
	c.wg.Wait()
}

func readPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ ocr.Client = (*Client)(nil)
