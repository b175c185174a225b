package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-upload

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"docscan-backend/internal/bootstrap"
	"docscan-backend/internal/documents"
	"docscan-backend/internal/shared/config"
	"docscan-backend/internal/shared/telemetry"
)

// uploadHandler is the part of the pipeline an object-created event drives.
type uploadHandler interface {
	HandleUpload(ctx context.Context, bucket, key string) (documents.UploadResult, error)
}

var (
	initOnce sync.Once
	initErr  error
	uploads  uploadHandler
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	uploads = built.DocumentsService
}

func handler(ctx context.Context, event events.S3Event) error {
	initOnce.Do(initApp)
	defer telemetry.Sync()
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return initErr
	}
	return processEvent(ctx, uploads, event)
}

// processEvent handles every record and returns the first failure so Lambda
// retries the event. Retries are safe: document ids are derived from the key.
func processEvent(ctx context.Context, h uploadHandler, event events.S3Event) error {
	var firstErr error
	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			telemetry.Warn("lambda.upload.bad_key", map[string]any{"bucket": bucket, "key": record.S3.Object.Key, "error": err})
			continue
		}
		res, err := h.HandleUpload(ctx, bucket, key)
		if err != nil {
			telemetry.Error("lambda.upload.failed", map[string]any{"bucket": bucket, "key": key, "error": err})
			if firstErr == nil {
				firstErr = fmt.Errorf("handle upload %s/%s: %w", bucket, key, err)
			}
			continue
		}
		telemetry.Info("lambda.upload.handled", map[string]any{
			"document_id": res.Document.DocumentID,
			"method":      res.Method,
			"duplicate":   res.Duplicate,
		})
	}
	return firstErr
}

func main() {
	lambda.Start(handler)
}
