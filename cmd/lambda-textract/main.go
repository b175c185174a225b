package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-textract

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"docscan-backend/internal/bootstrap"
	"docscan-backend/internal/shared/config"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/telemetry"
	"docscan-backend/internal/workerproc"
)

var (
	initOnce  sync.Once
	initErr   error
	processor workerproc.Processor
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	processor = built.DocumentsService
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	defer telemetry.Sync()
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, processor, event), nil
}

// processBatch reports only retryable failures so SQS redelivers those
// records alone. Malformed bodies were dead-lettered and are dropped.
func processBatch(ctx context.Context, p workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncWorkerReceived()
		completion, err := workerproc.HandleMessage(ctx, p, record.Body)
		var processErr workerproc.ErrProcess
		switch {
		case err == nil:
			metrics.IncWorkerCompleted()
		case errors.As(err, &processErr):
			metrics.IncWorkerFailed()
			telemetry.Error("lambda.textract.process_failed", map[string]any{
				"message_id": record.MessageId,
				"job_id":     completion.JobID,
				"error":      err,
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		default:
			metrics.IncWorkerDiscarded()
			meta := workerproc.ComputeMeta(record.Body)
			telemetry.Warn("lambda.textract.discarded", map[string]any{
				"message_id": record.MessageId,
				"body_len":   meta.BodyLen,
				"body_sha":   meta.BodySHA,
				"error":      err,
			})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
