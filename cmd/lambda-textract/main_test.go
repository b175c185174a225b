package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"docscan-backend/internal/ocr"
)

type fakeProcessor struct {
	completions   []ocr.Completion
	notifications int
	failJob       string
}

func (f *fakeProcessor) HandleCompletion(ctx context.Context, c ocr.Completion) error {
	f.completions = append(f.completions, c)
	if c.JobID == f.failJob {
		return errors.New("record store unavailable")
	}
	return nil
}

func (f *fakeProcessor) HandleNotification(ctx context.Context, body []byte) error {
	f.notifications++
	return nil
}

func completionBody(t *testing.T, jobID string) string {
	t.Helper()
	body, err := ocr.EncodeCompletion(ocr.Completion{
		JobID:  jobID,
		Status: ocr.JobSucceeded,
		JobTag: ocr.EncodeJobTag("user-1", "doc-"+jobID),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func TestProcessBatchReportsOnlyRetryableFailures(t *testing.T) {
	p := &fakeProcessor{failJob: "job-2"}
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: completionBody(t, "job-1")},
		{MessageId: "m2", Body: completionBody(t, "job-2")},
		{MessageId: "m3", Body: "{not json"},
		{MessageId: "m4", Body: ""},
	}}

	resp := processBatch(context.Background(), p, event)

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m2" {
		t.Fatalf("expected only m2 to be retried, got %+v", resp.BatchItemFailures)
	}
	if len(p.completions) != 2 {
		t.Fatalf("expected 2 completions handled, got %d", len(p.completions))
	}
	if p.notifications != 1 {
		t.Fatalf("expected malformed body to be dead-lettered once, got %d", p.notifications)
	}
}
