package queue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSender struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	return &sqs.SendMessageOutput{}, f.err
}

func TestSendEncodesDeadLetter(t *testing.T) {
	fake := &fakeSender{}
	c := &SQSClient{client: fake, queueURL: "https://sqs/dlq"}

	msg := DeadLetter{Reason: ReasonUnknownJob, JobID: "job-1", JobTag: "v1_x", RecordedAt: "2026-01-01T00:00:00Z", Version: 1}
	if err := c.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if aws.ToString(fake.input.QueueUrl) != "https://sqs/dlq" {
		t.Fatalf("unexpected queue url")
	}
	got, err := DecodeMessage([]byte(aws.ToString(fake.input.MessageBody)))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if got != msg {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, msg)
	}
	if aws.ToString(fake.input.MessageAttributes["reason"].StringValue) != ReasonUnknownJob {
		t.Fatalf("reason attribute missing")
	}
}

func TestSendWrapsErrorsWithQueue(t *testing.T) {
	c := &SQSClient{client: &fakeSender{err: errors.New("denied")}, queueURL: "https://sqs/dlq"}
	err := c.Send(context.Background(), DeadLetter{Reason: ReasonBadJobTag})
	if err == nil || !strings.Contains(err.Error(), "queue=https://sqs/dlq") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	if _, err := NewSQSClient(aws.Config{}, " "); err == nil {
		t.Fatalf("expected error")
	}
}
