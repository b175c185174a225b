package queue

import (
	"context"

	"docscan-backend/internal/shared/telemetry"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg DeadLetter) error
}

// LogOnly records dead letters in the log when no queue is configured.
type LogOnly struct{}

// Send logs the message.
func (LogOnly) Send(ctx context.Context, msg DeadLetter) error {
	telemetry.Warn("queue.dead_letter.log_only", map[string]any{
		"reason":  msg.Reason,
		"job_id":  msg.JobID,
		"job_tag": msg.JobTag,
		"status":  msg.Status,
		"error":   msg.Error,
	})
	return nil
}
