package documents

import (
	"context"
	"errors"
	"fmt"

	"docscan-backend/internal/ocr"
	"docscan-backend/internal/queue"
	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/telemetry"
)

const claimPrefix = "ocr-completion:"

// ErrCompletionInFlight means another delivery of the same job holds the
// claim. The caller should let the transport redeliver: if that delivery
// died, its claim expires and a later attempt runs the pipeline.
var ErrCompletionInFlight = errors.New("completion already in flight")

// HandleNotification parses a raw completion body and processes it.
// Payloads that are not completions are dead-lettered, not retried.
func (s *Service) HandleNotification(ctx context.Context, body []byte) error {
	c, err := ocr.ParseCompletion(body)
	if err != nil {
		s.deadLetter(ctx, queue.ReasonBadNotification, ocr.Completion{}, body, err)
		return nil
	}
	return s.HandleCompletion(ctx, c)
}

// HandleCompletion finishes an async job. A nil return means the message is
// settled (processed, duplicate, failed or dead-lettered); an error, including
// ErrCompletionInFlight, asks the transport to redeliver.
func (s *Service) HandleCompletion(ctx context.Context, c ocr.Completion) error {
	job, doc, ok, err := s.resolveJob(ctx, c)
	if err != nil || !ok {
		return err
	}

	fields := map[string]any{
		"user_id":     doc.UserID,
		"document_id": doc.DocumentID,
		"job_id":      c.JobID,
		"job_status":  string(c.Status),
		"status":      string(doc.Status),
	}
	if job.JobID != "" && job.JobID != c.JobID {
		telemetry.Warn("pipeline.completion_stale", fields)
		metrics.IncCompletionDuplicate()
		return nil
	}
	switch {
	case doc.Status.HasText():
		telemetry.Info("pipeline.completion_duplicate", fields)
		metrics.IncCompletionDuplicate()
		return nil
	case doc.Status == StatusFailed && doc.JobID != c.JobID:
		telemetry.Info("pipeline.completion_duplicate", fields)
		metrics.IncCompletionDuplicate()
		return nil
	}

	claimKey := claimPrefix + c.JobID
	claimed, err := s.Claims.Claim(ctx, claimKey, s.Cfg.ClaimTTL)
	if err != nil {
		return fmt.Errorf("claim completion: %w", err)
	}
	if !claimed {
		telemetry.Warn("pipeline.completion_in_flight", fields)
		return fmt.Errorf("%w: job %s", ErrCompletionInFlight, c.JobID)
	}

	if !c.Succeeded() {
		s.markFailed(ctx, doc.UserID, doc.DocumentID, fmt.Errorf("ocr job %s finished with status %s", c.JobID, c.Status))
		return nil
	}

	result, err := s.OCR.GetAsyncResult(ctx, c.JobID)
	if err != nil {
		return s.abortCompletion(ctx, doc, claimKey, err)
	}
	if result.Status != ocr.JobSucceeded && result.Status != ocr.JobPartialSuccess {
		s.markFailed(ctx, doc.UserID, doc.DocumentID, fmt.Errorf("ocr job %s reported status %s", c.JobID, result.Status))
		return nil
	}
	if _, err := s.finish(ctx, doc, result.Result); err != nil {
		return s.abortCompletion(ctx, doc, claimKey, err)
	}
	return nil
}

// abortCompletion marks the document failed and frees the claim so a
// redelivery of the same job can run the pipeline again.
func (s *Service) abortCompletion(ctx context.Context, doc Document, claimKey string, cause error) error {
	s.markFailed(ctx, doc.UserID, doc.DocumentID, cause)
	if err := s.Claims.Release(ctx, claimKey); err != nil {
		telemetry.Warn("pipeline.claim_release_failed", map[string]any{"key": claimKey, "error": err})
	}
	return cause
}

// resolveJob maps a completion's tag back to its job record and document.
// ok is false when the completion was dead-lettered.
func (s *Service) resolveJob(ctx context.Context, c ocr.Completion) (OCRJob, Document, bool, error) {
	tag, err := ocr.ParseJobTag(c.JobTag)
	if err != nil {
		s.deadLetter(ctx, queue.ReasonBadJobTag, c, nil, err)
		return OCRJob{}, Document{}, false, nil
	}

	job, err := s.Repo.GetJob(ctx, tag.String())
	if errors.Is(err, errs.ErrNotFound) {
		s.deadLetter(ctx, queue.ReasonUnknownJob, c, nil, err)
		return OCRJob{}, Document{}, false, nil
	}
	if err != nil {
		return OCRJob{}, Document{}, false, err
	}
	if !tag.Matches(job.UserID, job.DocumentID) {
		s.deadLetter(ctx, queue.ReasonBadJobTag, c, nil, fmt.Errorf("%w: tag does not match its job record", ocr.ErrBadJobTag))
		return OCRJob{}, Document{}, false, nil
	}

	doc, err := s.Repo.GetDocument(ctx, job.UserID, job.DocumentID)
	if errors.Is(err, errs.ErrNotFound) {
		s.deadLetter(ctx, queue.ReasonUnknownDocument, c, nil, err)
		return OCRJob{}, Document{}, false, nil
	}
	if err != nil {
		return OCRJob{}, Document{}, false, err
	}
	return job, doc, true, nil
}
