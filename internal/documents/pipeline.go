package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docscan-backend/internal/ocr"
	"docscan-backend/internal/search"
	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/storage/object"
	"docscan-backend/internal/shared/storage/record"
	"docscan-backend/internal/shared/telemetry"
)

// Processed is the outcome of a finished pipeline run.
type Processed struct {
	Document          Document
	ExtractedText     ExtractedText
	CleanedText       string
	Tags              []string
	SuggestedFilePath string
}

// pipelineRevision names the machine-cleaned text. It is the same for every
// run on a document, so a retried run overwrites its earlier text object and
// record instead of adding a second one.
const pipelineRevision = "ocr"

// finish runs the steps shared by the sync and async paths, in order:
// clean, store text, move the original, write ExtractedText, mark cleaned.
// Every step is safe to repeat after a partial failure. When a step after the
// text write fails, the text object and record are discarded again.
func (s *Service) finish(ctx context.Context, doc Document, raw ocr.Result) (Processed, error) {
	paths, err := s.existingPaths(ctx, doc.UserID)
	if err != nil {
		return Processed{}, fmt.Errorf("load existing paths: %w", err)
	}

	cleaned, err := s.Cleaner.Clean(ctx, raw.Text, paths, raw.Confidence)
	if err != nil {
		return Processed{}, fmt.Errorf("clean text: %w", err)
	}
	body := cleaned.CleanedText
	if strings.TrimSpace(body) == "" {
		body = raw.Text
	}

	now := s.now()
	textKey, err := s.Objects.PutText(ctx, s.Cfg.Bucket, doc.UserID, doc.DocumentID, pipelineRevision, body)
	if err != nil {
		return Processed{}, err
	}
	fail := func(err error) (Processed, error) {
		s.discardText(ctx, doc.UserID, doc.DocumentID, textKey)
		return Processed{}, err
	}

	finalKey := doc.FileKey
	if _, isTemp := object.UserFromTempKey(doc.FileKey); isTemp {
		finalKey, err = s.Objects.MoveTempToFinal(ctx, s.Cfg.Bucket, doc.UserID, doc.DocumentID, doc.FileKey)
		if err != nil {
			return fail(err)
		}
	}

	et := ExtractedText{
		ExtractedTextID:   textKey,
		DocumentID:        doc.DocumentID,
		UserID:            doc.UserID,
		ProcessedDate:     now,
		TextFileKey:       textKey,
		AverageConfidence: raw.Confidence,
		QuestionIDs:       []string{},
		Tokens:            int64(len(strings.Fields(body))),
	}
	if err := s.Repo.PutText(ctx, et); err != nil {
		return fail(err)
	}

	patch := record.Item{
		attrFileKey:         finalKey,
		attrFilePath:        cleaned.SuggestedFilePath,
		attrStatus:          string(StatusCleaned),
		attrExtractedTextID: textKey,
		attrFailureReason:   "",
		attrUpdatedAt:       stamp(now),
	}
	if len(cleaned.Tags) > 0 {
		patch[attrTags] = record.StringSet(cleaned.Tags)
	}
	if err := s.Repo.UpdateDocument(ctx, doc.UserID, doc.DocumentID, patch); err != nil {
		return fail(err)
	}

	doc.FileKey = finalKey
	doc.FilePath = cleaned.SuggestedFilePath
	doc.Status = StatusCleaned
	doc.ExtractedTextID = textKey
	doc.FailureReason = ""
	doc.UpdatedAt = now
	if len(cleaned.Tags) > 0 {
		doc.Tags = cleaned.Tags
	}

	s.index(ctx, doc, body)
	metrics.IncPipelineCompleted()
	if !doc.UploadDate.IsZero() {
		metrics.ObservePipelineDurationMs(float64(now.Sub(doc.UploadDate).Milliseconds()))
	}
	telemetry.Info("pipeline.cleaned", map[string]any{
		"user_id":           doc.UserID,
		"document_id":       doc.DocumentID,
		"extracted_text_id": textKey,
		"confidence":        raw.Confidence,
		"status_transition": "-> cleaned",
	})

	return Processed{
		Document:          doc,
		ExtractedText:     et,
		CleanedText:       body,
		Tags:              cleaned.Tags,
		SuggestedFilePath: cleaned.SuggestedFilePath,
	}, nil
}

// markFailed records a pipeline failure. It never returns an error: a failed
// recovery write is logged so it cannot mask the original cause.
func (s *Service) markFailed(ctx context.Context, userID, documentID string, cause error) {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	err := s.Repo.UpdateDocument(ctx, userID, documentID, record.Item{
		attrStatus:        string(StatusFailed),
		attrFailureReason: truncate(reason, 500),
		attrUpdatedAt:     stamp(s.now()),
	})
	if err != nil {
		telemetry.Error("pipeline.mark_failed_failed", map[string]any{
			"user_id":     userID,
			"document_id": documentID,
			"cause":       cause,
			"error":       err,
		})
		return
	}
	metrics.IncPipelineFailed()
	telemetry.Error("pipeline.failed", map[string]any{
		"user_id":           userID,
		"document_id":       documentID,
		"error":             cause,
		"status_transition": "-> failed",
	})
}

func (s *Service) existingPaths(ctx context.Context, userID string) ([]string, error) {
	docs, err := s.Repo.ListDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.FilePath) != "" {
			paths = append(paths, d.FilePath)
		}
	}
	return paths, nil
}

// index and unindex never fail the caller; the search index is rebuilt from
// the records.
func (s *Service) index(ctx context.Context, doc Document, text string) {
	if s.Search == nil {
		return
	}
	err := s.Search.Upsert(ctx, search.Entry{
		ID:               doc.DocumentID,
		UserID:           doc.UserID,
		OriginalFilename: doc.OriginalFilename,
		FilePath:         doc.FilePath,
		Tags:             doc.Tags,
		Status:           string(doc.Status),
		Text:             text,
		UpdatedAt:        stamp(doc.UpdatedAt),
	})
	if err != nil {
		telemetry.Warn("search.index_failed", map[string]any{
			"user_id":     doc.UserID,
			"document_id": doc.DocumentID,
			"error":       err,
		})
	}
}

func (s *Service) unindex(ctx context.Context, userID, documentID string) {
	if s.Search == nil {
		return
	}
	if err := s.Search.Delete(ctx, documentID); err != nil {
		telemetry.Warn("search.unindex_failed", map[string]any{
			"user_id":     userID,
			"document_id": documentID,
			"error":       err,
		})
	}
}

// discardText removes a text object and record written by a run that then
// failed. A text the document already references is kept: it belongs to a
// run that did finish.
func (s *Service) discardText(ctx context.Context, userID, documentID, textKey string) {
	cur, err := s.Repo.GetDocument(ctx, userID, documentID)
	switch {
	case err == nil && cur.ExtractedTextID == textKey:
		return
	case err != nil && !errors.Is(err, errs.ErrNotFound):
		telemetry.Warn("pipeline.discard_text_skipped", map[string]any{
			"user_id":     userID,
			"document_id": documentID,
			"key":         textKey,
			"error":       err,
		})
		return
	}
	if err := s.deleteText(ctx, textKey, textKey); err != nil {
		telemetry.Warn("pipeline.discard_text_failed", map[string]any{
			"user_id":     userID,
			"document_id": documentID,
			"key":         textKey,
			"error":       err,
		})
	}
}

// deleteText removes a text record and its object. Both may already be gone.
func (s *Service) deleteText(ctx context.Context, extractedTextID, fallbackKey string) error {
	textKey := fallbackKey
	et, err := s.Repo.GetText(ctx, extractedTextID)
	switch {
	case err == nil && et.TextFileKey != "":
		textKey = et.TextFileKey
	case err != nil && !errors.Is(err, errs.ErrNotFound):
		return err
	}
	if err := s.deleteObject(ctx, textKey); err != nil {
		return fmt.Errorf("delete text object: %w", err)
	}
	return s.Repo.DeleteText(ctx, extractedTextID)
}

// deleteObject treats an already-missing object as deleted.
func (s *Service) deleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.Objects.Delete(ctx, s.Cfg.Bucket, key); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
