package documents

import (
	"context"
	"errors"
	"strings"

	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/storage/record"
	"docscan-backend/internal/shared/telemetry"
)

// FinalizeInput is the human-reviewed version of a document.
type FinalizeInput struct {
	Text     string
	FilePath string
	Tags     []string
}

// Finalize stores the reviewed text and marks the document verified.
//
// Steps run upload-new, write records, delete-old, so the document never
// references a missing text object. The text record is re-keyed to the new
// object key. A failed Finalize discards the new text again, so repeating it
// from the start is safe.
func (s *Service) Finalize(ctx context.Context, userID, documentID string, in FinalizeInput) (Document, ExtractedText, error) {
	if err := requireIDs(userID, documentID); err != nil {
		return Document{}, ExtractedText{}, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return Document{}, ExtractedText{}, errs.Invalid("text is required")
	}

	doc, err := s.Repo.GetDocument(ctx, userID, documentID)
	if err != nil {
		return Document{}, ExtractedText{}, err
	}
	if !doc.Status.HasText() || doc.ExtractedTextID == "" {
		return Document{}, ExtractedText{}, errs.Conflict("document %s cannot be finalized in status %s", documentID, doc.Status)
	}

	prev, err := s.Repo.GetText(ctx, doc.ExtractedTextID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		prev = ExtractedText{ExtractedTextID: doc.ExtractedTextID, TextFileKey: doc.ExtractedTextID}
	case err != nil:
		return Document{}, ExtractedText{}, err
	}

	now := s.now()
	newKey, err := s.Objects.PutText(ctx, s.Cfg.Bucket, userID, documentID, newRevision(now), in.Text)
	if err != nil {
		return Document{}, ExtractedText{}, err
	}

	processed := prev.ProcessedDate
	if processed.IsZero() {
		processed = now
	}
	et := ExtractedText{
		ExtractedTextID:   newKey,
		DocumentID:        documentID,
		UserID:            userID,
		ProcessedDate:     processed,
		Verified:          true,
		TextFileKey:       newKey,
		AverageConfidence: prev.AverageConfidence,
		SummaryID:         prev.SummaryID,
		QuestionIDs:       prev.QuestionIDs,
		Tokens:            int64(len(strings.Fields(in.Text))),
	}
	if err := s.Repo.PutText(ctx, et); err != nil {
		s.discardText(ctx, userID, documentID, newKey)
		return Document{}, ExtractedText{}, err
	}

	filePath := strings.TrimSpace(in.FilePath)
	if filePath == "" {
		filePath = doc.FilePath
	}
	tags := cleanTags(in.Tags)
	if in.Tags == nil {
		tags = doc.Tags
	}
	patch := record.Item{
		attrFilePath:        filePath,
		attrStatus:          string(StatusVerified),
		attrExtractedTextID: newKey,
		attrUpdatedAt:       stamp(now),
	}
	if len(tags) > 0 {
		patch[attrTags] = record.StringSet(tags)
	}
	if err := s.Repo.UpdateDocument(ctx, userID, documentID, patch); err != nil {
		s.discardText(ctx, userID, documentID, newKey)
		return Document{}, ExtractedText{}, err
	}

	prevStatus := doc.Status
	doc.FilePath = filePath
	doc.Status = StatusVerified
	doc.ExtractedTextID = newKey
	doc.Tags = tags
	doc.UpdatedAt = now

	if prev.ExtractedTextID != newKey {
		if err := s.Repo.DeleteText(ctx, prev.ExtractedTextID); err != nil {
			telemetry.Warn("finalize.old_text_record_delete_failed", map[string]any{"document_id": documentID, "error": err})
		}
		if err := s.deleteObject(ctx, prev.TextFileKey); err != nil {
			telemetry.Warn("finalize.old_text_object_delete_failed", map[string]any{"document_id": documentID, "key": prev.TextFileKey, "error": err})
		}
	}

	s.index(ctx, doc, in.Text)
	metrics.IncFinalized()
	telemetry.Info("document.finalized", map[string]any{
		"user_id":           userID,
		"document_id":       documentID,
		"extracted_text_id": newKey,
		"status_transition": string(prevStatus) + " -> verified",
	})
	return doc, et, nil
}

func cleanTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
