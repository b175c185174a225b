package documents

import (
	"context"
	"fmt"

	"docscan-backend/internal/ocr"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/storage/object"
	"docscan-backend/internal/shared/telemetry"
)

// Delete removes a document and everything it owns, in order: file object,
// text object and record, questions, job record, document record. Each step
// tolerates an already-missing target, so a failed Delete can be repeated.
// A missing document is errs.ErrNotFound.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	if err := requireIDs(userID, documentID); err != nil {
		return err
	}
	doc, err := s.Repo.GetDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}

	if err := s.deleteObject(ctx, doc.FileKey); err != nil {
		return fmt.Errorf("delete file object: %w", err)
	}

	// The machine-cleaned text has a fixed key, so it is swept even when the
	// document never got to reference it.
	textIDs := []string{object.TextKey(userID, documentID, pipelineRevision)}
	if doc.ExtractedTextID != "" && doc.ExtractedTextID != textIDs[0] {
		textIDs = append(textIDs, doc.ExtractedTextID)
	}
	for _, id := range textIDs {
		if err := s.deleteText(ctx, id, id); err != nil {
			return err
		}
	}

	removed := 0
	if s.Questions != nil {
		removed, err = s.Questions.DeleteForDocument(ctx, documentID)
		if err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
	}

	if err := s.Repo.DeleteJob(ctx, ocr.EncodeJobTag(userID, documentID)); err != nil {
		return err
	}
	if err := s.Repo.DeleteDocument(ctx, userID, documentID); err != nil {
		return err
	}

	s.unindex(ctx, userID, documentID)
	metrics.IncDeleted()
	telemetry.Info("document.deleted", map[string]any{
		"user_id":           userID,
		"document_id":       documentID,
		"questions_removed": removed,
	})
	return nil
}
