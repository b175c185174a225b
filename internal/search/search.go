// Package search pushes cleaned document text to a full-text index. Indexing
// is best-effort: the pipeline never fails because the index is down.
package search

import (
	"context"
	"errors"

	"docscan-backend/internal/shared/telemetry"
)

// ErrDisabled is returned by Search when no index is configured.
var ErrDisabled = errors.New("search is not configured")

// Entry is one indexed document.
type Entry struct {
	ID               string   `json:"id"`
	UserID           string   `json:"userId"`
	OriginalFilename string   `json:"originalFilename"`
	FilePath         string   `json:"filePath"`
	Tags             []string `json:"tags"`
	Status           string   `json:"status"`
	Text             string   `json:"text"`
	UpdatedAt        string   `json:"updatedAt"`
}

// Hit is one search result.
type Hit struct {
	DocumentID       string   `json:"documentId"`
	OriginalFilename string   `json:"originalFilename"`
	FilePath         string   `json:"filePath"`
	Tags             []string `json:"tags"`
	Status           string   `json:"status"`
	Snippet          string   `json:"snippet"`
}

// Indexer is the search gateway. Search always filters by userID.
type Indexer interface {
	Upsert(ctx context.Context, e Entry) error
	Delete(ctx context.Context, documentID string) error
	Search(ctx context.Context, userID, query string, limit int) ([]Hit, error)
}

// Noop is used when SEARCH_PROVIDER=none.
type Noop struct{}

func (Noop) Upsert(ctx context.Context, e Entry) error { return nil }
func (Noop) Delete(ctx context.Context, documentID string) error { return nil }
func (Noop) Search(ctx context.Context, userID, query string, limit int) ([]Hit, error) {
	return nil, ErrDisabled
}

// BestEffort logs and swallows write failures. Search errors pass through.
type BestEffort struct {
	Indexer Indexer
}

func (b BestEffort) Upsert(ctx context.Context, e Entry) error {
	if err := b.Indexer.Upsert(ctx, e); err != nil {
		telemetry.Warn("search.upsert_failed", map[string]any{
			"document_id": e.ID,
			"user_id":     e.UserID,
			"error":       err,
		})
	}
	return nil
}

func (b BestEffort) Delete(ctx context.Context, documentID string) error {
	if err := b.Indexer.Delete(ctx, documentID); err != nil {
		telemetry.Warn("search.delete_failed", map[string]any{
			"document_id": documentID,
			"error":       err,
		})
	}
	return nil
}

func (b BestEffort) Search(ctx context.Context, userID, query string, limit int) ([]Hit, error) {
	return b.Indexer.Search(ctx, userID, query, limit)
}
