package meili

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"docscan-backend/internal/search"
	"docscan-backend/internal/shared/telemetry"
)

const (
	defaultLimit = 20
	maxLimit     = 100
	snippetWords = 30
)

type indexAPI interface {
	AddDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
	DeleteDocument(identifier string) (*meilisearch.TaskInfo, error)
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// Index implements search.Indexer on a Meilisearch index.
type Index struct {
	index indexAPI
	name  string
}

// New connects to Meilisearch and makes sure the index exists with userId
// filterable. Setup failures are logged; the index is still returned.
func New(host, apiKey, name string) *Index {
	client := meilisearch.NewClient(meilisearch.ClientConfig{Host: host, APIKey: apiKey})

	if _, err := client.GetIndex(name); err != nil {
		if _, err := client.CreateIndex(&meilisearch.IndexConfig{Uid: name, PrimaryKey: "id"}); err != nil {
			telemetry.Warn("search.index_create_failed", map[string]any{"index": name, "error": err})
		}
	}
	idx := client.Index(name)
	if _, err := idx.UpdateFilterableAttributes(&[]string{"userId", "status", "tags"}); err != nil {
		telemetry.Warn("search.index_settings_failed", map[string]any{"index": name, "error": err})
	}
	if _, err := idx.UpdateSearchableAttributes(&[]string{"text", "originalFilename", "filePath", "tags"}); err != nil {
		telemetry.Warn("search.index_settings_failed", map[string]any{"index": name, "error": err})
	}
	return &Index{index: idx, name: name}
}

// Upsert adds or replaces the entry.
func (i *Index) Upsert(ctx context.Context, e search.Entry) error {
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("meilisearch upsert: id and userId are required")
	}
	if _, err := i.index.AddDocuments([]search.Entry{e}, "id"); err != nil {
		return fmt.Errorf("meilisearch upsert index=%s id=%s: %w", i.name, e.ID, err)
	}
	return nil
}

// Delete removes the entry.
func (i *Index) Delete(ctx context.Context, documentID string) error {
	if _, err := i.index.DeleteDocument(documentID); err != nil {
		return fmt.Errorf("meilisearch delete index=%s id=%s: %w", i.name, documentID, err)
	}
	return nil
}

// Search runs query restricted to userID's documents.
func (i *Index) Search(ctx context.Context, userID, query string, limit int) ([]search.Hit, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("meilisearch search: userId is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	resp, err := i.index.Search(query, &meilisearch.SearchRequest{
		Filter:           "userId = " + strconv.Quote(userID),
		Limit:            int64(limit),
		AttributesToCrop: []string{"text"},
		CropLength:       snippetWords,
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch search index=%s: %w", i.name, err)
	}

	hits := make([]search.Hit, 0, len(resp.Hits))
	for _, raw := range resp.Hits {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		hit := search.Hit{
			DocumentID:       str(m["id"]),
			OriginalFilename: str(m["originalFilename"]),
			FilePath:         str(m["filePath"]),
			Status:           str(m["status"]),
			Tags:             strs(m["tags"]),
			Snippet:          str(m["text"]),
		}
		if formatted, ok := m["_formatted"].(map[string]interface{}); ok {
			if s := str(formatted["text"]); s != "" {
				hit.Snippet = s
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func strs(v interface{}) []string {
	list, _ := v.([]interface{})
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var _ search.Indexer = (*Index)(nil)
