package questions

import (
	"context"

	"docscan-backend/internal/shared/storage/record"
)

// Repo stores questions under their document.
type Repo struct {
	Store record.Store
	table record.Table
}

// NewRepo binds a record store to the questions table.
func NewRepo(store record.Store, table string) *Repo {
	return &Repo{
		Store: store,
		table: record.Table{Name: table, PartitionKey: "documentId", SortKey: "questionId"},
	}
}

func (r *Repo) Put(ctx context.Context, q Question) error {
	return r.Store.Put(ctx, r.table, toItem(q))
}

// ListForDocument returns a document's questions ordered by id.
func (r *Repo) ListForDocument(ctx context.Context, documentID string) ([]Question, error) {
	items, err := r.Store.Query(ctx, r.table, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(items))
	for _, item := range items {
		out = append(out, fromItem(item))
	}
	return out, nil
}

// DeleteForDocument removes every question of a document and reports how
// many were removed.
func (r *Repo) DeleteForDocument(ctx context.Context, documentID string) (int, error) {
	items, err := r.Store.Query(ctx, r.table, documentID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, item := range items {
		k, err := r.table.KeyOf(item)
		if err != nil {
			return removed, err
		}
		if err := r.Store.Delete(ctx, r.table, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func toItem(q Question) record.Item {
	item := record.Item{
		"questionId": q.QuestionID,
		"documentId": q.DocumentID,
		"userId":     q.UserID,
		"question":   q.Question,
		"choices":    append([]string{}, q.Choices...),
		"answer":     q.Answer,
		"createdAt":  record.FormatTime(q.CreatedAt),
	}
	if len(q.Tags) > 0 {
		item["tags"] = record.StringSet(q.Tags)
	}
	return item
}

func fromItem(item record.Item) Question {
	return Question{
		QuestionID: item.String("questionId"),
		DocumentID: item.String("documentId"),
		UserID:     item.String("userId"),
		Tags:       item.Strings("tags"),
		Question:   item.String("question"),
		Choices:    item.Strings("choices"),
		Answer:     item.String("answer"),
		CreatedAt:  item.Time("createdAt"),
	}
}
