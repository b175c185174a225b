package documents

import (
	"context"
	"time"

	"docscan-backend/internal/shared/storage/record"
)

// Attribute names shared by the record codecs and sparse patches.
const (
	attrUserID           = "userId"
	attrDocumentID       = "documentId"
	attrFileKey          = "fileKey"
	attrOriginalFilename = "originalFilename"
	attrUploadDate       = "uploadDate"
	attrContentType      = "contentType"
	attrFileSize         = "fileSize"
	attrMethod           = "textExtractionMethod"
	attrStatus           = "status"
	attrTags             = "tags"
	attrFilePath         = "filePath"
	attrExtractedTextID  = "extractedTextId"
	attrJobID            = "jobId"
	attrFailureReason    = "failureReason"
	attrUpdatedAt        = "updatedAt"

	attrProcessedDate     = "processedDate"
	attrVerified          = "verified"
	attrTextFileKey       = "textFileKey"
	attrAverageConfidence = "averageConfidence"
	attrSummaryID         = "summaryId"
	attrQuestionsID       = "questionsId"
	attrTokens            = "tokens"

	attrJobTag    = "jobTag"
	attrBucket    = "bucket"
	attrStartedAt = "startedAt"
)

// Tables names the record tables the pipeline uses.
type Tables struct {
	Documents      string
	ExtractedTexts string
	OCRJobs        string
}

// Repo is the typed view over the record store.
type Repo struct {
	Store record.Store
	docs  record.Table
	texts record.Table
	jobs  record.Table
}

// NewRepo binds a record store to the pipeline tables.
func NewRepo(store record.Store, t Tables) *Repo {
	return &Repo{
		Store: store,
		docs:  record.Table{Name: t.Documents, PartitionKey: attrUserID, SortKey: attrDocumentID},
		texts: record.Table{Name: t.ExtractedTexts, PartitionKey: attrExtractedTextID},
		jobs:  record.Table{Name: t.OCRJobs, PartitionKey: attrJobTag},
	}
}

// Ping issues a cheap read against the documents table.
func (r *Repo) Ping(ctx context.Context) error {
	_, err := r.Store.Query(ctx, r.docs, "__health__")
	return err
}

// GetDocument loads one document; errs.ErrNotFound when absent.
func (r *Repo) GetDocument(ctx context.Context, userID, documentID string) (Document, error) {
	item, err := r.Store.Get(ctx, r.docs, record.Key{Partition: userID, Sort: documentID})
	if err != nil {
		return Document{}, err
	}
	return documentFromItem(item), nil
}

func (r *Repo) PutDocument(ctx context.Context, doc Document) error {
	return r.Store.Put(ctx, r.docs, documentToItem(doc))
}

// UpdateDocument applies a sparse patch. Missing documents are not created.
func (r *Repo) UpdateDocument(ctx context.Context, userID, documentID string, patch record.Item) error {
	return r.Store.Update(ctx, r.docs, record.Key{Partition: userID, Sort: documentID}, patch)
}

func (r *Repo) DeleteDocument(ctx context.Context, userID, documentID string) error {
	return r.Store.Delete(ctx, r.docs, record.Key{Partition: userID, Sort: documentID})
}

// ListDocuments returns every document of a user ordered by id.
func (r *Repo) ListDocuments(ctx context.Context, userID string) ([]Document, error) {
	items, err := r.Store.Query(ctx, r.docs, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(items))
	for _, item := range items {
		out = append(out, documentFromItem(item))
	}
	return out, nil
}

func (r *Repo) GetText(ctx context.Context, extractedTextID string) (ExtractedText, error) {
	item, err := r.Store.Get(ctx, r.texts, record.Key{Partition: extractedTextID})
	if err != nil {
		return ExtractedText{}, err
	}
	return textFromItem(item), nil
}

func (r *Repo) PutText(ctx context.Context, t ExtractedText) error {
	return r.Store.Put(ctx, r.texts, textToItem(t))
}

func (r *Repo) UpdateText(ctx context.Context, extractedTextID string, patch record.Item) error {
	return r.Store.Update(ctx, r.texts, record.Key{Partition: extractedTextID}, patch)
}

func (r *Repo) DeleteText(ctx context.Context, extractedTextID string) error {
	return r.Store.Delete(ctx, r.texts, record.Key{Partition: extractedTextID})
}

// AppendQuestionIDs adds ids to the text's questionsId list in one write.
func (r *Repo) AppendQuestionIDs(ctx context.Context, extractedTextID string, ids []string) error {
	return r.Store.Append(ctx, r.texts, record.Key{Partition: extractedTextID}, attrQuestionsID, ids)
}

func (r *Repo) PutJob(ctx context.Context, j OCRJob) error {
	return r.Store.Put(ctx, r.jobs, jobToItem(j))
}

func (r *Repo) GetJob(ctx context.Context, jobTag string) (OCRJob, error) {
	item, err := r.Store.Get(ctx, r.jobs, record.Key{Partition: jobTag})
	if err != nil {
		return OCRJob{}, err
	}
	return jobFromItem(item), nil
}

func (r *Repo) UpdateJob(ctx context.Context, jobTag string, patch record.Item) error {
	return r.Store.Update(ctx, r.jobs, record.Key{Partition: jobTag}, patch)
}

func (r *Repo) DeleteJob(ctx context.Context, jobTag string) error {
	return r.Store.Delete(ctx, r.jobs, record.Key{Partition: jobTag})
}

func documentToItem(d Document) record.Item {
	item := record.Item{
		attrUserID:           d.UserID,
		attrDocumentID:       d.DocumentID,
		attrFileKey:          d.FileKey,
		attrOriginalFilename: d.OriginalFilename,
		attrUploadDate:       record.FormatTime(d.UploadDate),
		attrContentType:      d.ContentType,
		attrFileSize:         d.FileSize,
		attrMethod:           string(d.TextExtractionMethod),
		attrStatus:           string(d.Status),
		attrUpdatedAt:        record.FormatTime(d.UpdatedAt),
	}
	if len(d.Tags) > 0 {
		item[attrTags] = record.StringSet(d.Tags)
	}
	optional(item, attrFilePath, d.FilePath)
	optional(item, attrExtractedTextID, d.ExtractedTextID)
	optional(item, attrJobID, d.JobID)
	optional(item, attrFailureReason, d.FailureReason)
	return item
}

func documentFromItem(item record.Item) Document {
	return Document{
		UserID:               item.String(attrUserID),
		DocumentID:           item.String(attrDocumentID),
		FileKey:              item.String(attrFileKey),
		OriginalFilename:     item.String(attrOriginalFilename),
		UploadDate:           item.Time(attrUploadDate),
		ContentType:          item.String(attrContentType),
		FileSize:             item.Int64(attrFileSize),
		TextExtractionMethod: ExtractionMethod(item.String(attrMethod)),
		Status:               Status(item.String(attrStatus)),
		Tags:                 item.Strings(attrTags),
		FilePath:             item.String(attrFilePath),
		ExtractedTextID:      item.String(attrExtractedTextID),
		JobID:                item.String(attrJobID),
		FailureReason:        item.String(attrFailureReason),
		UpdatedAt:            item.Time(attrUpdatedAt),
	}
}

func textToItem(t ExtractedText) record.Item {
	item := record.Item{
		attrExtractedTextID:   t.ExtractedTextID,
		attrDocumentID:        t.DocumentID,
		attrUserID:            t.UserID,
		attrProcessedDate:     record.FormatTime(t.ProcessedDate),
		attrVerified:          t.Verified,
		attrTextFileKey:       t.TextFileKey,
		attrAverageConfidence: t.AverageConfidence,
		attrQuestionsID:       append([]string{}, t.QuestionIDs...),
		attrTokens:            t.Tokens,
	}
	optional(item, attrSummaryID, t.SummaryID)
	return item
}

func textFromItem(item record.Item) ExtractedText {
	return ExtractedText{
		ExtractedTextID:   item.String(attrExtractedTextID),
		DocumentID:        item.String(attrDocumentID),
		UserID:            item.String(attrUserID),
		ProcessedDate:     item.Time(attrProcessedDate),
		Verified:          item.Bool(attrVerified),
		TextFileKey:       item.String(attrTextFileKey),
		AverageConfidence: item.Float64(attrAverageConfidence),
		SummaryID:         item.String(attrSummaryID),
		QuestionIDs:       item.Strings(attrQuestionsID),
		Tokens:            item.Int64(attrTokens),
	}
}

func jobToItem(j OCRJob) record.Item {
	item := record.Item{
		attrJobTag:     j.JobTag,
		attrUserID:     j.UserID,
		attrDocumentID: j.DocumentID,
		attrBucket:     j.Bucket,
		attrFileKey:    j.FileKey,
		attrStartedAt:  record.FormatTime(j.StartedAt),
	}
	optional(item, attrJobID, j.JobID)
	return item
}

func jobFromItem(item record.Item) OCRJob {
	return OCRJob{
		JobTag:     item.String(attrJobTag),
		JobID:      item.String(attrJobID),
		UserID:     item.String(attrUserID),
		DocumentID: item.String(attrDocumentID),
		Bucket:     item.String(attrBucket),
		FileKey:    item.String(attrFileKey),
		StartedAt:  item.Time(attrStartedAt),
	}
}

func optional(item record.Item, name, value string) {
	if value != "" {
		item[name] = value
	}
}

func stamp(t time.Time) string {
	return record.FormatTime(t)
}
