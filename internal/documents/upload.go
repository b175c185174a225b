package documents

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"docscan-backend/internal/ocr"
	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/storage/object"
	"docscan-backend/internal/shared/storage/record"
	"docscan-backend/internal/shared/telemetry"
)

var syncContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"application/pdf": true,
}

// UploadResult is what an upload event returns. Cleaned fields are only set
// on the sync path.
type UploadResult struct {
	Document          Document
	Method            ExtractionMethod
	JobID             string
	CleanedText       string
	Tags              []string
	SuggestedFilePath string
	Duplicate         bool
}

// ChooseMethod picks the extraction path for a stored object.
func ChooseMethod(contentType string, size, syncMax int64) ExtractionMethod {
	if syncContentTypes[normalizeContentType(contentType)] && size <= syncMax {
		return MethodSync
	}
	return MethodAsync
}

func normalizeContentType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mediaType
}

// Upload stores raw bytes in the caller's temp namespace and processes them
// as if the upload event had fired.
func (s *Service) Upload(ctx context.Context, userID, fileName, contentType string, body []byte) (UploadResult, error) {
	if strings.TrimSpace(userID) == "" {
		return UploadResult{}, errs.Invalid("userId is required")
	}
	if len(body) == 0 {
		return UploadResult{}, errs.Invalid("file is empty")
	}
	key, err := s.Objects.PutTemp(ctx, s.Cfg.Bucket, userID, body, contentType, fileName)
	if err != nil {
		return UploadResult{}, err
	}
	return s.HandleUpload(ctx, s.Cfg.Bucket, key)
}

// HandleUpload processes a new object under the temp prefix. The Document is
// persisted in temp before any extraction so later operations can target it.
func (s *Service) HandleUpload(ctx context.Context, bucket, key string) (UploadResult, error) {
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(key) == "" {
		return UploadResult{}, errs.Invalid("bucket and key are required")
	}
	if bucket != s.Cfg.Bucket {
		return UploadResult{}, errs.Invalid("unexpected bucket %q", bucket)
	}
	userID, ok := object.UserFromTempKey(key)
	if !ok {
		return UploadResult{}, errs.Invalid("key %q is not under the temp prefix", key)
	}
	documentID := DocumentID(bucket, key)

	// A replayed event for a document still in temp means the earlier run
	// died before extraction started, so it is processed again.
	existing, err := s.Repo.GetDocument(ctx, userID, documentID)
	switch {
	case err == nil && existing.Status != StatusTemp:
		telemetry.Info("pipeline.upload_duplicate", map[string]any{
			"user_id":     userID,
			"document_id": documentID,
			"status":      string(existing.Status),
		})
		return UploadResult{Document: existing, Method: existing.TextExtractionMethod, JobID: existing.JobID, Duplicate: true}, nil
	case err != nil && !errors.Is(err, errs.ErrNotFound):
		return UploadResult{}, err
	}

	info, err := s.Objects.Head(ctx, bucket, key)
	if err != nil {
		return UploadResult{}, err
	}
	name := info.OriginalFilename
	if name == "" {
		name = object.FileNameFromTempKey(key)
	}

	now := s.now()
	doc := Document{
		UserID:               userID,
		DocumentID:           documentID,
		FileKey:              key,
		OriginalFilename:     name,
		UploadDate:           now,
		ContentType:          normalizeContentType(info.ContentType),
		FileSize:             info.Size,
		TextExtractionMethod: ChooseMethod(info.ContentType, info.Size, s.Cfg.SyncMaxBytes),
		Status:               StatusTemp,
		UpdatedAt:            now,
	}
	if err := s.Repo.PutDocument(ctx, doc); err != nil {
		return UploadResult{}, err
	}
	metrics.IncUpload(string(doc.TextExtractionMethod))
	telemetry.Info("pipeline.upload_received", map[string]any{
		"user_id":      userID,
		"document_id":  documentID,
		"content_type": doc.ContentType,
		"file_size":    doc.FileSize,
		"method":       string(doc.TextExtractionMethod),
	})

	if doc.TextExtractionMethod == MethodSync {
		return s.processSync(ctx, doc)
	}
	return s.startAsync(ctx, doc)
}

func (s *Service) processSync(ctx context.Context, doc Document) (UploadResult, error) {
	body, err := s.Objects.Get(ctx, s.Cfg.Bucket, doc.FileKey)
	if err != nil {
		s.markFailed(ctx, doc.UserID, doc.DocumentID, err)
		return UploadResult{}, err
	}
	raw, err := s.OCR.ExtractSync(ctx, body)
	if err != nil {
		s.markFailed(ctx, doc.UserID, doc.DocumentID, err)
		return UploadResult{}, err
	}
	out, err := s.finish(ctx, doc, raw)
	if err != nil {
		s.markFailed(ctx, doc.UserID, doc.DocumentID, err)
		return UploadResult{}, err
	}
	return UploadResult{
		Document:          out.Document,
		Method:            MethodSync,
		CleanedText:       out.CleanedText,
		Tags:              out.Tags,
		SuggestedFilePath: out.SuggestedFilePath,
	}, nil
}

// startAsync writes the job correlation record and moves the document to
// processing before the job starts, so a fast completion can always resolve
// its tag and never races a later status write.
func (s *Service) startAsync(ctx context.Context, doc Document) (UploadResult, error) {
	tag := ocr.EncodeJobTag(doc.UserID, doc.DocumentID)
	job := OCRJob{
		JobTag:     tag,
		UserID:     doc.UserID,
		DocumentID: doc.DocumentID,
		Bucket:     s.Cfg.Bucket,
		FileKey:    doc.FileKey,
		StartedAt:  s.now(),
	}
	if err := s.Repo.PutJob(ctx, job); err != nil {
		s.markFailed(ctx, doc.UserID, doc.DocumentID, err)
		return UploadResult{}, err
	}
	now := s.now()
	err := s.Repo.UpdateDocument(ctx, doc.UserID, doc.DocumentID, record.Item{
		attrStatus:    string(StatusProcessing),
		attrUpdatedAt: stamp(now),
	})
	if err != nil {
		return UploadResult{}, err
	}
	doc.Status = StatusProcessing
	doc.UpdatedAt = now

	jobID, err := s.OCR.StartAsync(ctx, ocr.AsyncRequest{
		Bucket:            s.Cfg.Bucket,
		Key:               doc.FileKey,
		UserID:            doc.UserID,
		DocumentID:        doc.DocumentID,
		NotificationTopic: s.Cfg.NotificationTopic,
		ServiceRole:       s.Cfg.ServiceRole,
	})
	if err != nil {
		s.markFailed(ctx, doc.UserID, doc.DocumentID, err)
		return UploadResult{}, fmt.Errorf("start async ocr: %w", err)
	}
	doc.JobID = jobID

	if err := s.Repo.UpdateJob(ctx, tag, record.Item{attrJobID: jobID}); err != nil {
		telemetry.Warn("pipeline.job_record_update_failed", map[string]any{"job_id": jobID, "error": err})
	}
	if err := s.Repo.UpdateDocument(ctx, doc.UserID, doc.DocumentID, record.Item{attrJobID: jobID}); err != nil {
		return UploadResult{}, err
	}

	telemetry.Info("pipeline.async_started", map[string]any{
		"user_id":           doc.UserID,
		"document_id":       doc.DocumentID,
		"job_id":            jobID,
		"status_transition": "temp -> processing",
	})
	return UploadResult{Document: doc, Method: MethodAsync, JobID: jobID}, nil
}
