package documents

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"docscan-backend/internal/cleanup"
	"docscan-backend/internal/ocr"
	"docscan-backend/internal/queue"
	"docscan-backend/internal/search"
	"docscan-backend/internal/shared/dedupe"
	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/storage/object"
	"docscan-backend/internal/shared/telemetry"
)

// DefaultSyncMaxBytes is the largest file handled on the sync path.
const DefaultSyncMaxBytes = 5 << 20

const defaultClaimTTL = 3 * time.Minute

// ObjectStore is the subset of object.Gateway the pipeline uses.
type ObjectStore interface {
	PutTemp(ctx context.Context, bucket, userID string, body []byte, contentType, originalName string) (string, error)
	MoveTempToFinal(ctx context.Context, bucket, userID, documentID, tempKey string) (string, error)
	PutText(ctx context.Context, bucket, userID, documentID, revision, text string) (string, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Head(ctx context.Context, bucket, key string) (object.Info, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Cleaner corrects raw OCR text.
type Cleaner interface {
	Clean(ctx context.Context, rawText string, existingPaths []string, avgConfidence float64) (cleanup.Result, error)
}

// QuestionPurger removes every question of a document.
type QuestionPurger interface {
	DeleteForDocument(ctx context.Context, documentID string) (int, error)
}

// Config is the explicit pipeline configuration.
type Config struct {
	Bucket            string
	SyncMaxBytes      int64
	NotificationTopic string
	ServiceRole       string
	ClaimTTL          time.Duration
}

// Service is the document processing orchestrator.
type Service struct {
	Cfg         Config
	Objects     ObjectStore
	Repo        *Repo
	OCR         ocr.Client
	Cleaner     Cleaner
	Search      search.Indexer
	Questions   QuestionPurger
	Claims      dedupe.Claimer
	DeadLetters queue.Client
	Now         func() time.Time
}

// NewService wires the orchestrator with safe defaults for optional parts.
func NewService(cfg Config, objects ObjectStore, repo *Repo, ocrClient ocr.Client, cleaner Cleaner) *Service {
	if cfg.SyncMaxBytes <= 0 {
		cfg.SyncMaxBytes = DefaultSyncMaxBytes
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaultClaimTTL
	}
	return &Service{
		Cfg:         cfg,
		Objects:     objects,
		Repo:        repo,
		OCR:         ocrClient,
		Cleaner:     cleaner,
		Search:      search.Noop{},
		Claims:      dedupe.None{},
		DeadLetters: queue.LogOnly{},
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// documentNamespace seeds deterministic document ids.
var documentNamespace = uuid.MustParse("8f6d0c52-4f1e-4a55-9a43-0d3a2c6f1b7e")

// DocumentID derives the id for an uploaded object. Replayed upload events
// for the same object resolve to the same document.
func DocumentID(bucket, tempKey string) string {
	return uuid.NewSHA1(documentNamespace, []byte(bucket+"/"+tempKey)).String()
}

func newRevision(now time.Time) string {
	return now.Format("20060102T150405.000Z") + "-" + uuid.NewString()[:8]
}

// List returns the caller's documents.
func (s *Service) List(ctx context.Context, userID string) ([]Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.Invalid("userId is required")
	}
	return s.Repo.ListDocuments(ctx, userID)
}

// Get returns a document and, once extracted, its text record.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, *ExtractedText, error) {
	if err := requireIDs(userID, documentID); err != nil {
		return Document{}, nil, err
	}
	doc, err := s.Repo.GetDocument(ctx, userID, documentID)
	if err != nil {
		return Document{}, nil, err
	}
	if doc.ExtractedTextID == "" {
		return doc, nil, nil
	}
	text, err := s.Repo.GetText(ctx, doc.ExtractedTextID)
	if errors.Is(err, errs.ErrNotFound) {
		return doc, nil, nil
	}
	if err != nil {
		return Document{}, nil, err
	}
	return doc, &text, nil
}

// Text returns the current text body of an extracted document.
func (s *Service) Text(ctx context.Context, userID, documentID string) (string, error) {
	doc, et, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	if et == nil {
		return "", errs.Conflict("document %s has no extracted text (status %s)", doc.DocumentID, doc.Status)
	}
	body, err := s.Objects.Get(ctx, s.Cfg.Bucket, et.TextFileKey)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func requireIDs(userID, documentID string) error {
	if strings.TrimSpace(userID) == "" {
		return errs.Invalid("userId is required")
	}
	if strings.TrimSpace(documentID) == "" {
		return errs.Invalid("documentId is required")
	}
	return nil
}

// deadLetter parks a completion that cannot be correlated. It is never retried.
func (s *Service) deadLetter(ctx context.Context, reason string, c ocr.Completion, body []byte, cause error) {
	metrics.IncDeadLettered()
	msg := queue.DeadLetter{
		Reason:     reason,
		JobID:      c.JobID,
		JobTag:     c.JobTag,
		Status:     string(c.Status),
		Body:       string(body),
		RecordedAt: stamp(s.now()),
		Version:    1,
	}
	if cause != nil {
		msg.Error = cause.Error()
	}
	fields := map[string]any{"reason": reason, "job_id": c.JobID, "job_tag": c.JobTag}
	if cause != nil {
		fields["error"] = cause
	}
	telemetry.Warn("pipeline.dead_letter", fields)
	if s.DeadLetters == nil {
		return
	}
	if err := s.DeadLetters.Send(ctx, msg); err != nil {
		telemetry.Error("pipeline.dead_letter_failed", map[string]any{"job_id": c.JobID, "error": err})
	}
}
