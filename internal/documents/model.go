package documents

import "time"

// Status is a Document's position in the processing state machine.
type Status string

const (
	StatusTemp       Status = "temp"
	StatusProcessing Status = "processing"
	StatusCleaned    Status = "cleaned"
	StatusVerified   Status = "verified"
	StatusFailed     Status = "failed"
)

// HasText reports whether documents in this status carry an ExtractedText.
func (s Status) HasText() bool {
	return s == StatusCleaned || s == StatusVerified
}

// ExtractionMethod records which OCR path a document took.
type ExtractionMethod string

const (
	MethodSync  ExtractionMethod = "sync"
	MethodAsync ExtractionMethod = "async"
)

// Document is one uploaded file owned by a user.
type Document struct {
	UserID               string
	DocumentID           string
	FileKey              string
	OriginalFilename     string
	UploadDate           time.Time
	ContentType          string
	FileSize             int64
	TextExtractionMethod ExtractionMethod
	Status               Status
	Tags                 []string
	FilePath             string
	ExtractedTextID      string
	JobID                string
	FailureReason        string
	UpdatedAt            time.Time
}

// ExtractedText is the text produced for a document. Its ID equals the
// object key of the text body.
type ExtractedText struct {
	ExtractedTextID   string
	DocumentID        string
	UserID            string
	ProcessedDate     time.Time
	Verified          bool
	TextFileKey       string
	AverageConfidence float64
	SummaryID         string
	QuestionIDs       []string
	Tokens            int64
}

// OCRJob correlates an async job tag with the document that started it.
type OCRJob struct {
	JobTag     string
	JobID      string
	UserID     string
	DocumentID string
	Bucket     string
	FileKey    string
	StartedAt  time.Time
}
