package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	UserID               string    `json:"userId"`
	DocumentID           string    `json:"documentId"`
	FileKey              string    `json:"fileKey"`
	OriginalFilename     string    `json:"originalFilename"`
	UploadDate           time.Time `json:"uploadDate"`
	ContentType          string    `json:"contentType"`
	FileSize             int64     `json:"fileSize"`
	TextExtractionMethod string    `json:"textExtractionMethod"`
	Status               string    `json:"status"`
	Tags                 []string  `json:"tags"`
	FilePath             string    `json:"filePath,omitempty"`
	ExtractedTextID      string    `json:"extractedTextId,omitempty"`
	JobID                string    `json:"jobId,omitempty"`
	FailureReason        string    `json:"failureReason,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ExtractedTextResponse is the metadata of a document's text.
type ExtractedTextResponse struct {
	ExtractedTextID   string    `json:"extractedTextId"`
	DocumentID        string    `json:"documentId"`
	ProcessedDate     time.Time `json:"processedDate"`
	Verified          bool      `json:"verified"`
	TextFileKey       string    `json:"textFileKey"`
	AverageConfidence float64   `json:"averageConfidence"`
	SummaryID         string    `json:"summaryId,omitempty"`
	QuestionsID       []string  `json:"questionsId"`
	Tokens            int64     `json:"tokens"`
}

// DocumentDetailResponse is returned by GET on a single document.
type DocumentDetailResponse struct {
	Document      DocumentResponse       `json:"document"`
	ExtractedText *ExtractedTextResponse `json:"extractedText,omitempty"`
}

// UploadResponse carries the sync result or the started async job.
type UploadResponse struct {
	Document          DocumentResponse `json:"document"`
	Path              string           `json:"path"`
	JobID             string           `json:"jobId,omitempty"`
	CleanedText       string           `json:"cleanedText,omitempty"`
	Tags              []string         `json:"tags,omitempty"`
	SuggestedFilePath string           `json:"suggestedFilePath,omitempty"`
	Duplicate         bool             `json:"duplicate,omitempty"`
}

type finalizeRequest struct {
	Text     string   `json:"text"`
	FilePath string   `json:"filePath"`
	Tags     []string `json:"tags"`
}

// FinalizeResponse is returned after a document is verified.
type FinalizeResponse struct {
	Document      DocumentResponse      `json:"document"`
	ExtractedText ExtractedTextResponse `json:"extractedText"`
}

func toResponse(doc Document) DocumentResponse {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return DocumentResponse{
		UserID:               doc.UserID,
		DocumentID:           doc.DocumentID,
		FileKey:              doc.FileKey,
		OriginalFilename:     doc.OriginalFilename,
		UploadDate:           doc.UploadDate,
		ContentType:          doc.ContentType,
		FileSize:             doc.FileSize,
		TextExtractionMethod: string(doc.TextExtractionMethod),
		Status:               string(doc.Status),
		Tags:                 tags,
		FilePath:             doc.FilePath,
		ExtractedTextID:      doc.ExtractedTextID,
		JobID:                doc.JobID,
		FailureReason:        doc.FailureReason,
		UpdatedAt:            doc.UpdatedAt,
	}
}

func toTextResponse(et ExtractedText) ExtractedTextResponse {
	ids := et.QuestionIDs
	if ids == nil {
		ids = []string{}
	}
	return ExtractedTextResponse{
		ExtractedTextID:   et.ExtractedTextID,
		DocumentID:        et.DocumentID,
		ProcessedDate:     et.ProcessedDate,
		Verified:          et.Verified,
		TextFileKey:       et.TextFileKey,
		AverageConfidence: et.AverageConfidence,
		SummaryID:         et.SummaryID,
		QuestionsID:       ids,
		Tokens:            et.Tokens,
	}
}

func toUploadResponse(r UploadResult) UploadResponse {
	return UploadResponse{
		Document:          toResponse(r.Document),
		Path:              string(r.Method),
		JobID:             r.JobID,
		CleanedText:       r.CleanedText,
		Tags:              r.Tags,
		SuggestedFilePath: r.SuggestedFilePath,
		Duplicate:         r.Duplicate,
	}
}
