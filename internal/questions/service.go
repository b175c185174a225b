// Package questions generates and stores study questions for extracted
// documents.
package questions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docscan-backend/internal/cleanup"
	"docscan-backend/internal/documents"
	"docscan-backend/internal/llm"
	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/metrics"
	"docscan-backend/internal/shared/telemetry"
)

const (
	MinQuestions = 1
	MaxQuestions = 10
)

// ErrBadModelOutput means the model answered with something that is not a
// usable question list.
var ErrBadModelOutput = errors.New("question generation output invalid")

const systemPrompt = "You write study questions grounded only in the given document. You always answer with one JSON object."

// DocumentSource resolves documents and their text for the caller.
type DocumentSource interface {
	Get(ctx context.Context, userID, documentID string) (documents.Document, *documents.ExtractedText, error)
	Text(ctx context.Context, userID, documentID string) (string, error)
}

// TextLinker records question ids on a document's text record.
type TextLinker interface {
	AppendQuestionIDs(ctx context.Context, extractedTextID string, ids []string) error
}

// Service generates, lists and purges questions.
type Service struct {
	Docs  DocumentSource
	Texts TextLinker
	LLM   llm.Completer
	Repo  *Repo
	Now   func() time.Time
}

// NewService wires the question service.
func NewService(docs DocumentSource, texts TextLinker, completer llm.Completer, repo *Repo) *Service {
	return &Service{
		Docs:  docs,
		Texts: texts,
		LLM:   completer,
		Repo:  repo,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

type generated struct {
	Questions []struct {
		Question string   `json:"question"`
		Choices  []string `json:"choices"`
		Answer   string   `json:"answer"`
		Tags     []string `json:"tags"`
	} `json:"questions"`
}

// Generate creates n questions for a cleaned or verified document. Range and
// identifier checks run before any remote call.
func (s *Service) Generate(ctx context.Context, userID, documentID string, n int) ([]Question, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return nil, errs.Invalid("userId and documentId are required")
	}
	if n < MinQuestions || n > MaxQuestions {
		return nil, errs.Invalid("numQuestions must be between %d and %d, got %d", MinQuestions, MaxQuestions, n)
	}

	doc, et, err := s.Docs.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.Status.HasText() {
		return nil, errs.Conflict("questions need a cleaned or verified document, status is %s", doc.Status)
	}
	if et == nil {
		return nil, errs.Conflict("document %s has no extracted text", documentID)
	}
	text, err := s.Docs.Text(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errs.Conflict("document %s has empty text", documentID)
	}

	prompt, err := llm.RenderPrompt(llm.PromptQuestions, struct {
		Count int
		Tags  []string
		Text  string
	}{Count: n, Tags: doc.Tags, Text: text})
	if err != nil {
		return nil, err
	}
	resp, err := s.LLM.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, errs.Remote("generate questions", documentID, err)
	}

	out, err := parseGenerated(resp.Text, n)
	if err != nil {
		telemetry.Warn("questions.bad_output", map[string]any{"document_id": documentID, "requested": n, "error": err})
		return nil, errs.Remote("generate questions", documentID, err)
	}
	if len(out.Questions) > n {
		out.Questions = out.Questions[:n]
	}

	now := s.now()
	result := make([]Question, 0, len(out.Questions))
	ids := make([]string, 0, len(out.Questions))
	for i, g := range out.Questions {
		q := Question{
			QuestionID: NewQuestionID(now, i),
			DocumentID: documentID,
			UserID:     userID,
			Tags:       g.Tags,
			Question:   strings.TrimSpace(g.Question),
			Choices:    g.Choices,
			Answer:     strings.TrimSpace(g.Answer),
			CreatedAt:  now,
		}
		if err := s.Repo.Put(ctx, q); err != nil {
			return nil, err
		}
		result = append(result, q)
		ids = append(ids, q.QuestionID)
	}
	if err := s.Texts.AppendQuestionIDs(ctx, et.ExtractedTextID, ids); err != nil {
		return nil, err
	}

	metrics.AddQuestionsGenerated(len(result))
	telemetry.Info("questions.generated", map[string]any{
		"user_id":     userID,
		"document_id": documentID,
		"requested":   n,
		"generated":   len(result),
		"model":       resp.Model,
	})
	return result, nil
}

// List returns the questions of one of the caller's documents.
func (s *Service) List(ctx context.Context, userID, documentID string) ([]Question, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return nil, errs.Invalid("userId and documentId are required")
	}
	if _, _, err := s.Docs.Get(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.Repo.ListForDocument(ctx, documentID)
}

// DeleteForDocument removes every question of a document.
func (s *Service) DeleteForDocument(ctx context.Context, documentID string) (int, error) {
	return s.Repo.DeleteForDocument(ctx, documentID)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// parseGenerated decodes the model answer and requires at least count
// questions.
func parseGenerated(raw string, count int) (generated, error) {
	span, ok := cleanup.ExtractJSONSpan(raw)
	if !ok {
		return generated{}, fmt.Errorf("%w: no JSON object in response", ErrBadModelOutput)
	}
	if err := validateOutput([]byte(span), count); err != nil {
		return generated{}, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}
	var out generated
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return generated{}, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}
	if len(out.Questions) < count {
		return generated{}, fmt.Errorf("%w: asked for %d questions, got %d", ErrBadModelOutput, count, len(out.Questions))
	}
	return out, nil
}

// NewQuestionID returns q_<unixMillis>_<index>_<8 hex>. The index and random
// suffix keep ids unique within one millisecond.
func NewQuestionID(now time.Time, index int) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("q_%d_%d_%08x", now.UnixMilli(), index, now.UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("q_%d_%d_%s", now.UnixMilli(), index, hex.EncodeToString(b[:]))
}
