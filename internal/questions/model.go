package questions

import "time"

// Question is one generated study question. Choices is empty for
// free-response questions.
type Question struct {
	QuestionID string
	DocumentID string
	UserID     string
	Tags       []string
	Question   string
	Choices    []string
	Answer     string
	CreatedAt  time.Time
}
