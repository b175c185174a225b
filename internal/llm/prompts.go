package llm

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

var (
	//go:embed prompts/cleanup_v1.txt
	promptCleanupV1 string
	//go:embed prompts/questions_v1.txt
	promptQuestionsV1 string
)

const (
	PromptCleanup   = "cleanup_v1"
	PromptQuestions = "questions_v1"
)

var templates = map[string]*template.Template{
	PromptCleanup:   template.Must(template.New(PromptCleanup).Parse(promptCleanupV1)),
	PromptQuestions: template.Must(template.New(PromptQuestions).Parse(promptQuestionsV1)),
}

// RenderPrompt fills the named prompt template with data.
func RenderPrompt(name string, data any) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
