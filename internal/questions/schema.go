package questions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// outputSchema is the shape the questions prompt asks the model for when it
// requests count questions. Extra questions are trimmed, so only the lower
// bound is enforced.
func outputSchema(count int) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"questions"},
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": count,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"question", "answer"},
					"properties": map[string]any{
						"question": map[string]any{"type": "string", "minLength": 1},
						"answer":   map[string]any{"type": "string"},
						"choices": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
						"tags": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	}
}

// compiledOutputSchemas is indexed by the requested question count.
var compiledOutputSchemas = func() []*jsonschema.Schema {
	out := make([]*jsonschema.Schema, MaxQuestions+1)
	for n := MinQuestions; n <= MaxQuestions; n++ {
		out[n] = mustCompile(fmt.Sprintf("questions_%d.json", n), outputSchema(n))
	}
	return out
}()

func mustCompile(name string, schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal questions schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add questions schema: %v", err))
	}
	return compiler.MustCompile(name)
}

// validateOutput checks a decoded model response against the schema for a
// request of count questions.
func validateOutput(data []byte, count int) error {
	if count < MinQuestions || count > MaxQuestions {
		return fmt.Errorf("question count %d out of range", count)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := compiledOutputSchemas[count].Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
