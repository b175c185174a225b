package cleanup

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the structured cleanup output.
type Result struct {
	CleanedText       string   `json:"cleanedText"`
	Tags              []string `json:"tags"`
	SuggestedFilePath string   `json:"suggestedFilePath"`
}

// ExtractJSONSpan returns the text between the first '{' and the last '}'
// inclusive. Models often wrap the object in prose or code fences.
func ExtractJSONSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// ParseResult decodes a model response. Missing fields default to empty
// values; only a response with no decodable object is an error.
func ParseResult(raw string) (Result, error) {
	span, ok := ExtractJSONSpan(raw)
	if !ok {
		return Result{}, fmt.Errorf("%w: no JSON object in response", ErrUnparsable)
	}

	var wire struct {
		CleanedText       any `json:"cleanedText"`
		Tags              any `json:"tags"`
		SuggestedFilePath any `json:"suggestedFilePath"`
	}
	if err := json.Unmarshal([]byte(span), &wire); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}

	return Result{
		CleanedText:       asString(wire.CleanedText),
		Tags:              normalizeTags(wire.Tags),
		SuggestedFilePath: normalizePath(asString(wire.SuggestedFilePath)),
	}, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// normalizeTags accepts a list or a comma-separated string and returns
// trimmed, lowercased, de-duplicated tags in their original order.
func normalizeTags(v any) []string {
	var raw []string
	switch tv := v.(type) {
	case []any:
		for _, e := range tv {
			if s, ok := e.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(tv, ",")
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func normalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "." || part == ".." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}
