package ocr

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeJobTagIsBoundedAndDeterministic(t *testing.T) {
	longUser := strings.Repeat("u", 200)
	longDoc := strings.Repeat("d", 200)

	tag := EncodeJobTag(longUser, longDoc)
	if len(tag) > MaxJobTagLen {
		t.Fatalf("tag length %d exceeds %d", len(tag), MaxJobTagLen)
	}
	if tag != EncodeJobTag(longUser, longDoc) {
		t.Fatalf("tag is not deterministic")
	}
	if strings.Contains(tag, longUser[:10]) {
		t.Fatalf("tag leaks raw identifiers: %s", tag)
	}
	if EncodeJobTag("ab", "c") == EncodeJobTag("a", "bc") {
		t.Fatalf("identifier boundary collision")
	}
}

func TestParseJobTagRoundTrip(t *testing.T) {
	tag := EncodeJobTag("user-1", "doc-1")
	parsed, err := ParseJobTag(tag)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Version != "v1" || parsed.String() != tag {
		t.Fatalf("unexpected parse %+v", parsed)
	}
	if !parsed.Matches("user-1", "doc-1") || parsed.Matches("user-1", "doc-2") {
		t.Fatalf("Matches mismatch")
	}
}

func TestParseJobTagRejects(t *testing.T) {
	tests := []string{
		"",
		"user-1_doc-1",
		"v1_short",
		"v2_" + strings.Repeat("a", 40),
		"v1_" + strings.Repeat("z", 40),
		strings.Repeat("a", 65),
	}
	for _, raw := range tests {
		if _, err := ParseJobTag(raw); !errors.Is(err, ErrBadJobTag) {
			t.Fatalf("ParseJobTag(%q) = %v, want ErrBadJobTag", raw, err)
		}
	}
}

func TestWrapNormalizesErrors(t *testing.T) {
	cause := errors.New("throttled")
	err := Wrap("start job", cause)
	if !errors.Is(err, ErrProvider) || !errors.Is(err, cause) {
		t.Fatalf("expected provider error wrapping cause, got %v", err)
	}
	if Wrap("again", err) != err {
		t.Fatalf("already-normalized errors should pass through")
	}
	if !errors.Is(ErrMissingJobID, ErrProvider) {
		t.Fatalf("missing job id must be a provider error")
	}
}
