package record

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"docscan-backend/internal/shared/errs"
)

func TestItemAccessorsAcrossEncodings(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	it := Item{
		"s":     "hello",
		"i":     int64(42),
		"f":     float64(87.5),
		"jn":    json.Number("1024"),
		"b":     true,
		"set":   StringSet{"a", "b"},
		"list":  []any{"x", "y", 3},
		"when":  FormatTime(now),
		"plain": []string{"p"},
	}
	if it.String("s") != "hello" || it.Int64("i") != 42 || it.Float64("f") != 87.5 {
		t.Fatalf("scalar accessors mismatch")
	}
	if it.Int64("jn") != 1024 || it.Int64("f") != 87 {
		t.Fatalf("numeric conversions mismatch")
	}
	if !it.Bool("b") || it.Bool("missing") {
		t.Fatalf("bool accessor mismatch")
	}
	if got := it.Strings("set"); len(got) != 2 || got[1] != "b" {
		t.Fatalf("set accessor = %v", got)
	}
	if got := it.Strings("list"); len(got) != 2 {
		t.Fatalf("list accessor should skip non-strings, got %v", got)
	}
	if !it.Time("when").Equal(now) {
		t.Fatalf("time accessor = %v", it.Time("when"))
	}

	clone := it.Clone()
	clone["set"].(StringSet)[0] = "z"
	if it.Strings("set")[0] != "a" {
		t.Fatalf("clone shares set storage")
	}
}

func TestTableCheck(t *testing.T) {
	docs := Table{Name: "documents", PartitionKey: "userId", SortKey: "documentId"}
	if err := docs.Check(Key{Partition: "u"}); !errors.Is(err, ErrInvalidKey) || !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected invalid key for missing sort, got %v", err)
	}
	if err := docs.Check(Key{Partition: "u", Sort: "d"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	texts := Table{Name: "extracted_texts", PartitionKey: "extractedTextId"}
	if err := texts.Check(Key{Partition: "k"}); err != nil {
		t.Fatalf("partition-only table should accept empty sort: %v", err)
	}
	k, err := docs.KeyOf(Item{"userId": "u", "documentId": "d"})
	if err != nil || k != (Key{Partition: "u", Sort: "d"}) {
		t.Fatalf("KeyOf = %+v, %v", k, err)
	}
	if got := docs.Settable(Item{"userId": "u", "status": "cleaned"}); len(got) != 1 || got.String("status") != "cleaned" {
		t.Fatalf("Settable = %v", got)
	}
}
