package record

import (
	"encoding/json"
	"strconv"
	"time"
)

// Item is a flat attribute map. Values are strings, numbers, bools, string
// lists, StringSet or time.Time (stored as RFC 3339 strings).
type Item map[string]any

// StringSet marks a []string to be stored as a set rather than a list.
type StringSet []string

// Clone returns a copy safe to mutate.
func (it Item) Clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		switch tv := v.(type) {
		case StringSet:
			out[k] = append(StringSet(nil), tv...)
		case []string:
			out[k] = append([]string(nil), tv...)
		default:
			out[k] = v
		}
	}
	return out
}

// String returns the attribute as a string, or "".
func (it Item) String(name string) string {
	switch v := it[name].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Int64 returns the attribute as an integer.
func (it Item) Int64(name string) int64 {
	switch v := it[name].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return int64(f)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// Float64 returns the attribute as a float.
func (it Item) Float64(name string) float64 {
	switch v := it[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// Bool returns the attribute as a bool.
func (it Item) Bool(name string) bool {
	switch v := it[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Strings returns a list or set attribute as a slice.
func (it Item) Strings(name string) []string {
	switch v := it[name].(type) {
	case StringSet:
		return append([]string(nil), v...)
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Time parses an RFC 3339 attribute. Zero when absent or malformed.
func (it Item) Time(name string) time.Time {
	switch v := it[name].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}

// Has reports whether the attribute is present.
func (it Item) Has(name string) bool {
	_, ok := it[name]
	return ok
}

// FormatTime renders t the way Item.Time expects it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
