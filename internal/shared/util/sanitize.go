package util

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"docscan-backend/internal/shared/errs"
)

// MaxFileNameBytes bounds the name segment of an object key.
const MaxFileNameBytes = 200

// SanitizeFileName turns an uploaded scan's name into a single object key
// segment. Separators become underscores, control characters are dropped and
// long names are cut before the extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errs.Invalid("file name %q contains a traversal sequence", name)
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case r == utf8.RuneError || unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" || s == "." {
		return "", errs.Invalid("file name is empty")
	}
	return truncateName(s, MaxFileNameBytes), nil
}

func truncateName(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	ext := path.Ext(s)
	if len(ext) >= limit/2 {
		ext = ""
	}
	stem := s[:len(s)-len(ext)]
	cut := limit - len(ext)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return stem[:cut] + ext
}
