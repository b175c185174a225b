package ocr

import (
	"errors"
	"fmt"
	"strings"

	"docscan-backend/internal/shared/util"
)

// Job tags are "v1_" followed by 40 hex chars of SHA-256(userId NUL documentId).
// Providers cap tags at 64 chars of [a-zA-Z0-9_.\-:]; raw identifiers can
// overflow that, so the tag is a digest and the pipeline keeps a correlation
// record keyed by it.
const (
	jobTagVersion   = "v1"
	jobTagDigestLen = 40
	// MaxJobTagLen is the provider ceiling.
	MaxJobTagLen = 64
)

// ErrBadJobTag is returned for tags this version cannot parse.
var ErrBadJobTag = errors.New("malformed job tag")

// JobTag is a parsed tag.
type JobTag struct {
	Version string
	Digest  string
}

func (t JobTag) String() string { return t.Version + "_" + t.Digest }

// EncodeJobTag derives the tag for a document. It is deterministic and bounded.
func EncodeJobTag(userID, documentID string) string {
	return JobTag{
		Version: jobTagVersion,
		Digest:  util.HashKey(userID, documentID)[:jobTagDigestLen],
	}.String()
}

// ParseJobTag validates a tag's version and shape.
func ParseJobTag(raw string) (JobTag, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxJobTagLen {
		return JobTag{}, fmt.Errorf("%w: length %d", ErrBadJobTag, len(raw))
	}
	version, digest, ok := strings.Cut(raw, "_")
	if !ok {
		return JobTag{}, fmt.Errorf("%w: %q", ErrBadJobTag, raw)
	}
	switch version {
	case jobTagVersion:
		if len(digest) != jobTagDigestLen || !isHex(digest) {
			return JobTag{}, fmt.Errorf("%w: %q", ErrBadJobTag, raw)
		}
		return JobTag{Version: version, Digest: digest}, nil
	default:
		return JobTag{}, fmt.Errorf("%w: unknown version %q", ErrBadJobTag, version)
	}
}

// Matches reports whether the tag was derived from (userID, documentID).
func (t JobTag) Matches(userID, documentID string) bool {
	return t.String() == EncodeJobTag(userID, documentID)
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
