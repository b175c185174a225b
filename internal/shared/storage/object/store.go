package object

import (
	"context"
	"errors"
)

// ErrNotFound is returned by backends when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object.
type Info struct {
	ContentType      string
	Size             int64
	OriginalFilename string
}

// MetaOriginalFilename is the user-metadata key carrying the uploaded file name.
const MetaOriginalFilename = "original-filename"

// Backend is the raw blob API. Implementations return ErrNotFound (wrapped or bare)
// when the bucket/key pair does not exist.
type Backend interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string, meta map[string]string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Head(ctx context.Context, bucket, key string) (Info, error)
	Copy(ctx context.Context, bucket, srcKey, dstKey string) error
	Delete(ctx context.Context, bucket, key string) error
}
