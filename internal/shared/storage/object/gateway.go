package object

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/telemetry"
)

// Gateway builds keys, checks arguments and translates backend errors.
type Gateway struct {
	backend Backend
}

// NewGateway wraps a backend.
func NewGateway(b Backend) *Gateway {
	return &Gateway{backend: b}
}

// PutTemp stores raw upload bytes under the user's temp namespace.
func (g *Gateway) PutTemp(ctx context.Context, bucket, userID string, body []byte, contentType, originalName string) (string, error) {
	if err := require("bucket", bucket, "userId", userID, "originalName", originalName); err != nil {
		return "", err
	}
	key, err := TempKey(userID, originalName)
	if err != nil {
		return "", errs.Invalid("%v", err)
	}
	meta := map[string]string{MetaOriginalFilename: originalName}
	if err := g.backend.Put(ctx, bucket, key, body, contentType, meta); err != nil {
		return "", wrap("put temp object", bucket, key, err)
	}
	return key, nil
}

// MoveTempToFinal copies a temp object to its final key and removes the temp copy.
// A failed removal is logged and the move still succeeds. If the temp object is
// gone but the final object exists the earlier move is reported as done.
func (g *Gateway) MoveTempToFinal(ctx context.Context, bucket, userID, documentID, tempKey string) (string, error) {
	if err := require("bucket", bucket, "userId", userID, "documentId", documentID, "tempKey", tempKey); err != nil {
		return "", err
	}
	if !strings.HasPrefix(tempKey, TempPrefix(userID)) || strings.Contains(tempKey, "..") {
		return "", errs.Invalid("temp key %q is outside the caller's temp namespace", tempKey)
	}
	finalKey := FinalKey(userID, documentID, FileNameFromTempKey(tempKey))

	if err := g.backend.Copy(ctx, bucket, tempKey, finalKey); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return "", wrap("copy object", bucket, tempKey, err)
		}
		if _, headErr := g.backend.Head(ctx, bucket, finalKey); headErr != nil {
			return "", wrap("copy object", bucket, tempKey, err)
		}
		return finalKey, nil
	}

	if err := g.backend.Delete(ctx, bucket, tempKey); err != nil && !errors.Is(err, ErrNotFound) {
		telemetry.Warn("object.temp_cleanup_failed", map[string]any{
			"bucket": bucket,
			"key":    tempKey,
			"error":  err,
		})
	}
	return finalKey, nil
}

// PutText stores a UTF-8 text body for one revision of a document.
func (g *Gateway) PutText(ctx context.Context, bucket, userID, documentID, revision, text string) (string, error) {
	if err := require("bucket", bucket, "userId", userID, "documentId", documentID, "revision", revision); err != nil {
		return "", err
	}
	key := TextKey(userID, documentID, revision)
	if err := g.backend.Put(ctx, bucket, key, []byte(text), "text/plain; charset=utf-8", nil); err != nil {
		return "", wrap("put text object", bucket, key, err)
	}
	return key, nil
}

// Get reads an object.
func (g *Gateway) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := require("bucket", bucket, "key", key); err != nil {
		return nil, err
	}
	body, err := g.backend.Get(ctx, bucket, key)
	if err != nil {
		return nil, wrap("get object", bucket, key, err)
	}
	return body, nil
}

// Head returns object metadata.
func (g *Gateway) Head(ctx context.Context, bucket, key string) (Info, error) {
	if err := require("bucket", bucket, "key", key); err != nil {
		return Info{}, err
	}
	info, err := g.backend.Head(ctx, bucket, key)
	if err != nil {
		return Info{}, wrap("head object", bucket, key, err)
	}
	return info, nil
}

// Delete removes an object. A missing object yields errs.ErrNotFound.
func (g *Gateway) Delete(ctx context.Context, bucket, key string) error {
	if err := require("bucket", bucket, "key", key); err != nil {
		return err
	}
	if err := g.backend.Delete(ctx, bucket, key); err != nil {
		return wrap("delete object", bucket, key, err)
	}
	return nil
}

func require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return errs.Invalid("%s is required", pairs[i])
		}
	}
	return nil
}

func wrap(op, bucket, key string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s %s/%s: %w", op, bucket, key, errs.ErrNotFound)
	}
	return errs.Remote(op, bucket+"/"+key, err)
}
