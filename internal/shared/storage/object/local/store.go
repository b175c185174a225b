package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docscan-backend/internal/shared/storage/object"
)

const metaDir = ".meta"

// Store implements object.Backend on the local filesystem. Objects live at
// {baseDir}/{bucket}/{key} with metadata in a JSON sidecar under .meta.
type Store struct {
	baseDir string
}

type sidecar struct {
	ContentType string            `json:"contentType"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// New creates a local store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Put writes the object and its metadata.
func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, contentType string, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := writeFile(full, body); err != nil {
		return err
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	raw, err := json.Marshal(sidecar{ContentType: contentType, Meta: meta})
	if err != nil {
		return err
	}
	return writeFile(s.metaPath(bucket, key), raw)
}

// Get reads the object bytes.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

// Head returns size, content type and original filename.
func (s *Store) Head(ctx context.Context, bucket, key string) (object.Info, error) {
	if err := ctx.Err(); err != nil {
		return object.Info{}, err
	}
	full, err := s.resolve(bucket, key)
	if err != nil {
		return object.Info{}, err
	}
	st, err := os.Stat(full)
	if err != nil {
		return object.Info{}, translate(err)
	}
	info := object.Info{Size: st.Size()}
	if raw, err := os.ReadFile(s.metaPath(bucket, key)); err == nil {
		var sc sidecar
		if json.Unmarshal(raw, &sc) == nil {
			info.ContentType = sc.ContentType
			info.OriginalFilename = sc.Meta[object.MetaOriginalFilename]
		}
	}
	return info, nil
}

// Copy duplicates src to dst within the bucket, metadata included.
func (s *Store) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := s.resolve(bucket, srcKey)
	if err != nil {
		return err
	}
	dst, err := s.resolve(bucket, dstKey)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return translate(err)
	}
	if err := writeFile(dst, data); err != nil {
		return err
	}
	if raw, err := os.ReadFile(s.metaPath(bucket, srcKey)); err == nil {
		return writeFile(s.metaPath(bucket, dstKey), raw)
	}
	return nil
}

// Delete removes the object. A missing object yields object.ErrNotFound.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return translate(err)
	}
	_ = os.Remove(s.metaPath(bucket, key))
	return nil
}

func (s *Store) resolve(bucket, key string) (string, error) {
	if strings.ContainsAny(bucket, `/\`) || bucket == "" || bucket == metaDir {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, bucket, clean), nil
}

func (s *Store) metaPath(bucket, key string) string {
	return filepath.Join(s.baseDir, metaDir, bucket, filepath.Clean(filepath.FromSlash(key))+".json")
}

func writeFile(full string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return object.ErrNotFound
	}
	return err
}

var _ object.Backend = (*Store)(nil)
