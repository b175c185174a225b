package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docscan-backend/internal/shared/storage/object"
)

// Options configures a MinIO connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Store implements object.Backend against an S3-compatible MinIO server.
type Store struct {
	client *minio.Client
}

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, opts Options, bucket string) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket %s: %w", bucket, err)
		}
	}
	return &Store{client: client}, nil
}

// Put uploads body.
func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, contentType string, meta map[string]string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return fmt.Errorf("minio put object bucket=%s key=%s: %w", bucket, key, err)
	}
	return nil
}

// Get downloads the object.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate("get object", bucket, key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate("get object", bucket, key, err)
	}
	return data, nil
}

// Head stats the object.
func (s *Store) Head(ctx context.Context, bucket, key string) (object.Info, error) {
	st, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return object.Info{}, translate("stat object", bucket, key, err)
	}
	return object.Info{
		ContentType:      st.ContentType,
		Size:             st.Size,
		OriginalFilename: userMeta(st.UserMetadata, object.MetaOriginalFilename),
	}, nil
}

// Copy duplicates srcKey to dstKey.
func (s *Store) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: bucket, Object: srcKey},
	)
	if err != nil {
		return translate("copy object", bucket, srcKey, err)
	}
	return nil
}

// Delete removes the object, reporting object.ErrNotFound when absent.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.Head(ctx, bucket, key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return translate("remove object", bucket, key, err)
	}
	return nil
}

// userMeta looks up a user metadata value; MinIO returns keys canonicalized.
func userMeta(meta map[string]string, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) || strings.EqualFold(k, "X-Amz-Meta-"+key) {
			return v
		}
	}
	return ""
}

func translate(op, bucket, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("minio %s bucket=%s key=%s: %w", op, bucket, key, object.ErrNotFound)
	}
	return fmt.Errorf("minio %s bucket=%s key=%s: %w", op, bucket, key, err)
}

var _ object.Backend = (*Store)(nil)
