package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"docscan-backend/internal/shared/storage/object"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store implements object.Backend using Amazon S3.
type Store struct {
	client   s3API
	kmsKeyID string
}

// New creates an S3 backend from a loaded AWS config.
func New(cfg aws.Config, kmsKeyID string) *Store {
	return &Store{client: s3.NewFromConfig(cfg), kmsKeyID: strings.TrimSpace(kmsKeyID)}
}

// Put uploads body with server-side encryption.
func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, contentType string, meta map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		Metadata:      meta,
	}
	s.applySSE(input)
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object bucket=%s key=%s: %w", bucket, key, err)
	}
	return nil
}

// Get downloads the object.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translate("get object", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body bucket=%s key=%s: %w", bucket, key, err)
	}
	return data, nil
}

// Head fetches object metadata.
func (s *Store) Head(ctx context.Context, bucket, key string) (object.Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return object.Info{}, translate("head object", bucket, key, err)
	}
	return object.Info{
		ContentType:      aws.ToString(out.ContentType),
		Size:             aws.ToInt64(out.ContentLength),
		OriginalFilename: out.Metadata[object.MetaOriginalFilename],
	}, nil
}

// Copy duplicates srcKey to dstKey, preserving metadata.
func (s *Store) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	input := &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(dstKey),
		CopySource:        aws.String(bucket + "/" + url.PathEscape(srcKey)),
		MetadataDirective: s3types.MetadataDirectiveCopy,
	}
	if s.kmsKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
	} else {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}
	if _, err := s.client.CopyObject(ctx, input); err != nil {
		return translate("copy object", bucket, srcKey, err)
	}
	return nil
}

// Delete removes the object. S3 deletes are silent on missing keys, so a
// HEAD runs first to report object.ErrNotFound.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.Head(ctx, bucket, key); err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return translate("delete object", bucket, key, err)
	}
	return nil
}

func (s *Store) applySSE(input *s3.PutObjectInput) {
	if s.kmsKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
		return
	}
	input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
}

func translate(op, bucket, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("s3 %s bucket=%s key=%s: %w", op, bucket, key, object.ErrNotFound)
	}
	return fmt.Errorf("s3 %s bucket=%s key=%s: %w", op, bucket, key, err)
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ object.Backend = (*Store)(nil)
