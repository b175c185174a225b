// Package uploads hands browsers a presigned PUT URL into the caller's temp
// namespace. The object-created event then drives the normal upload pipeline.
package uploads

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"docscan-backend/internal/shared/server/respond"
	"docscan-backend/internal/shared/storage/object"
	"docscan-backend/internal/shared/telemetry"
)

const (
	maxUploadBytes = 50 << 20
	defaultExpires = 15 * time.Minute
)

var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/tiff":      {},
}

type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Handler issues presigned upload URLs.
type Handler struct {
	presign presigner
	bucket  string
	expires time.Duration
}

// NewHandler builds a handler over an S3 client.
func NewHandler(client *s3.Client, bucket string, expires time.Duration) *Handler {
	if expires <= 0 {
		expires = defaultExpires
	}
	return &Handler{presign: s3.NewPresignClient(client), bucket: bucket, expires: expires}
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string            `json:"uploadUrl"`
	Key              string            `json:"key"`
	Headers          map[string]string `json:"headers"`
	ExpiresInSeconds int64             `json:"expiresInSeconds"`
}

// RegisterRoutes attaches the presign route to a /users/:userId group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presignUpload)
}

func (h *Handler) presignUpload(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}

	userID := c.Param("userId")
	key, err := object.TempKey(userID, req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}

	out, err := h.presign.PresignPutObject(c.Request.Context(), presignInput(h.bucket, key, req.ContentType, req.FileName), func(opts *s3.PresignOptions) {
		opts.Expires = h.expires
	})
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"error":        err,
			"bucket":       h.bucket,
			"key":          key,
			"content_type": req.ContentType,
			"size_bytes":   req.SizeBytes,
			"request_id":   c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	headers := make(map[string]string, len(out.SignedHeader))
	for name, values := range out.SignedHeader {
		if strings.EqualFold(name, "host") || len(values) == 0 {
			continue
		}
		headers[name] = values[0]
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        out.URL,
		Key:              key,
		Headers:          headers,
		ExpiresInSeconds: int64(h.expires.Seconds()),
	})
}

func presignInput(bucket, key, contentType, originalName string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{object.MetaOriginalFilename: originalName},
	}
}
