package uploads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"docscan-backend/internal/shared/storage/object"
)

func testClient() *s3.Client {
	return s3.NewFromConfig(aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	})
}

func TestPresignSignedHeadersExcludeContentLength(t *testing.T) {
	presigner := s3.NewPresignClient(testClient())

	input := presignInput("bucket", "temp/user-1/abc_scan.pdf", "application/pdf", "scan.pdf")
	out, err := presigner.PresignPutObject(context.Background(), input)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}

	parsed, err := url.Parse(out.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	signed := parsed.Query().Get("X-Amz-SignedHeaders")
	if signed == "" {
		t.Fatalf("expected X-Amz-SignedHeaders")
	}
	if strings.Contains(signed, "content-length") {
		t.Fatalf("unexpected content-length in signed headers: %s", signed)
	}
	if !strings.Contains(signed, "host") {
		t.Fatalf("expected host in signed headers: %s", signed)
	}
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1/users/:userId"))
	return r
}

func TestPresignTargetsTempNamespace(t *testing.T) {
	r := newRouter(NewHandler(testClient(), "docs", 0))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/user-1/uploads/presign",
		strings.NewReader(`{"fileName":"Scan 1.pdf","contentType":"application/pdf","sizeBytes":1024}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp presignResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if owner, ok := object.UserFromTempKey(resp.Key); !ok || owner != "user-1" {
		t.Fatalf("expected temp key owned by user-1, got %q", resp.Key)
	}
	if resp.ExpiresInSeconds != int64(defaultExpires.Seconds()) {
		t.Fatalf("unexpected expiry %d", resp.ExpiresInSeconds)
	}
	if resp.UploadURL == "" {
		t.Fatalf("expected upload url")
	}
}

func TestPresignValidation(t *testing.T) {
	r := newRouter(NewHandler(testClient(), "docs", 0))

	cases := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"contentType":"application/pdf","sizeBytes":10}`},
		{name: "bad type", body: `{"fileName":"a.docx","contentType":"application/msword","sizeBytes":10}`},
		{name: "too large", body: `{"fileName":"a.pdf","contentType":"application/pdf","sizeBytes":104857600}`},
		{name: "zero size", body: `{"fileName":"a.pdf","contentType":"application/pdf"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/user-1/uploads/presign", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}
