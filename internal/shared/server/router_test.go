package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"docscan-backend/internal/services/health"
	"docscan-backend/internal/shared/config"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.Param("userId")) })
	rg.POST("/ping", func(c *gin.Context) { c.Status(http.StatusCreated) })
}

func testConfig() config.Config {
	return config.Config{
		Env:              "dev",
		AuthMode:         "header",
		CORSAllowOrigin:  []string{"http://localhost:5173"},
		UploadRatePerSec: 0.01,
		UploadRateBurst:  1,
		ReadRatePerSec:   100,
		ReadRateBurst:    100,
	}
}

func do(r http.Handler, method, target, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthIsPublic(t *testing.T) {
	r := NewRouter(RouterDeps{Config: testConfig()})
	if rec := do(r, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/v1/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
}

func TestRouterReadyReflectsProbes(t *testing.T) {
	h := health.NewService()
	h.Register("records", func(ctx context.Context) error { return errors.New("down") })
	r := NewRouter(RouterDeps{Config: testConfig(), Health: h})

	if rec := do(r, http.MethodGet, "/api/v1/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRouterMe(t *testing.T) {
	r := NewRouter(RouterDeps{Config: testConfig()})

	if rec := do(r, http.MethodGet, "/api/v1/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
	rec := do(r, http.MethodGet, "/api/v1/me", "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["userId"] != "user-1" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRouterUserRoutesRequireOwner(t *testing.T) {
	r := NewRouter(RouterDeps{Config: testConfig(), DocumentHandler: pingRoutes{}})

	if rec := do(r, http.MethodGet, "/api/v1/users/user-1/ping", "user-1"); rec.Code != http.StatusOK || rec.Body.String() != "user-1" {
		t.Fatalf("expected owner access, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodGet, "/api/v1/users/user-1/ping", "user-2"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", rec.Code)
	}
}

func TestRouterRateLimitsWrites(t *testing.T) {
	r := NewRouter(RouterDeps{Config: testConfig(), DocumentHandler: pingRoutes{}})

	if rec := do(r, http.MethodPost, "/api/v1/users/user-1/ping", "user-1"); rec.Code != http.StatusCreated {
		t.Fatalf("first write: expected 201, got %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/v1/users/user-1/ping", "user-1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: expected 429, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/v1/users/user-1/ping", "user-1"); rec.Code != http.StatusOK {
		t.Fatalf("reads use their own bucket, got %d", rec.Code)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
