package respond

import (
	"errors"
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/telemetry"
)

var debugErrors atomic.Bool

// SetDebug turns stack traces in error bodies on or off. Never enable it in
// production.
func SetDebug(on bool) { debugErrors.Store(on) }

// ErrorResponse is the standardized error object.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	body := ErrorResponse{Error: message, Code: code, Details: details}
	if debugErrors.Load() {
		body.Stack = string(debug.Stack())
	}
	c.AbortWithStatusJSON(status, body)
}

// FromError maps an error kind to a status code. Internal and remote errors
// use fallback as the message so provider details stay in the logs.
func FromError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, errs.ErrNotFound):
		Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, errs.ErrConflict):
		Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, errs.ErrRemote):
		telemetry.Error("http.remote_error", map[string]any{"request_id": c.GetString("requestId"), "error": err})
		Error(c, http.StatusBadGateway, "upstream_error", fallback, debugDetails(err))
	default:
		telemetry.Error("http.internal_error", map[string]any{"request_id": c.GetString("requestId"), "error": err})
		Error(c, http.StatusInternalServerError, "internal_error", fallback, debugDetails(err))
	}
}

func debugDetails(err error) any {
	if !debugErrors.Load() {
		return nil
	}
	return err.Error()
}
