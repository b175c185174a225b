package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes payload with the given status and tags the response with the
// request ID set by the middleware.
func JSON(c *gin.Context, status int, payload any) {
	if id := c.GetString("requestId"); id != "" && c.Writer.Header().Get("X-Request-Id") == "" {
		c.Writer.Header().Set("X-Request-Id", id)
	}
	c.JSON(status, payload)
}

// OK writes a 200 response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Accepted writes a 202 response. Async OCR uploads return it while the
// document is still processing.
func Accepted(c *gin.Context, payload any) {
	JSON(c, http.StatusAccepted, payload)
}

// Created writes a 201 response.
func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}
