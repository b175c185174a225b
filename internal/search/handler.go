package search

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docscan-backend/internal/shared/server/respond"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Handler serves full-text search over the caller's documents.
type Handler struct {
	Index Indexer
}

// NewHandler constructs a Handler.
func NewHandler(index Indexer) *Handler {
	return &Handler{Index: index}
}

// RegisterRoutes attaches GET /search to a /users/:userId group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.search)
}

func (h *Handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "q is required", nil)
		return
	}
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxLimit)
	}

	hits, err := h.Index.Search(c.Request.Context(), c.Param("userId"), query, limit)
	if errors.Is(err, ErrDisabled) {
		respond.Error(c, http.StatusServiceUnavailable, "search_disabled", "search is not configured", nil)
		return
	}
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "upstream_error", "search failed", nil)
		return
	}
	if hits == nil {
		hits = []Hit{}
	}
	respond.OK(c, gin.H{"hits": hits})
}
