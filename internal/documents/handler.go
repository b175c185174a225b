package documents

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docscan-backend/internal/shared/server/respond"
)

const maxUploadSize = 50 << 20 // 50MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to a /users/:userId group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:documentId", h.get)
	rg.GET("/documents/:documentId/text", h.text)
	rg.POST("/documents/:documentId/finalize", h.finalize)
	rg.DELETE("/documents/:documentId", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	userID := c.Param("userId")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}

	res, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, contentType, body)
	if err != nil {
		respond.FromError(c, err, "failed to process upload")
		return
	}
	c.Set("documentId", res.Document.DocumentID)
	c.Set("statusTransition", "-> "+string(res.Document.Status))

	if res.Method == MethodAsync && !res.Duplicate {
		respond.Accepted(c, toUploadResponse(res))
		return
	}
	respond.Created(c, toUploadResponse(res))
}

func (h *Handler) list(c *gin.Context) {
	docs, err := h.Svc.List(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respond.FromError(c, err, "failed to list documents")
		return
	}
	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.OK(c, gin.H{"documents": resp})
}

func (h *Handler) get(c *gin.Context) {
	documentID := c.Param("documentId")
	c.Set("documentId", documentID)

	doc, et, err := h.Svc.Get(c.Request.Context(), c.Param("userId"), documentID)
	if err != nil {
		respond.FromError(c, err, "failed to fetch document")
		return
	}
	resp := DocumentDetailResponse{Document: toResponse(doc)}
	if et != nil {
		tr := toTextResponse(*et)
		resp.ExtractedText = &tr
	}
	respond.OK(c, resp)
}

func (h *Handler) text(c *gin.Context) {
	documentID := c.Param("documentId")
	c.Set("documentId", documentID)

	body, err := h.Svc.Text(c.Request.Context(), c.Param("userId"), documentID)
	if err != nil {
		respond.FromError(c, err, "failed to fetch text")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}

func (h *Handler) finalize(c *gin.Context) {
	documentID := c.Param("documentId")
	c.Set("documentId", documentID)

	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	doc, et, err := h.Svc.Finalize(c.Request.Context(), c.Param("userId"), documentID, FinalizeInput{
		Text:     req.Text,
		FilePath: req.FilePath,
		Tags:     req.Tags,
	})
	if err != nil {
		respond.FromError(c, err, "failed to finalize document")
		return
	}
	c.Set("statusTransition", "-> verified")
	respond.OK(c, FinalizeResponse{Document: toResponse(doc), ExtractedText: toTextResponse(et)})
}

func (h *Handler) delete(c *gin.Context) {
	documentID := c.Param("documentId")
	c.Set("documentId", documentID)

	if err := h.Svc.Delete(c.Request.Context(), c.Param("userId"), documentID); err != nil {
		respond.FromError(c, err, "failed to delete document")
		return
	}
	respond.OK(c, gin.H{"deleted": true, "documentId": documentID})
}
