package questions

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docscan-backend/internal/shared/server/respond"
)

// Handler exposes question generation over HTTP.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches question routes to a /users/:userId group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/:documentId/questions", h.generate)
	rg.GET("/documents/:documentId/questions", h.list)
}

type generateRequest struct {
	NumQuestions int `json:"numQuestions"`
}

// QuestionResponse is the outward-facing question.
type QuestionResponse struct {
	QuestionID string    `json:"questionId"`
	DocumentID string    `json:"documentId"`
	Tags       []string  `json:"tags"`
	Question   string    `json:"question"`
	Choices    []string  `json:"choices"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (h *Handler) generate(c *gin.Context) {
	documentID := c.Param("documentId")
	c.Set("documentId", documentID)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	qs, err := h.Svc.Generate(c.Request.Context(), c.Param("userId"), documentID, req.NumQuestions)
	if err != nil {
		respond.FromError(c, err, "failed to generate questions")
		return
	}
	respond.Created(c, gin.H{"questions": toResponses(qs)})
}

func (h *Handler) list(c *gin.Context) {
	documentID := c.Param("documentId")
	c.Set("documentId", documentID)

	qs, err := h.Svc.List(c.Request.Context(), c.Param("userId"), documentID)
	if err != nil {
		respond.FromError(c, err, "failed to list questions")
		return
	}
	respond.OK(c, gin.H{"questions": toResponses(qs)})
}

func toResponses(qs []Question) []QuestionResponse {
	out := make([]QuestionResponse, 0, len(qs))
	for _, q := range qs {
		tags, choices := q.Tags, q.Choices
		if tags == nil {
			tags = []string{}
		}
		if choices == nil {
			choices = []string{}
		}
		out = append(out, QuestionResponse{
			QuestionID: q.QuestionID,
			DocumentID: q.DocumentID,
			Tags:       tags,
			Question:   q.Question,
			Choices:    choices,
			Answer:     q.Answer,
			CreatedAt:  q.CreatedAt,
		})
	}
	return out
}
