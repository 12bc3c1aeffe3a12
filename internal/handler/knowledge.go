package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/rca-worker/internal/model"
	"github.com/kube-rca/rca-worker/internal/service"
)

type knowledgeService interface {
	Embed(ctx context.Context, req model.EmbeddingRequest) (*model.EmbeddingResponse, error)
	Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error)
	Ingest(ctx context.Context, req model.IngestRequest) (*model.IngestResponse, error)
}

// KnowledgeHandler - RAG 지식 인덱스 관리
type KnowledgeHandler struct {
	svc knowledgeService
}

func NewKnowledgeHandler(svc knowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// CreateEmbedding godoc
// @Summary Embed and store a knowledge entry
// @Tags knowledge
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.EmbeddingRequest true "Knowledge text"
// @Success 200 {object} model.EmbeddingResponse
// @Failure 400,500,503 {object} model.ErrorResponse
// @Router /api/v1/embed [post]
func (h *KnowledgeHandler) CreateEmbedding(c *gin.Context) {
	var req model.EmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.Embed(c.Request.Context(), req)
	if err != nil {
		writeKnowledgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Search godoc
// @Summary Similarity search over the knowledge index
// @Tags knowledge
// @Produce json
// @Security BearerAuth
// @Param query query string true "Query text"
// @Param top_k query int false "Max results (1-50)" default(5)
// @Success 200 {object} model.SearchResponse
// @Failure 400,500,503 {object} model.ErrorResponse
// @Router /api/v1/search [get]
func (h *KnowledgeHandler) Search(c *gin.Context) {
	query := c.Query("query")
	topK := 0
	if raw := c.Query("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid top_k"})
			return
		}
		topK = n
	}

	results, err := h.svc.Search(c.Request.Context(), query, topK)
	if err != nil {
		writeKnowledgeError(c, err)
		return
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	c.JSON(http.StatusOK, model.SearchResponse{Status: "ok", Query: query, Results: results, Total: len(results)})
}

// Ingest godoc
// @Summary Chunk a document and store each chunk
// @Tags knowledge
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.IngestRequest true "Document"
// @Success 200 {object} model.IngestResponse
// @Failure 400,500 {object} model.ErrorResponse
// @Router /api/v1/ingest [post]
func (h *KnowledgeHandler) Ingest(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.Ingest(c.Request.Context(), req)
	if err != nil {
		writeKnowledgeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func writeKnowledgeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrEmbeddingUnavailable):
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
	}
}
