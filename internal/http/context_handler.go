package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"promptfabric/internal/domain"
	"promptfabric/internal/service"
)

// ContextHandler expone el indice de contexto (RAG).
type ContextHandler struct {
	logger    *zap.Logger
	retriever *service.ContextRetriever
	chunker   service.Chunker
	topK      int
}

func NewContextHandler(logger *zap.Logger, retriever *service.ContextRetriever, chunker service.Chunker, topK int) *ContextHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topK <= 0 {
		topK = 5
	}
	return &ContextHandler{
		logger:    logger,
		retriever: retriever,
		chunker:   chunker,
		topK:      topK,
	}
}

// Search maneja POST /context/search. Un fallo del indice responde resultados vacios.
func (h *ContextHandler) Search(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
		TopK  *int   `json:"top_k"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid context search request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	topK := h.topK
	if req.TopK != nil && *req.TopK >= 0 {
		topK = *req.TopK
	}

	res := h.retriever.Search(c.Request.Context(), req.Query, topK)
	if res.Err != nil {
		h.logger.Warn("context search failed", zap.Error(res.Err))
	}
	c.JSON(http.StatusOK, gin.H{
		"results": res.Chunks,
		"query":   req.Query,
	})
}

// Add maneja POST /context/add. Acepta fragmentos ya armados o texto crudo que se parte con el Chunker.
func (h *ContextHandler) Add(c *gin.Context) {
	var req struct {
		Chunks []struct {
			ID       string         `json:"id"`
			Content  string         `json:"content"`
			Metadata map[string]any `json:"metadata"`
		} `json:"chunks"`
		Text          string `json:"text"`
		Source        string `json:"source"`
		UseEmbeddings *bool  `json:"use_embeddings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid context add request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	chunks := make([]domain.ContextChunk, 0, len(req.Chunks))
	for _, ch := range req.Chunks {
		chunks = append(chunks, domain.ContextChunk{ID: ch.ID, Content: ch.Content, Metadata: ch.Metadata})
	}
	if strings.TrimSpace(req.Text) != "" {
		source := req.Source
		if source == "" {
			source = "api"
		}
		chunks = append(chunks, h.chunker.ChunkDocument(req.Text, source)...)
	}
	if len(chunks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunks or text required"})
		return
	}

	useEmbeddings := true
	if req.UseEmbeddings != nil {
		useEmbeddings = *req.UseEmbeddings
	}

	res := h.retriever.AddChunks(c.Request.Context(), chunks, useEmbeddings)
	if res.Err != nil {
		h.logger.Error("context add failed", zap.Error(res.Err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add context"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": res.Added})
}

// Stats maneja GET /context/stats.
func (h *ContextHandler) Stats(c *gin.Context) {
	stats, err := h.retriever.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("context stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read context stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
