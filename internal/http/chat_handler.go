package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"promptfabric/internal/domain"
	"promptfabric/internal/service"
)

// ChatHandler expone el pipeline de orquestacion.
type ChatHandler struct {
	logger       *zap.Logger
	orchestrator *service.Orchestrator
}

func NewChatHandler(logger *zap.Logger, orchestrator *service.Orchestrator) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		logger:       logger,
		orchestrator: orchestrator,
	}
}

// Chat maneja POST /chat.
// Un fallo de generacion responde 200 con error=true; solo los errores de almacenamiento son 500.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req struct {
		Message     string   `json:"message" binding:"required"`
		SessionID   string   `json:"session_id"`
		Model       string   `json:"model"`
		Temperature *float64 `json:"temperature"`
		MaxTokens   int      `json:"max_tokens"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if (req.Temperature != nil && *req.Temperature < 0) || req.MaxTokens < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "temperature and max_tokens must be non-negative"})
		return
	}

	result, err := h.orchestrator.Process(c.Request.Context(), service.ProcessRequest{
		Message:     req.Message,
		SessionID:   req.SessionID,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
			return
		}
		h.logger.Error("chat pipeline failed", zap.Error(err), zap.String("session_id", req.SessionID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process chat"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RefinePrompt maneja POST /prompt/refine. Si el refinador falla devuelve el prompt original.
func (h *ChatHandler) RefinePrompt(c *gin.Context) {
	var req struct {
		Prompt  string `json:"prompt" binding:"required"`
		Context string `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refine request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	refined := h.orchestrator.RefinePrompt(c.Request.Context(), req.Prompt, req.Context)
	c.JSON(http.StatusOK, gin.H{
		"refined_prompt":  refined,
		"original_prompt": req.Prompt,
	})
}
