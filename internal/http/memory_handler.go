package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"promptfabric/internal/service"
)

// MemoryHandler expone las sesiones de la memoria conversacional.
type MemoryHandler struct {
	logger *zap.Logger
	memory *service.MemoryStore
}

func NewMemoryHandler(logger *zap.Logger, memory *service.MemoryStore) *MemoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryHandler{logger: logger, memory: memory}
}

// CreateSession maneja POST /memory.
func (h *MemoryHandler) CreateSession(c *gin.Context) {
	h.createSession(c, "")
}

// CreateSessionWithID maneja POST /memory/:session_id. Es idempotente.
func (h *MemoryHandler) CreateSessionWithID(c *gin.Context) {
	h.createSession(c, c.Param("session_id"))
}

func (h *MemoryHandler) createSession(c *gin.Context, id string) {
	sessionID, err := h.memory.CreateSession(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("create session failed", zap.Error(err), zap.String("session_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

// GetMemory maneja GET /memory/:session_id. Una sesion desconocida devuelve lista vacia.
func (h *MemoryHandler) GetMemory(c *gin.Context) {
	sessionID := c.Param("session_id")
	snapshot, err := h.memory.GetMemory(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("get memory failed", zap.Error(err), zap.String("session_id", sessionID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read memory"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// DeleteSession maneja DELETE /memory/:session_id.
func (h *MemoryHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.memory.DeleteSession(c.Request.Context(), sessionID); err != nil {
		h.logger.Error("delete session failed", zap.Error(err), zap.String("session_id", sessionID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "session_id": sessionID})
}
