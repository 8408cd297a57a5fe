package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"promptfabric/internal/llm"
)

const statusCheckTimeout = 2 * time.Second

// Settings es la vista de solo lectura de la configuracion activa.
type Settings struct {
	LLMProvider         string `json:"llm_provider"`
	GeneratorModel      string `json:"generator_model"`
	RefinerModel        string `json:"refiner_model"`
	ValidatorModel      string `json:"validator_model"`
	EnablePostProcessor bool   `json:"enable_post_processor"`
	MemoryBackend       string `json:"memory_backend"`
	VectorBackend       string `json:"vector_backend"`
	EmbeddingProvider   string `json:"embedding_provider"`
}

type providerStatus struct {
	Running bool     `json:"running"`
	Models  []string `json:"models,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// SystemHandler agrupa health, settings y estado de los backends LLM.
type SystemHandler struct {
	logger   *zap.Logger
	settings Settings
	gateways []llm.Gateway
}

func NewSystemHandler(logger *zap.Logger, settings Settings, gateways ...llm.Gateway) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{logger: logger, settings: settings, gateways: gateways}
}

// Root maneja GET /.
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "PromptFabric"})
}

// Settings maneja GET /settings.
func (h *SystemHandler) Settings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings)
}

// LLMStatus maneja GET /llm/status. Cada backend se sondea una vez con un timeout corto.
func (h *SystemHandler) LLMStatus(c *gin.Context) {
	out := make(map[string]providerStatus, len(h.gateways))
	for _, gw := range h.gateways {
		if gw == nil {
			continue
		}
		out[gw.Name()] = h.checkBackend(c.Request.Context(), gw)
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

func (h *SystemHandler) checkBackend(ctx context.Context, gw llm.Gateway) providerStatus {
	ctx, cancel := context.WithTimeout(ctx, statusCheckTimeout)
	defer cancel()

	// Listar modelos ya prueba que el backend responde.
	models, err := gw.ListModels(ctx)
	if err != nil {
		h.logger.Debug("llm backend unreachable", zap.String("provider", gw.Name()), zap.Error(err))
		return providerStatus{Error: err.Error()}
	}
	return providerStatus{Running: true, Models: models}
}
