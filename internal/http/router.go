package http

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"promptfabric/internal/metrics"
	"promptfabric/internal/service"
)

const requestIDHeader = "X-Request-ID"

// NewRouter configura el router de Gin con middlewares y rutas.
// gatherer puede ser nil: en ese caso no se expone /metrics.
func NewRouter(
	logger *zap.Logger,
	chatH *ChatHandler,
	contextH *ContextHandler,
	memoryH *MemoryHandler,
	systemH *SystemHandler,
	limiter service.RateLimiter,
	pipelineMetrics *metrics.Pipeline,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()

	// Middlewares basicos: request id, logging, recovery y JSON content-type.
	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/", systemH.Root)
	r.GET("/settings", systemH.Settings)
	r.GET("/llm/status", systemH.LLMStatus)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/chat", rateLimitMiddleware(limiter, pipelineMetrics, logger), chatH.Chat)
	r.POST("/prompt/refine", chatH.RefinePrompt)

	ctxGroup := r.Group("/context")
	ctxGroup.POST("/search", contextH.Search)
	ctxGroup.POST("/add", contextH.Add)
	ctxGroup.GET("/stats", contextH.Stats)

	memory := r.Group("/memory")
	memory.POST("", memoryH.CreateSession)
	memory.POST("/:session_id", memoryH.CreateSessionWithID)
	memory.GET("/:session_id", memoryH.GetMemory)
	memory.DELETE("/:session_id", memoryH.DeleteSession)

	return r
}

// requestIDMiddleware propaga X-Request-ID o genera uno nuevo.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
// promhttp lo sobreescribe en /metrics.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// rateLimitMiddleware limita por ruta e IP de cliente. Un limiter nil deja pasar todo.
func rateLimitMiddleware(limiter service.RateLimiter, pipelineMetrics *metrics.Pipeline, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := c.FullPath() + "|" + c.ClientIP()
		decision := limiter.Allow(c.Request.Context(), key)
		if decision.Allowed {
			if decision.Remaining >= 0 {
				c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			}
			c.Next()
			return
		}
		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		logger.Warn("chat rate limited", zap.String("key", key), zap.Int("retry_after_s", retryAfter))
		pipelineMetrics.RecordOutcome(metrics.OutcomeLimited)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}
