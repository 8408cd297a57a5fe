package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"promptfabric/internal/config"
	"promptfabric/internal/db"
	"promptfabric/internal/llm"
	"promptfabric/internal/metrics"
	"promptfabric/internal/repository"
	"promptfabric/internal/service"
	"promptfabric/internal/vectorstore"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendPgvector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendMemory   = "memory"
)

// App agrupa los componentes cableados a partir de la configuracion.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Gateway      llm.Gateway
	Embedder     llm.Embedder
	Memory       *service.MemoryStore
	Retriever    *service.ContextRetriever
	Refiner      *service.PromptRefiner
	PostProc     *service.PostProcessor
	Orchestrator *service.Orchestrator
	Limiter      service.RateLimiter
	Metrics      *metrics.Pipeline
	Registry     *prometheus.Registry

	closers []func()
}

// New construye el grafo de dependencias. Redis es opcional: si no responde
// se usan el limiter y la cache en memoria.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	var pool *pgxpool.Pool
	needsPostgres := strings.EqualFold(cfg.MemoryBackend, BackendPostgres) || strings.EqualFold(cfg.VectorBackend, BackendPgvector)
	if needsPostgres {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for %s/%s backends", cfg.MemoryBackend, cfg.VectorBackend)
		}
		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DatabaseURL, logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		p, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		pool = p
		a.closers = append(a.closers, pool.Close)
	}

	sessions, messages, err := a.memoryRepositories(ctx, pool)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Memory = service.NewMemoryStore(sessions, messages, logger)

	a.Gateway = llm.NewGateway(cfg.LLMProvider, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.GeneratorModel, cfg.LLMTimeout, logger)
	a.Embedder = llm.NewEmbedder(cfg.EmbeddingProvider, embeddingBaseURL(cfg), cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.LLMTimeout)

	index, err := a.chunkIndex(ctx, pool)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Retriever = service.NewContextRetriever(index, a.Embedder, cfg.RetrievalTimeout, logger)

	redisClient := a.redisClient(ctx)
	var cache service.RefineCache
	if redisClient != nil {
		a.Limiter = service.NewRedisChatRateLimiter(redisClient, time.Minute, cfg.ChatRateLimitPerMinute)
		cache = service.NewRedisRefineCache(redisClient, cfg.RefineCacheTTL)
	} else {
		a.Limiter = service.NewMemoryChatRateLimiter(cfg.ChatRateLimitPerMinute)
		cache = service.NewMemoryRefineCache(cfg.RefineCacheTTL)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewPipeline(a.Registry)

	a.Refiner = service.NewPromptRefiner(a.Gateway, cfg.RefinerModel, cfg.RefinerSystemPrompt, cache, logger)
	a.PostProc = service.NewPostProcessor(a.Gateway, cfg.EnablePostProcessor, cfg.ValidatorModel, cfg.GeneratorModel, logger)
	a.Orchestrator = service.NewOrchestrator(a.Gateway, a.Retriever, a.Refiner, a.Memory, a.PostProc, service.OrchestratorConfig{
		GeneratorModel: cfg.GeneratorModel,
		SystemPrompt:   cfg.GeneratorSystemPrompt,
		TopK:           cfg.RetrievalTopK,
	}, logger, a.Metrics)

	logger.Info("app wired",
		zap.String("memory_backend", cfg.MemoryBackend),
		zap.String("vector_backend", cfg.VectorBackend),
		zap.String("llm_provider", a.Gateway.Name()),
		zap.Bool("redis", redisClient != nil),
	)
	return a, nil
}

// Close libera conexiones en orden inverso de apertura.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) memoryRepositories(ctx context.Context, pool *pgxpool.Pool) (repository.SessionRepository, repository.MessageRepository, error) {
	switch strings.ToLower(a.Config.MemoryBackend) {
	case BackendPostgres:
		return repository.NewPgSessionRepository(pool), repository.NewPgMessageRepository(pool), nil
	case BackendSQLite, "":
		sqlDB, err := db.OpenSQLite(ctx, a.Config.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { closeSQL(sqlDB, a.Logger) })
		return repository.NewSQLiteSessionRepository(sqlDB), repository.NewSQLiteMessageRepository(sqlDB), nil
	default:
		return nil, nil, fmt.Errorf("unknown memory backend %q", a.Config.MemoryBackend)
	}
}

func (a *App) chunkIndex(ctx context.Context, pool *pgxpool.Pool) (service.ChunkIndex, error) {
	cfg := a.Config
	switch strings.ToLower(cfg.VectorBackend) {
	case BackendPgvector:
		repo := repository.NewPgChunkRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure chunk schema: %w", err)
		}
		return repo, nil
	case BackendQdrant:
		store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Address:    cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dimension:  cfg.EmbeddingDimension,
			Timeout:    cfg.RetrievalTimeout,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureCollection(ctx); err != nil {
			// Qdrant puede levantar despues; el retriever degrada a resultados vacios.
			a.Logger.Warn("qdrant collection not ready", zap.Error(err))
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	case BackendMemory, "":
		return vectorstore.NewMemoryIndex(cfg.EmbeddingDimension), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func (a *App) redisClient(ctx context.Context) *redis.Client {
	if a.Config.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		a.Logger.Warn("redis ping failed", zap.Error(err))
		_ = client.Close()
		return nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return client
}

func embeddingBaseURL(cfg *config.Config) string {
	if cfg.EmbeddingBaseURL != "" {
		return cfg.EmbeddingBaseURL
	}
	return cfg.LLMBaseURL
}

func closeSQL(sqlDB *sql.DB, logger *zap.Logger) {
	if err := sqlDB.Close(); err != nil {
		logger.Warn("close sqlite", zap.Error(err))
	}
}
