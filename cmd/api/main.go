package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"promptfabric/internal/app"
	"promptfabric/internal/config"
	apihttp "promptfabric/internal/http"
	"promptfabric/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("wire app", zap.Error(err))
	}
	defer a.Close()

	settings := apihttp.Settings{
		LLMProvider:         cfg.LLMProvider,
		GeneratorModel:      cfg.GeneratorModel,
		RefinerModel:        cfg.RefinerModel,
		ValidatorModel:      cfg.ValidatorModel,
		EnablePostProcessor: cfg.EnablePostProcessor,
		MemoryBackend:       cfg.MemoryBackend,
		VectorBackend:       cfg.VectorBackend,
		EmbeddingProvider:   cfg.EmbeddingProvider,
	}
	chatHandler := apihttp.NewChatHandler(logger, a.Orchestrator)
	contextHandler := apihttp.NewContextHandler(logger, a.Retriever, service.NewChunker(service.DefaultChunkSize, service.DefaultChunkOverlap), cfg.RetrievalTopK)
	memoryHandler := apihttp.NewMemoryHandler(logger, a.Memory)
	systemHandler := apihttp.NewSystemHandler(logger, settings, a.Gateway)
	router := apihttp.NewRouter(logger, chatHandler, contextHandler, memoryHandler, systemHandler, a.Limiter, a.Metrics, a.Registry)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
