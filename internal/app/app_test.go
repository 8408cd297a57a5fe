package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"promptfabric/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		MemoryBackend:          BackendSQLite,
		SQLitePath:             ":memory:",
		LLMProvider:            "lmstudio",
		LLMBaseURL:             "http://127.0.0.1:1/v1",
		LLMTimeout:             time.Second,
		GeneratorModel:         "gen",
		RefinerModel:           "ref",
		ValidatorModel:         "val",
		VectorBackend:          BackendMemory,
		EmbeddingProvider:      "hash",
		EmbeddingDimension:     64,
		RetrievalTopK:          3,
		RetrievalTimeout:       time.Second,
		RefineCacheTTL:         time.Minute,
		ChatRateLimitPerMinute: 10,
	}
}

func TestNewWiresInProcessBackends(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer a.Close()

	if a.Orchestrator == nil || a.Memory == nil || a.Retriever == nil || a.Limiter == nil || a.Registry == nil {
		t.Fatalf("expected all components wired: %+v", a)
	}
	if a.Gateway.Name() != "lmstudio" {
		t.Fatalf("expected lmstudio gateway, got %q", a.Gateway.Name())
	}

	id, err := a.Memory.CreateSession(ctx, "wired")
	if err != nil || id != "wired" {
		t.Fatalf("expected sqlite memory usable, got id=%q err=%v", id, err)
	}
	stats, err := a.Retriever.Stats(ctx)
	if err != nil || stats.Backend != "memory" {
		t.Fatalf("unexpected index stats %+v err=%v", stats, err)
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig()
	cfg.VectorBackend = "faiss"
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "faiss") {
		t.Fatalf("expected unknown vector backend error, got %v", err)
	}

	cfg = testConfig()
	cfg.MemoryBackend = "mongo"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected unknown memory backend error")
	}
}

func TestNewPostgresRequiresDatabaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.MemoryBackend = BackendPostgres
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}
