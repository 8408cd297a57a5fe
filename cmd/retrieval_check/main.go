package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"promptfabric/internal/config"
	"promptfabric/internal/domain"
	"promptfabric/internal/llm"
	"promptfabric/internal/service"
	"promptfabric/internal/vectorstore"
)

type Scenario struct {
	Name        string
	Documents   []string
	Query       string
	Expected    string
	ShouldMatch bool
}

// retrieval_check siembra documentos en un indice limpio y verifica que la
// busqueda devuelva (o no) el documento esperado en primer lugar.
func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	embedder := llm.NewEmbedder(cfg.EmbeddingProvider, cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.LLMTimeout)

	scenarios := []Scenario{
		{
			Name:        "Coincidencia directa",
			Documents:   []string{"Postgres stores the conversation sessions", "Redis caches refined prompts"},
			Query:       "where are conversation sessions stored",
			Expected:    "Postgres stores the conversation sessions",
			ShouldMatch: true,
		},
		{
			Name:        "Varios candidatos",
			Documents:   []string{"The refiner model rewrites prompts", "The validator model checks responses", "Qdrant holds the context vectors"},
			Query:       "which model checks the responses",
			Expected:    "The validator model checks responses",
			ShouldMatch: true,
		},
		{
			Name:        "Control de falso positivo",
			Documents:   []string{"Bananas are rich in potassium"},
			Query:       "how does the rate limiter work",
			Expected:    "Bananas are rich in potassium",
			ShouldMatch: false,
		},
	}

	passed := 0
	total := len(scenarios)
	const maxDistance = 0.8

	for _, sc := range scenarios {
		fmt.Printf("=== Ejecutando: %s ===\n", sc.Name)

		// Indice en memoria por escenario para no mezclar documentos.
		retriever := service.NewContextRetriever(vectorstore.NewMemoryIndex(cfg.EmbeddingDimension), embedder, cfg.RetrievalTimeout, nil)

		chunks := make([]domain.ContextChunk, 0, len(sc.Documents))
		for _, doc := range sc.Documents {
			chunks = append(chunks, domain.ContextChunk{ID: uuid.NewString(), Content: doc})
		}
		if res := retriever.AddChunks(ctx, chunks, true); res.Err != nil {
			fmt.Printf("❌ FAIL [%s] add chunks: %v\n\n", sc.Name, res.Err)
			continue
		}

		runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		res := retriever.Search(runCtx, sc.Query, 1)
		cancel()
		if res.Err != nil {
			fmt.Printf("❌ FAIL [%s] search: %v\n\n", sc.Name, res.Err)
			continue
		}

		matched := false
		if len(res.Chunks) == 1 {
			top := res.Chunks[0]
			fmt.Printf("--- Top: %q", top.Content)
			if top.Distance != nil {
				fmt.Printf(" (distancia %.3f)", *top.Distance)
			}
			fmt.Println()
			matched = top.Content == sc.Expected && top.Distance != nil && *top.Distance < maxDistance
		}

		if matched == sc.ShouldMatch {
			fmt.Printf("✅ PASS [%s] esperado=%t matched=%t\n\n", sc.Name, sc.ShouldMatch, matched)
			passed++
		} else {
			fmt.Printf("❌ FAIL [%s] esperado=%t matched=%t\n\n", sc.Name, sc.ShouldMatch, matched)
		}
	}

	fmt.Printf("Tests: %d/%d pasaron\n", passed, total)
	if passed != total {
		os.Exit(1)
	}
	os.Exit(0)
}
