package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"promptfabric/internal/domain"
	"promptfabric/internal/llm"
)

const (
	defaultTopK             = 5
	defaultRetrievalTimeout = 10 * time.Second
)

// ChunkIndex es un indice vectorial que recibe embeddings ya calculados.
type ChunkIndex interface {
	Upsert(ctx context.Context, chunks []domain.ContextChunk) error
	Query(ctx context.Context, embedding []float32, topK int) ([]domain.ContextChunk, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// AutoEmbeddingIndex calcula sus propios embeddings a partir del texto.
type AutoEmbeddingIndex interface {
	ChunkIndex
	UpsertText(ctx context.Context, chunks []domain.ContextChunk) error
	QueryText(ctx context.Context, query string, topK int) ([]domain.ContextChunk, error)
}

// SearchResult nunca falla: Err solo se usa para logging.
type SearchResult struct {
	Chunks []domain.ContextChunk
	Err    error
}

type AddResult struct {
	Added int
	Err   error
}

// ContextRetriever busca y agrega fragmentos de contexto (RAG).
type ContextRetriever struct {
	index    ChunkIndex
	embedder llm.Embedder
	timeout  time.Duration
	logger   *zap.Logger
}

func NewContextRetriever(index ChunkIndex, embedder llm.Embedder, timeout time.Duration, logger *zap.Logger) *ContextRetriever {
	if timeout <= 0 {
		timeout = defaultRetrievalTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextRetriever{
		index:    index,
		embedder: embedder,
		timeout:  timeout,
		logger:   logger,
	}
}

// Search devuelve hasta topK fragmentos ordenados por distancia ascendente.
func (r *ContextRetriever) Search(ctx context.Context, query string, topK int) SearchResult {
	if r == nil || r.index == nil || topK <= 0 || strings.TrimSpace(query) == "" {
		return SearchResult{Chunks: []domain.ContextChunk{}}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	auto, hasAuto := r.index.(AutoEmbeddingIndex)

	var (
		chunks []domain.ContextChunk
		err    error
	)
	switch {
	case r.embedder != nil:
		var vecs [][]float32
		vecs, err = r.embedder.Embed(ctx, []string{query})
		if err == nil && len(vecs) == 1 {
			chunks, err = r.index.Query(ctx, vecs[0], topK)
			break
		}
		if err == nil {
			err = errors.New("embedder returned no vector")
		}
		if !hasAuto {
			break
		}
		r.logger.Warn("query embedding failed, using index embeddings", zap.Error(err))
		chunks, err = auto.QueryText(ctx, query, topK)
	case hasAuto:
		chunks, err = auto.QueryText(ctx, query, topK)
	default:
		return SearchResult{Chunks: []domain.ContextChunk{}}
	}

	if err != nil {
		return SearchResult{Chunks: []domain.ContextChunk{}, Err: &domain.RetrievalError{Op: "search", Err: err}}
	}

	sortByDistance(chunks)
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	if chunks == nil {
		chunks = []domain.ContextChunk{}
	}
	return SearchResult{Chunks: chunks}
}

// AddChunks indexa los fragmentos. Sin embedder ni indice auto-embebido no hace nada.
func (r *ContextRetriever) AddChunks(ctx context.Context, chunks []domain.ContextChunk, useEmbeddings bool) AddResult {
	if r == nil || r.index == nil || len(chunks) == 0 {
		return AddResult{}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prepared := make([]domain.ContextChunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		if strings.TrimSpace(c.ID) == "" {
			c.ID = uuid.NewString()
		}
		prepared = append(prepared, c)
	}
	if len(prepared) == 0 {
		return AddResult{}
	}

	auto, hasAuto := r.index.(AutoEmbeddingIndex)

	if useEmbeddings && r.embedder != nil {
		texts := make([]string, len(prepared))
		for i, c := range prepared {
			texts[i] = c.Content
		}
		vecs, err := r.embedder.Embed(ctx, texts)
		if err == nil && len(vecs) == len(prepared) {
			for i := range prepared {
				prepared[i].Embedding = vecs[i]
			}
			if err := r.index.Upsert(ctx, prepared); err != nil {
				return AddResult{Err: &domain.RetrievalError{Op: "add", Err: err}}
			}
			return AddResult{Added: len(prepared)}
		}
		if err == nil {
			err = errors.New("embedder returned wrong number of vectors")
		}
		if !hasAuto {
			return AddResult{Err: &domain.RetrievalError{Op: "embed", Err: err}}
		}
		r.logger.Warn("chunk embedding failed, using index embeddings", zap.Error(err))
	}

	if !hasAuto {
		return AddResult{}
	}
	if err := auto.UpsertText(ctx, prepared); err != nil {
		return AddResult{Err: &domain.RetrievalError{Op: "add", Err: err}}
	}
	return AddResult{Added: len(prepared)}
}

func (r *ContextRetriever) Stats(ctx context.Context) (domain.IndexStats, error) {
	if r == nil || r.index == nil {
		return domain.IndexStats{Backend: "none"}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	stats, err := r.index.Stats(ctx)
	if err != nil {
		return domain.IndexStats{}, &domain.RetrievalError{Op: "stats", Err: err}
	}
	return stats, nil
}

// Los fragmentos sin distancia quedan al final.
func sortByDistance(chunks []domain.ContextChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		di, dj := chunks[i].Distance, chunks[j].Distance
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
}
