package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"promptfabric/internal/domain"
	"promptfabric/internal/llm"
)

// MemoryIndex es un indice en proceso con busqueda coseno por fuerza bruta.
// Si un chunk llega sin embedding lo calcula con su HashEmbedder interno.
type MemoryIndex struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	seq      int64
	embedder *llm.HashEmbedder
}

type memoryEntry struct {
	chunk domain.ContextChunk
	seq   int64
}

func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		entries:  make(map[string]memoryEntry),
		embedder: llm.NewHashEmbedder(dim),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunks []domain.ContextChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		stored := c
		stored.Distance = nil
		if c.Metadata != nil {
			stored.Metadata = make(map[string]any, len(c.Metadata))
			for k, v := range c.Metadata {
				stored.Metadata[k] = v
			}
		}
		seq := m.seq
		if prev, ok := m.entries[c.ID]; ok {
			seq = prev.seq
		} else {
			m.seq++
		}
		m.entries[c.ID] = memoryEntry{chunk: stored, seq: seq}
	}
	return nil
}

// UpsertText indexa chunks calculando el embedding internamente.
func (m *MemoryIndex) UpsertText(ctx context.Context, chunks []domain.ContextChunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	withVec := make([]domain.ContextChunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = vecs[i]
		withVec[i] = c
	}
	return m.Upsert(ctx, withVec)
}

func (m *MemoryIndex) Query(ctx context.Context, embedding []float32, topK int) ([]domain.ContextChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry    memoryEntry
		distance float64
	}
	results := make([]scored, 0, len(m.entries))
	for _, e := range m.entries {
		if len(e.chunk.Embedding) != len(embedding) {
			continue
		}
		results = append(results, scored{entry: e, distance: 1 - cosineSimilarity(embedding, e.chunk.Embedding)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].distance != results[j].distance {
			return results[i].distance < results[j].distance
		}
		return results[i].entry.seq < results[j].entry.seq
	})

	if topK > len(results) {
		topK = len(results)
	}
	out := make([]domain.ContextChunk, topK)
	for i := 0; i < topK; i++ {
		c := results[i].entry.chunk
		d := results[i].distance
		c.Distance = &d
		out[i] = c
	}
	return out, nil
}

// QueryText busca usando el embedder interno sobre el texto de consulta.
func (m *MemoryIndex) QueryText(ctx context.Context, query string, topK int) ([]domain.ContextChunk, error) {
	vecs, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return m.Query(ctx, vecs[0], topK)
}

func (m *MemoryIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.IndexStats{TotalChunks: len(m.entries), Backend: "memory", Location: "in-process"}, nil
}

func (m *MemoryIndex) Close() error { return nil }

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
