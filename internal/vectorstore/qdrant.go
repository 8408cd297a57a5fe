package vectorstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"promptfabric/internal/domain"
)

const (
	payloadContent = "content"
	payloadChunkID = "chunk_id"
)

// QdrantConfig agrupa la configuracion del indice Qdrant.
type QdrantConfig struct {
	Address    string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// QdrantStore es el indice de contexto sobre la API REST de Qdrant (distancia coseno).
type QdrantStore struct {
	client     *http.Client
	apiBase    string
	apiKey     string
	collection string
	dimension  int
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	address := cfg.Address
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	if cfg.Collection == "" {
		cfg.Collection = "context"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &QdrantStore{
		client:     &http.Client{Timeout: cfg.Timeout},
		apiBase:    strings.TrimRight(address, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}, nil
}

// EnsureCollection crea la coleccion si no existe.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	var exists struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := s.call(ctx, http.MethodGet, "/exists", nil, &exists); err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists.Result.Exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if err := s.call(ctx, http.MethodPut, "", body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, chunks []domain.ContextChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s without embedding", c.ID)
		}
		payload := map[string]any{
			payloadContent: c.Content,
			payloadChunkID: c.ID,
		}
		for k, v := range c.Metadata {
			if k == payloadContent || k == payloadChunkID {
				continue
			}
			payload[k] = v
		}
		points = append(points, map[string]any{
			"id":      pointID(c.ID),
			"vector":  c.Embedding,
			"payload": payload,
		})
	}
	if err := s.call(ctx, http.MethodPut, "/points?wait=true", map[string]any{"points": points}, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, embedding []float32, topK int) ([]domain.ContextChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector":       embedding,
		"limit":        topK,
		"with_payload": true,
	}
	var result struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.call(ctx, http.MethodPost, "/points/search", body, &result); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	chunks := make([]domain.ContextChunk, 0, len(result.Result))
	for _, r := range result.Result {
		c := domain.ContextChunk{Metadata: make(map[string]any)}
		if v, ok := r.Payload[payloadContent].(string); ok {
			c.Content = v
		}
		if v, ok := r.Payload[payloadChunkID].(string); ok {
			c.ID = v
		} else {
			c.ID = fmt.Sprint(r.ID)
		}
		for k, v := range r.Payload {
			if k != payloadContent && k != payloadChunkID {
				c.Metadata[k] = v
			}
		}
		d := 1 - r.Score
		c.Distance = &d
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (s *QdrantStore) Stats(ctx context.Context) (domain.IndexStats, error) {
	var result struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.call(ctx, http.MethodPost, "/points/count", map[string]any{"exact": true}, &result); err != nil {
		return domain.IndexStats{}, fmt.Errorf("count points: %w", err)
	}
	return domain.IndexStats{
		TotalChunks: result.Result.Count,
		Backend:     "qdrant",
		Location:    s.apiBase + "/collections/" + s.collection,
	}, nil
}

func (s *QdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *QdrantStore) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	url := fmt.Sprintf("%s/collections/%s%s", s.apiBase, s.collection, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status=%d, body=%s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// pointID traduce ids arbitrarios a un UUID estable; Qdrant solo acepta UUID o enteros.
func pointID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}
