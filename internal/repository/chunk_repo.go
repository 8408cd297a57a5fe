package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"promptfabric/internal/domain"
)

const chunkTable = "context_chunks"

// PgChunkRepository es el indice de contexto sobre pgvector (distancia coseno).
type PgChunkRepository struct {
	pool *pgxpool.Pool
}

func NewPgChunkRepository(pool *pgxpool.Pool) *PgChunkRepository {
	return &PgChunkRepository{pool: pool}
}

// EnsureSchema crea la extension y la tabla si las migraciones no corrieron.
func (r *PgChunkRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS context_chunks (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure chunk schema: %w", err)
		}
	}
	return nil
}

func (r *PgChunkRepository) Upsert(ctx context.Context, chunks []domain.ContextChunk) error {
	const query = `
		INSERT INTO context_chunks (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
	`
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return errors.New("chunk without embedding")
		}
		metadata, err := encodeChunkMetadata(c.Metadata)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, query, c.ID, c.Content, metadata, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

func (r *PgChunkRepository) Query(ctx context.Context, embedding []float32, topK int) ([]domain.ContextChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	const query = `
		SELECT id, content, metadata, embedding <=> $1 AS distance
		FROM context_chunks
		ORDER BY distance
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (r *PgChunkRepository) Stats(ctx context.Context) (domain.IndexStats, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM context_chunks`).Scan(&count); err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{TotalChunks: count, Backend: "pgvector", Location: chunkTable}, nil
}

func scanChunks(rows pgxRows) ([]domain.ContextChunk, error) {
	var chunks []domain.ContextChunk
	for rows.Next() {
		var (
			c        domain.ContextChunk
			metadata []byte
			distance float64
		)
		if err := rows.Scan(&c.ID, &c.Content, &metadata, &distance); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		d := distance
		c.Distance = &d
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func encodeChunkMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal chunk metadata: %w", err)
	}
	return b, nil
}

// pgxRows is a minimal interface to allow scanning from pgx rows and simplify testing.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}
