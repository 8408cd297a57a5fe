package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"promptfabric/internal/domain"
)

// SessionRepository persiste las sesiones de conversacion.
// Create es idempotente: un id existente no se modifica.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, id string) (domain.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type PgSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgSessionRepository(pool *pgxpool.Pool) *PgSessionRepository {
	return &PgSessionRepository{pool: pool}
}

func (r *PgSessionRepository) Create(ctx context.Context, session domain.Session) error {
	const query = `
		INSERT INTO sessions (session_id, created_at, updated_at, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING
	`
	metadata, err := encodeMetadata(session.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query,
		session.ID,
		session.CreatedAt,
		session.UpdatedAt,
		metadata,
	)
	return err
}

func (r *PgSessionRepository) GetByID(ctx context.Context, id string) (domain.Session, error) {
	const query = `
		SELECT session_id, created_at, updated_at, metadata
		FROM sessions
		WHERE session_id = $1
	`
	var (
		session  domain.Session
		metadata []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.CreatedAt,
		&session.UpdatedAt,
		&metadata,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	session.Metadata, err = decodeMetadata(metadata)
	return session, err
}

func (r *PgSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE sessions SET updated_at = $2 WHERE session_id = $1`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *PgSessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE session_id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal session metadata: %w", err)
	}
	return b, nil
}

func decodeMetadata(b []byte) (map[string]string, error) {
	if len(b) == 0 || string(b) == "{}" || string(b) == "null" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal session metadata: %w", err)
	}
	return m, nil
}
