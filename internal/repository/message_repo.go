package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"promptfabric/internal/domain"
)

const pgForeignKeyViolation = "23503"

// MessageRepository persiste mensajes en orden de insercion.
// Create devuelve domain.ErrSessionNotFound si la sesion no existe.
type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) (int64, error)
	ListRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) (int64, error) {
	const query = `
		INSERT INTO messages (session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		message.SessionID,
		message.Role,
		message.Content,
		message.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return 0, domain.ErrSessionNotFound
		}
		return 0, err
	}
	return id, nil
}

// ListRecentBySessionID devuelve los ultimos limit mensajes, del mas viejo al mas nuevo.
func (r *PgMessageRepository) ListRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	const query = `
		SELECT id, session_id, role, content, created_at
		FROM (
			SELECT id, session_id, role, content, created_at
			FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *PgMessageRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM messages WHERE session_id = $1`
	_, err := r.pool.Exec(ctx, query, sessionID)
	return err
}
