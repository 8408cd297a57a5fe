package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"promptfabric/internal/domain"
)

// SQLiteSessionRepository y SQLiteMessageRepository comparten el *sql.DB abierto por db.OpenSQLite.
type SQLiteSessionRepository struct {
	db *sql.DB
}

func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

func (r *SQLiteSessionRepository) Create(ctx context.Context, session domain.Session) error {
	const query = `
		INSERT OR IGNORE INTO sessions (session_id, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?)
	`
	metadata, err := encodeMetadata(session.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.CreatedAt.UnixNano(),
		session.UpdatedAt.UnixNano(),
		string(metadata),
	)
	return err
}

func (r *SQLiteSessionRepository) GetByID(ctx context.Context, id string) (domain.Session, error) {
	const query = `
		SELECT session_id, created_at, updated_at, metadata
		FROM sessions
		WHERE session_id = ?
	`
	var (
		session            domain.Session
		createdAt, updated int64
		metadata           string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&session.ID, &createdAt, &updated, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	session.CreatedAt = time.Unix(0, createdAt).UTC()
	session.UpdatedAt = time.Unix(0, updated).UTC()
	session.Metadata, err = decodeMetadata([]byte(metadata))
	return session, err
}

func (r *SQLiteSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE session_id = ?`, at.UnixNano(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SQLiteSessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	return err
}

type SQLiteMessageRepository struct {
	db *sql.DB
}

func NewSQLiteMessageRepository(db *sql.DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{db: db}
}

func (r *SQLiteMessageRepository) Create(ctx context.Context, message domain.Message) (int64, error) {
	const query = `
		INSERT INTO messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		message.SessionID,
		message.Role,
		message.Content,
		message.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isSQLiteForeignKeyError(err) {
			return 0, domain.ErrSessionNotFound
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteMessageRepository) ListRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	const query = `
		SELECT id, session_id, role, content, created_at
		FROM (
			SELECT id, session_id, role, content, created_at
			FROM messages
			WHERE session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var (
			msg       domain.Message
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *SQLiteMessageRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	return err
}

func isSQLiteForeignKeyError(err error) bool {
	return strings.Contains(strings.ToUpper(err.Error()), "FOREIGN KEY CONSTRAINT FAILED")
}
