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
	"promptfabric/internal/repository"
)

const defaultHistoryLimit = 50

var ErrMemoryStoreNotConfigured = errors.New("memory store not configured")

// MemoryStore es el dueño de sesiones y mensajes.
// Errores de almacenamiento se devuelven como *domain.StorageError.
type MemoryStore struct {
	sessions repository.SessionRepository
	messages repository.MessageRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewMemoryStore(sessions repository.SessionRepository, messages repository.MessageRepository, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		sessions: sessions,
		messages: messages,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession crea la sesion si no existe. Un id vacio genera uno nuevo.
func (s *MemoryStore) CreateSession(ctx context.Context, id string) (string, error) {
	if s == nil || s.sessions == nil {
		return "", ErrMemoryStoreNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	if err := s.sessions.Create(ctx, domain.Session{ID: id, CreatedAt: now, UpdatedAt: now}); err != nil {
		return "", &domain.StorageError{Op: "create_session", Err: err}
	}
	return id, nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if s == nil || s.sessions == nil {
		return domain.Session{}, ErrMemoryStoreNotConfigured
	}
	session, err := s.sessions.GetByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, &domain.StorageError{Op: "get_session", Err: err}
	}
	return session, nil
}

// AddMessage agrega el mensaje y luego actualiza updated_at de la sesion.
// Son dos sentencias independientes: si la segunda falla el mensaje queda guardado.
func (s *MemoryStore) AddMessage(ctx context.Context, sessionID, role, content string) error {
	if s == nil || s.messages == nil || s.sessions == nil {
		return ErrMemoryStoreNotConfigured
	}
	role = strings.TrimSpace(role)
	if !domain.ValidRole(role) {
		return domain.ErrInvalidRole
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ErrSessionNotFound
	}

	now := s.now()
	_, err := s.messages.Create(ctx, domain.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return &domain.StorageError{Op: "add_message", Err: err}
	}

	if err := s.sessions.Touch(ctx, sessionID, now); err != nil {
		s.logger.Warn("session touch failed", zap.String("session_id", sessionID), zap.Error(err))
		return &domain.StorageError{Op: "touch_session", Err: err}
	}
	return nil
}

// GetMessages devuelve los ultimos limit mensajes (50 si limit <= 0), del mas viejo al mas nuevo.
func (s *MemoryStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if s == nil || s.messages == nil {
		return nil, ErrMemoryStoreNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return []domain.Message{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	messages, err := s.messages.ListRecentBySessionID(ctx, sessionID, limit)
	if err != nil {
		return nil, &domain.StorageError{Op: "get_messages", Err: err}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// GetSessionHistory proyecta los mensajes al formato que consume el gateway.
func (s *MemoryStore) GetSessionHistory(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	messages, err := s.GetMessages(ctx, sessionID, defaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	history := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func (s *MemoryStore) GetMemory(ctx context.Context, sessionID string) (domain.MemorySnapshot, error) {
	messages, err := s.GetMessages(ctx, sessionID, defaultHistoryLimit)
	if err != nil {
		return domain.MemorySnapshot{}, err
	}
	return domain.MemorySnapshot{
		SessionID:  sessionID,
		Messages:   messages,
		TotalCount: len(messages),
	}, nil
}

// DeleteSession borra primero los mensajes y despues la sesion.
func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	if s == nil || s.messages == nil || s.sessions == nil {
		return ErrMemoryStoreNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if err := s.messages.DeleteBySessionID(ctx, sessionID); err != nil {
		return &domain.StorageError{Op: "delete_messages", Err: err}
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return &domain.StorageError{Op: "delete_session", Err: err}
	}
	return nil
}
