package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"promptfabric/internal/db"
	"promptfabric/internal/domain"
	"promptfabric/internal/repository"
)

func newSQLiteMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	sqlDB, err := db.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewMemoryStore(
		repository.NewSQLiteSessionRepository(sqlDB),
		repository.NewSQLiteMessageRepository(sqlDB),
		nil,
	)
}

func TestMemoryStoreCreateSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteMemoryStore(t)

	first, err := store.CreateSession(ctx, "abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := store.AddMessage(ctx, "abc", domain.RoleUser, "hola"); err != nil {
		t.Fatalf("add message: %v", err)
	}
	second, err := store.CreateSession(ctx, "abc")
	if err != nil {
		t.Fatalf("expected no error on repeated create, got %v", err)
	}
	if first != "abc" || second != "abc" {
		t.Fatalf("expected same id, got %q and %q", first, second)
	}
	msgs, _ := store.GetMessages(ctx, "abc", 0)
	if len(msgs) != 1 {
		t.Fatalf("expected existing messages kept, got %d", len(msgs))
	}
}

func TestMemoryStoreCreateSessionGeneratesID(t *testing.T) {
	store := newSQLiteMemoryStore(t)
	id, err := store.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	if _, err := store.GetSession(context.Background(), id); err != nil {
		t.Fatalf("expected session stored, got %v", err)
	}
}

func TestMemoryStoreGetMemoryEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteMemoryStore(t)
	id, _ := store.CreateSession(ctx, "")

	snap, err := store.GetMemory(ctx, id)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.SessionID != id || snap.TotalCount != 0 || len(snap.Messages) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMemoryStoreGetMessagesChronologicalForAnyLimit(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteMemoryStore(t)
	id, _ := store.CreateSession(ctx, "s")

	contents := []string{"one", "two", "three", "four", "five"}
	for i, c := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if err := store.AddMessage(ctx, id, role, c); err != nil {
			t.Fatalf("add message: %v", err)
		}
	}

	for limit := 1; limit <= len(contents)+1; limit++ {
		msgs, err := store.GetMessages(ctx, id, limit)
		if err != nil {
			t.Fatalf("limit %d: %v", limit, err)
		}
		want := contents
		if limit < len(contents) {
			want = contents[len(contents)-limit:]
		}
		if len(msgs) != len(want) {
			t.Fatalf("limit %d: expected %d messages, got %d", limit, len(want), len(msgs))
		}
		for i := range want {
			if msgs[i].Content != want[i] {
				t.Fatalf("limit %d: expected %q at %d, got %q", limit, want[i], i, msgs[i].Content)
			}
			if i > 0 && msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
				t.Fatalf("limit %d: messages out of order", limit)
			}
		}
	}
}

func TestMemoryStoreAddMessageValidation(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteMemoryStore(t)
	id, _ := store.CreateSession(ctx, "s")

	if err := store.AddMessage(ctx, id, "clone", "x"); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := store.AddMessage(ctx, "missing", domain.RoleUser, "x"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStoreAddMessageTouchesSession(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteMemoryStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	id, _ := store.CreateSession(ctx, "s")

	store.now = func() time.Time { return base.Add(time.Minute) }
	if err := store.AddMessage(ctx, id, domain.RoleUser, "hi"); err != nil {
		t.Fatalf("add message: %v", err)
	}
	session, err := store.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !session.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected updated_at bumped, got %v", session.UpdatedAt)
	}
	if !session.CreatedAt.Equal(base) {
		t.Fatalf("expected created_at unchanged, got %v", session.CreatedAt)
	}
}

func TestMemoryStoreDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteMemoryStore(t)
	id, _ := store.CreateSession(ctx, "s")
	_ = store.AddMessage(ctx, id, domain.RoleUser, "hi")

	if err := store.DeleteSession(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetSession(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
	msgs, _ := store.GetMessages(ctx, id, 0)
	if len(msgs) != 0 {
		t.Fatalf("expected messages gone, got %d", len(msgs))
	}
}

type failingMessageRepo struct {
	err error
}

func (f *failingMessageRepo) Create(context.Context, domain.Message) (int64, error) {
	return 0, f.err
}

func (f *failingMessageRepo) ListRecentBySessionID(context.Context, string, int) ([]domain.Message, error) {
	return nil, f.err
}

func (f *failingMessageRepo) DeleteBySessionID(context.Context, string) error {
	return f.err
}

type stubSessionRepo struct{}

func (stubSessionRepo) Create(context.Context, domain.Session) error { return nil }
func (stubSessionRepo) GetByID(_ context.Context, id string) (domain.Session, error) {
	return domain.Session{ID: id}, nil
}
func (stubSessionRepo) Touch(context.Context, string, time.Time) error { return nil }
func (stubSessionRepo) Delete(context.Context, string) error           { return nil }

func TestMemoryStoreWrapsStorageErrors(t *testing.T) {
	store := NewMemoryStore(stubSessionRepo{}, &failingMessageRepo{err: errors.New("disk full")}, nil)

	err := store.AddMessage(context.Background(), "s", domain.RoleUser, "hi")
	if !domain.IsStorageError(err) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if _, err := store.GetSessionHistory(context.Background(), "s"); !domain.IsStorageError(err) {
		t.Fatalf("expected StorageError on read, got %v", err)
	}
}

func TestMemoryStoreNilIsNotConfigured(t *testing.T) {
	var store *MemoryStore
	if _, err := store.CreateSession(context.Background(), ""); !errors.Is(err, ErrMemoryStoreNotConfigured) {
		t.Fatalf("expected ErrMemoryStoreNotConfigured, got %v", err)
	}
}
