package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"promptfabric/internal/db"
	"promptfabric/internal/domain"
)

func newSQLiteRepos(t *testing.T) (*SQLiteSessionRepository, *SQLiteMessageRepository) {
	t.Helper()
	sqlDB, err := db.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return NewSQLiteSessionRepository(sqlDB), NewSQLiteMessageRepository(sqlDB)
}

func TestSQLiteSessionCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sessions, _ := newSQLiteRepos(t)

	first := time.Now().UTC()
	if err := sessions.Create(ctx, domain.Session{ID: "s1", CreatedAt: first, UpdatedAt: first, Metadata: map[string]string{"client": "cli"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	later := first.Add(time.Hour)
	if err := sessions.Create(ctx, domain.Session{ID: "s1", CreatedAt: later, UpdatedAt: later}); err != nil {
		t.Fatalf("second create: %v", err)
	}

	got, err := sessions.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(first) {
		t.Fatalf("expected original created_at kept, got %v", got.CreatedAt)
	}
	if got.Metadata["client"] != "cli" {
		t.Fatalf("expected metadata kept, got %v", got.Metadata)
	}
}

func TestSQLiteSessionNotFound(t *testing.T) {
	sessions, _ := newSQLiteRepos(t)
	if _, err := sessions.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := sessions.Touch(context.Background(), "missing", time.Now()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on touch, got %v", err)
	}
}

func TestSQLiteMessageForeignKeyMapsToNotFound(t *testing.T) {
	_, messages := newSQLiteRepos(t)
	_, err := messages.Create(context.Background(), domain.Message{SessionID: "ghost", Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now()})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSQLiteListRecentReturnsTailOldestFirst(t *testing.T) {
	ctx := context.Background()
	sessions, messages := newSQLiteRepos(t)
	now := time.Now().UTC()
	if err := sessions.Create(ctx, domain.Session{ID: "s1", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Mismo timestamp para todos: el id desempata.
	for _, content := range []string{"m1", "m2", "m3", "m4"} {
		if _, err := messages.Create(ctx, domain.Message{SessionID: "s1", Role: domain.RoleUser, Content: content, CreatedAt: now}); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	got, err := messages.ListRecentBySessionID(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Content != "m3" || got[1].Content != "m4" {
		t.Fatalf("expected [m3 m4], got %+v", got)
	}
	if got[0].ID >= got[1].ID {
		t.Fatalf("expected ascending ids")
	}
}

func TestSQLiteDeleteMessagesThenSession(t *testing.T) {
	ctx := context.Background()
	sessions, messages := newSQLiteRepos(t)
	now := time.Now().UTC()
	_ = sessions.Create(ctx, domain.Session{ID: "s1", CreatedAt: now, UpdatedAt: now})
	if _, err := messages.Create(ctx, domain.Message{SessionID: "s1", Role: domain.RoleUser, Content: "hi", CreatedAt: now}); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := messages.DeleteBySessionID(ctx, "s1"); err != nil {
		t.Fatalf("delete messages: %v", err)
	}
	if err := sessions.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := sessions.GetByID(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}
