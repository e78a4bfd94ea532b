package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/repository"
	"github.com/taskmasterai/community-module/internal/repository/memstore"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestStore создаёт in-memory хранилище с запасом попыток для параллельных тестов.
func newTestStore() *memstore.Store {
	return memstore.New(repository.RetryPolicy{MaxAttempts: 500})
}

// recordingPublisher — мок EventPublisher, запоминающий события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		types = append(types, ev.Type)
	}
	return types
}

func seedUser(t *testing.T, store repository.Store, id string, balance int64) {
	t.Helper()
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateUser(ctx, model.NewUser(id, balance, time.Now().UTC()))
	})
	if err != nil {
		t.Fatalf("seedUser(%s): %v", id, err)
	}
}

func seedFile(t *testing.T, store repository.Store, owner, name string) *model.File {
	t.Helper()
	f := &model.File{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Name:      name,
		Extension: model.ExtensionFromName(name),
		CreatedAt: time.Now().UTC(),
	}
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateFile(ctx, f)
	})
	if err != nil {
		t.Fatalf("seedFile(%s): %v", name, err)
	}
	return f
}

func loadUser(t *testing.T, store repository.Store, id string) *model.User {
	t.Helper()
	var u *model.User
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		u, err = tx.GetUser(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("GetUser(%s): %v", id, err)
	}
	return u
}

func loadFile(t *testing.T, store repository.Store, id string) *model.File {
	t.Helper()
	var f *model.File
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		f, err = tx.GetFile(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("GetFile(%s): %v", id, err)
	}
	return f
}

func hasUnlock(t *testing.T, store repository.Store, userID, fileID string) bool {
	t.Helper()
	found := false
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.GetUnlock(ctx, userID, fileID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		t.Fatalf("GetUnlock: %v", err)
	}
	return found
}
