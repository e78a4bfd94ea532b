package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/taskmasterai/community-module/internal/config"
	"github.com/taskmasterai/community-module/internal/database"
	"github.com/taskmasterai/community-module/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("community_test"),
		postgres.WithUsername("community"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("CM_DB_HOST", host)
	t.Setenv("CM_DB_PORT", port.Port())
	t.Setenv("CM_DB_NAME", "community_test")
	t.Setenv("CM_DB_USER", "community")
	t.Setenv("CM_DB_PASSWORD", "test-password")
	t.Setenv("CM_DB_SSL_MODE", "disable")

	cfg, err := config.LoadDatabase()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newTestPgStore(t *testing.T, maxAttempts int) *PgStore {
	t.Helper()
	pool := setupTestDB(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewPgStore(pool, RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: time.Millisecond}, logger)
}

func TestPgStore_UsersAndFiles(t *testing.T) {
	store := newTestPgStore(t, 5)
	ctx := context.Background()
	fileID := uuid.New().String()

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateUser(ctx, model.NewUser("alice", 100, time.Now().UTC())); err != nil {
			return err
		}
		return tx.CreateFile(ctx, &model.File{
			ID: fileID, OwnerID: "alice", Name: "notes.pdf", Extension: "pdf", SizeBytes: 10, CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateUser(ctx, model.NewUser("alice", 0, time.Now().UTC()))
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("повторный CreateUser: ошибка %v, ожидалась ErrConflict", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		u, err := tx.GetUser(ctx, "alice")
		if err != nil {
			return err
		}
		if u.TokenBalance != 100 {
			t.Errorf("TokenBalance = %d, ожидался 100", u.TokenBalance)
		}

		f, err := tx.GetFile(ctx, fileID)
		if err != nil {
			return err
		}
		if f.OwnerID != "alice" || f.Extension != "pdf" {
			t.Errorf("файл = %+v", f)
		}
		f.DownloadCount = 2
		if err := tx.UpdateFile(ctx, f); err != nil {
			return err
		}

		n, err := tx.CountFilesByOwner(ctx, "alice")
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("CountFilesByOwner = %d, ожидался 1", n)
		}

		if _, err := tx.GetFile(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetFile(not-a-uuid): ошибка %v, ожидалась ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

func TestPgStore_DeleteFileCascades(t *testing.T) {
	store := newTestPgStore(t, 5)
	ctx := context.Background()
	fileID := uuid.New().String()

	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateFile(ctx, &model.File{ID: fileID, OwnerID: "alice", Name: "a.txt", Extension: "txt", CreatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		if err := tx.CreateUnlock(ctx, &model.UnlockRecord{UserID: "bob", FileID: fileID, Cost: 10, UnlockedAt: time.Now().UTC()}); err != nil {
			return err
		}
		if err := tx.PutRating(ctx, &model.Rating{FileID: fileID, UserID: "bob", Value: 5, UpdatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		return tx.PutVote(ctx, fileID, "bob", model.VoteLike)
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}

	if err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.DeleteFile(ctx, fileID)
	}); err != nil {
		t.Fatalf("DeleteFile() ошибка: %v", err)
	}

	err = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetUnlock(ctx, "bob", fileID); !errors.Is(err, ErrNotFound) {
			t.Errorf("разблокировка не удалена: %v", err)
		}
		if _, err := tx.GetRating(ctx, fileID, "bob"); !errors.Is(err, ErrNotFound) {
			t.Errorf("оценка не удалена: %v", err)
		}
		votes, err := tx.GetVotes(ctx, fileID)
		if err != nil {
			return err
		}
		if len(votes) != 0 {
			t.Errorf("голоса не удалены: %v", votes)
		}
		if err := tx.DeleteFile(ctx, fileID); !errors.Is(err, ErrNotFound) {
			t.Errorf("повторный DeleteFile: ошибка %v, ожидалась ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}
}

func TestPgStore_ConcurrentIncrements(t *testing.T) {
	store := newTestPgStore(t, 50)
	ctx := context.Background()

	if err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateUser(ctx, model.NewUser("alice", 0, time.Now().UTC()))
	}); err != nil {
		t.Fatalf("CreateUser() ошибка: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
				u, err := tx.GetUser(ctx, "alice")
				if err != nil {
					return err
				}
				u.TokenBalance++
				return tx.UpdateUser(ctx, u)
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("RunInTx() ошибка: %v", err)
		}
	}

	_ = store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		u, err := tx.GetUser(ctx, "alice")
		if err != nil {
			t.Fatalf("GetUser() ошибка: %v", err)
		}
		if u.TokenBalance != workers {
			t.Errorf("TokenBalance = %d, ожидался %d", u.TokenBalance, workers)
		}
		return nil
	})
}
