package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmasterai/community-module/internal/domain/model"
)

// Коды SQLSTATE PostgreSQL.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore — реализация Store поверх PostgreSQL.
// Каждая транзакция выполняется с уровнем изоляции SERIALIZABLE:
// PostgreSQL сам обнаруживает конфликт чтения/записи (SQLSTATE 40001)
// и откатывает проигравшую транзакцию, после чего fn повторяется.
// Все запросы — чистый SQL через pgx, без ORM.
type PgStore struct {
	pool   *pgxpool.Pool
	retry  RetryPolicy
	logger *slog.Logger
}

// NewPgStore создаёт хранилище поверх пула подключений.
func NewPgStore(pool *pgxpool.Pool, retry RetryPolicy, logger *slog.Logger) *PgStore {
	return &PgStore{
		pool:   pool,
		retry:  retry,
		logger: logger.With(slog.String("component", "pg_store")),
	}
}

// RunInTx выполняет fn в SERIALIZABLE-транзакции с повтором при конфликте.
func (s *PgStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	attempt := 0
	return RunWithRetry(ctx, s.retry, "postgres", isRetryablePgError, func() error {
		attempt++
		if attempt > 1 {
			s.logger.Debug("Повтор транзакции после конфликта", slog.Int("attempt", attempt))
		}
		return s.runOnce(ctx, fn)
	})
}

func (s *PgStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(ctx, &pgTx{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return nil
}

// isRetryablePgError проверяет, что ошибка — конфликт сериализации или deadlock.
func isRetryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// pgTx — реализация Tx поверх pgx.Tx.
type pgTx struct {
	db DBTX
}

// --- users ---

func (t *pgTx) GetUser(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT id, token_balance, upload_bonus_count, abuse_warning_count, created_at, updated_at
		FROM users
		WHERE id = $1`

	u := &model.User{}
	err := t.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.TokenBalance, &u.UploadBonusCount, &u.AbuseWarningCount, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (t *pgTx) CreateUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, token_balance, upload_bonus_count, abuse_warning_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := t.db.Exec(ctx, query,
		u.ID, u.TokenBalance, u.UploadBonusCount, u.AbuseWarningCount, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь %s уже существует", ErrConflict, u.ID)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateUser(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET token_balance = $2, upload_bonus_count = $3, abuse_warning_count = $4, updated_at = $5
		WHERE id = $1`

	tag, err := t.db.Exec(ctx, query,
		u.ID, u.TokenBalance, u.UploadBonusCount, u.AbuseWarningCount, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- files ---

func (t *pgTx) GetFile(ctx context.Context, fileID string) (*model.File, error) {
	// Колонка id имеет тип UUID: невалидный идентификатор заведомо не найден
	if uuid.Validate(fileID) != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, owner_id, name, extension, size_bytes, download_count,
			total_rating_sum, rating_count, created_at
		FROM files
		WHERE id = $1`

	f := &model.File{}
	err := t.db.QueryRow(ctx, query, fileID).Scan(
		&f.ID, &f.OwnerID, &f.Name, &f.Extension, &f.SizeBytes, &f.DownloadCount,
		&f.TotalRatingSum, &f.RatingCount, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (t *pgTx) CreateFile(ctx context.Context, f *model.File) error {
	query := `
		INSERT INTO files (id, owner_id, name, extension, size_bytes, download_count,
			total_rating_sum, rating_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.db.Exec(ctx, query,
		f.ID, f.OwnerID, f.Name, f.Extension, f.SizeBytes, f.DownloadCount,
		f.TotalRatingSum, f.RatingCount, f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл %s уже зарегистрирован", ErrConflict, f.ID)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateFile(ctx context.Context, f *model.File) error {
	query := `
		UPDATE files
		SET download_count = $2, total_rating_sum = $3, rating_count = $4
		WHERE id = $1`

	tag, err := t.db.Exec(ctx, query, f.ID, f.DownloadCount, f.TotalRatingSum, f.RatingCount)
	if err != nil {
		return fmt.Errorf("ошибка обновления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFile удаляет файл. Разблокировки, оценки и голоса удаляются
// через ON DELETE CASCADE в той же транзакции.
func (t *pgTx) DeleteFile(ctx context.Context, fileID string) error {
	if uuid.Validate(fileID) != nil {
		return ErrNotFound
	}
	tag, err := t.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CountFilesByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := t.db.QueryRow(ctx, `SELECT COUNT(*) FROM files WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов пользователя: %w", err)
	}
	return count, nil
}

// --- unlocks ---

func (t *pgTx) GetUnlock(ctx context.Context, userID, fileID string) (*model.UnlockRecord, error) {
	query := `
		SELECT user_id, file_id, cost, unlocked_at
		FROM file_unlocks
		WHERE user_id = $1 AND file_id = $2`

	rec := &model.UnlockRecord{}
	err := t.db.QueryRow(ctx, query, userID, fileID).Scan(&rec.UserID, &rec.FileID, &rec.Cost, &rec.UnlockedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения разблокировки: %w", err)
	}
	return rec, nil
}

func (t *pgTx) CreateUnlock(ctx context.Context, rec *model.UnlockRecord) error {
	query := `
		INSERT INTO file_unlocks (user_id, file_id, cost, unlocked_at)
		VALUES ($1, $2, $3, $4)`

	_, err := t.db.Exec(ctx, query, rec.UserID, rec.FileID, rec.Cost, rec.UnlockedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл %s уже разблокирован пользователем %s", ErrConflict, rec.FileID, rec.UserID)
		}
		return fmt.Errorf("ошибка создания разблокировки: %w", err)
	}
	return nil
}

func (t *pgTx) ListUnlocksByUser(ctx context.Context, userID string) ([]*model.UnlockRecord, error) {
	query := `
		SELECT user_id, file_id, cost, unlocked_at
		FROM file_unlocks
		WHERE user_id = $1
		ORDER BY unlocked_at DESC`

	rows, err := t.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка разблокировок: %w", err)
	}
	defer rows.Close()

	var result []*model.UnlockRecord
	for rows.Next() {
		rec := &model.UnlockRecord{}
		if err := rows.Scan(&rec.UserID, &rec.FileID, &rec.Cost, &rec.UnlockedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования разблокировки: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// --- ratings ---

func (t *pgTx) GetRating(ctx context.Context, fileID, userID string) (*model.Rating, error) {
	query := `
		SELECT file_id, user_id, value, updated_at
		FROM file_ratings
		WHERE file_id = $1 AND user_id = $2`

	r := &model.Rating{}
	err := t.db.QueryRow(ctx, query, fileID, userID).Scan(&r.FileID, &r.UserID, &r.Value, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения оценки: %w", err)
	}
	return r, nil
}

func (t *pgTx) PutRating(ctx context.Context, r *model.Rating) error {
	query := `
		INSERT INTO file_ratings (file_id, user_id, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_id, user_id) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`

	if _, err := t.db.Exec(ctx, query, r.FileID, r.UserID, r.Value, r.UpdatedAt); err != nil {
		return fmt.Errorf("ошибка сохранения оценки: %w", err)
	}
	return nil
}

// --- votes ---

func (t *pgTx) GetVotes(ctx context.Context, fileID string) (model.VoteSet, error) {
	rows, err := t.db.Query(ctx, `SELECT user_id, kind FROM file_votes WHERE file_id = $1`, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения голосов: %w", err)
	}
	defer rows.Close()

	votes := model.VoteSet{}
	for rows.Next() {
		var (
			userID string
			kind   string
		)
		if err := rows.Scan(&userID, &kind); err != nil {
			return nil, fmt.Errorf("ошибка сканирования голоса: %w", err)
		}
		vk := model.VoteKind(kind)
		if !vk.Valid() {
			return nil, fmt.Errorf("недопустимый тип голоса %q у пользователя %s", kind, userID)
		}
		votes[userID] = vk
	}
	return votes, rows.Err()
}

func (t *pgTx) PutVote(ctx context.Context, fileID, userID string, kind model.VoteKind) error {
	query := `
		INSERT INTO file_votes (file_id, user_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (file_id, user_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			created_at = now()`

	if _, err := t.db.Exec(ctx, query, fileID, userID, string(kind)); err != nil {
		return fmt.Errorf("ошибка сохранения голоса: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteVote(ctx context.Context, fileID, userID string) error {
	if _, err := t.db.Exec(ctx, `DELETE FROM file_votes WHERE file_id = $1 AND user_id = $2`, fileID, userID); err != nil {
		return fmt.Errorf("ошибка удаления голоса: %w", err)
	}
	return nil
}
