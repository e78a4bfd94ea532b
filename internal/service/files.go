// files.go — жизненный цикл общих файлов: регистрация после загрузки
// в blob storage и удаление владельцем или администратором.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/repository"
)

// maxFileNameLen — максимальная длина имени файла.
const maxFileNameLen = 255

// RegisterResult — результат регистрации файла.
type RegisterResult struct {
	File *model.File
	// Bonus — результат пересчёта бонуса; nil, если пересчёт не удался
	Bonus *BonusResult
}

// FileService — регистрация и удаление файлов.
type FileService struct {
	store     repository.Store
	bonus     *UploadBonusTracker
	cache     *ReputationCache
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewFileService создаёт сервис файлов. cache может быть nil.
func NewFileService(
	store repository.Store,
	bonus *UploadBonusTracker,
	cache *ReputationCache,
	publisher EventPublisher,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		store:     store,
		bonus:     bonus,
		cache:     cache,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "file_service")),
		now:       time.Now,
	}
}

// Register регистрирует загруженный файл и пересчитывает бонус владельца.
// Бонус пересчитывается отдельной транзакцией: ошибка пересчёта не
// отменяет регистрацию, следующая загрузка или проверка досчитает бонус.
func (s *FileService) Register(ctx context.Context, ownerID, name string, sizeBytes int64) (*RegisterResult, error) {
	name = strings.TrimSpace(name)
	switch {
	case ownerID == "":
		return nil, fmt.Errorf("%w: не указан владелец файла", ErrValidation)
	case name == "":
		return nil, fmt.Errorf("%w: имя файла не может быть пустым", ErrValidation)
	case len(name) > maxFileNameLen:
		return nil, fmt.Errorf("%w: имя файла длиннее %d символов", ErrValidation, maxFileNameLen)
	case sizeBytes < 0:
		return nil, fmt.Errorf("%w: отрицательный размер файла", ErrValidation)
	}

	file := &model.File{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		Extension: model.ExtensionFromName(name),
		SizeBytes: sizeBytes,
		CreatedAt: s.now().UTC(),
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateFile(ctx, file); err != nil {
			return fmt.Errorf("ошибка регистрации файла: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	s.logger.Info("Файл зарегистрирован",
		slog.String("file_id", file.ID),
		slog.String("owner_id", ownerID),
		slog.String("name", name),
		slog.Int64("size_bytes", sizeBytes),
	)

	result := &RegisterResult{File: file}
	bonus, err := s.bonus.OnFileUploaded(ctx, ownerID)
	if err != nil {
		s.logger.Warn("Ошибка пересчёта бонуса за загрузки",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return result, nil
	}
	result.Bonus = bonus
	return result, nil
}

// Get возвращает метаданные файла.
func (s *FileService) Get(ctx context.Context, fileID string) (*model.File, error) {
	var file *model.File
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		file, err = getFile(ctx, tx, fileID)
		return err
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return file, nil
}

// Delete удаляет файл вместе с разблокировками, оценками и голосами
// одной транзакцией. Удалять может владелец или администратор.
// Выданные бонусы не отзываются: расхождение счётчика обнаружит AbuseMonitor.
func (s *FileService) Delete(ctx context.Context, actorID string, isAdmin bool, fileID string) error {
	var file *model.File
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		file, err = getFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		if file.OwnerID != actorID && !isAdmin {
			return fmt.Errorf("%w: удалить файл может только владелец или администратор", ErrForbidden)
		}
		if err := tx.DeleteFile(ctx, fileID); err != nil {
			return fmt.Errorf("ошибка удаления файла: %w", err)
		}
		return nil
	})
	if err != nil {
		return wrapTxErr(err)
	}

	if s.cache != nil {
		s.cache.Invalidate(fileID)
	}
	s.logger.Info("Файл удалён",
		slog.String("file_id", fileID),
		slog.String("owner_id", file.OwnerID),
		slog.String("actor_id", actorID),
		slog.Bool("admin", isAdmin),
	)
	publishAll(ctx, s.publisher, s.logger, newEvent(model.EventFileDeleted, file.OwnerID, fileID, map[string]any{
		"actor_id": actorID,
		"admin":    isAdmin,
	}, s.now()))
	return nil
}
