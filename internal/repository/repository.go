// Пакет repository — транзакционное хранилище Community Module.
//
// Все изменения выполняются через Store.RunInTx: функция получает Tx,
// перечитывает документы, проверяет предусловия и пишет. При конфликте
// с параллельной транзакцией хранилище откатывает её и повторяет fn
// ограниченное число раз. Реализации: PgStore (PostgreSQL, SERIALIZABLE)
// и memstore.Store (in-memory, оптимистичные версии ключей).
package repository

import (
	"context"
	"errors"

	"github.com/taskmasterai/community-module/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrTxConflict — транзакция не прошла проверку оптимистичной блокировки
	// после исчерпания всех попыток.
	ErrTxConflict = errors.New("конфликт параллельных транзакций")
)

// Store — транзакционное хранилище документов.
type Store interface {
	// RunInTx выполняет fn в одной атомарной транзакции.
	// Ошибка fn откатывает транзакцию без частичных записей.
	// При конфликте записи fn вызывается повторно, поэтому fn не должна
	// иметь побочных эффектов вне Tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx — операции над документами внутри транзакции.
// Чтение видит собственные незакоммиченные записи транзакции.
type Tx interface {
	// GetUser возвращает пользователя или ErrNotFound.
	GetUser(ctx context.Context, userID string) (*model.User, error)
	// CreateUser создаёт пользователя. ErrConflict, если он уже существует.
	CreateUser(ctx context.Context, u *model.User) error
	// UpdateUser перезаписывает пользователя. ErrNotFound, если его нет.
	UpdateUser(ctx context.Context, u *model.User) error

	// GetFile возвращает файл или ErrNotFound.
	GetFile(ctx context.Context, fileID string) (*model.File, error)
	// CreateFile создаёт файл. ErrConflict, если ID занят.
	CreateFile(ctx context.Context, f *model.File) error
	// UpdateFile перезаписывает агрегаты файла. ErrNotFound, если его нет.
	UpdateFile(ctx context.Context, f *model.File) error
	// DeleteFile удаляет файл вместе с его разблокировками, оценками и голосами.
	DeleteFile(ctx context.Context, fileID string) error
	// CountFilesByOwner возвращает количество файлов пользователя.
	CountFilesByOwner(ctx context.Context, ownerID string) (int, error)

	// GetUnlock возвращает запись разблокировки или ErrNotFound.
	GetUnlock(ctx context.Context, userID, fileID string) (*model.UnlockRecord, error)
	// CreateUnlock создаёт запись разблокировки. ErrConflict, если она уже есть.
	CreateUnlock(ctx context.Context, rec *model.UnlockRecord) error
	// ListUnlocksByUser возвращает разблокировки пользователя, новые первыми.
	ListUnlocksByUser(ctx context.Context, userID string) ([]*model.UnlockRecord, error)

	// GetRating возвращает оценку пользователя для файла или ErrNotFound.
	GetRating(ctx context.Context, fileID, userID string) (*model.Rating, error)
	// PutRating создаёт или перезаписывает оценку.
	PutRating(ctx context.Context, r *model.Rating) error

	// GetVotes возвращает все голоса за файл.
	GetVotes(ctx context.Context, fileID string) (model.VoteSet, error)
	// PutVote устанавливает голос пользователя, заменяя предыдущий.
	PutVote(ctx context.Context, fileID, userID string, kind model.VoteKind) error
	// DeleteVote снимает голос пользователя (no-op, если голоса нет).
	DeleteVote(ctx context.Context, fileID, userID string) error
}
