// accounts.go — учётные записи участников файловой экономики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/repository"
)

// AccountService — создание пользователя при первом входе и чтение профиля.
type AccountService struct {
	store   repository.Store
	economy Economy
	logger  *slog.Logger
	now     func() time.Time
}

// NewAccountService создаёт сервис учётных записей.
func NewAccountService(store repository.Store, economy Economy, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:   store,
		economy: economy,
		logger:  logger.With(slog.String("component", "accounts")),
		now:     time.Now,
	}
}

// EnsureUser возвращает пользователя, создавая его со стартовым балансом
// при первом обращении. created == true, если запись создана этим вызовом.
func (s *AccountService) EnsureUser(ctx context.Context, userID string) (user *model.User, created bool, err error) {
	if userID == "" {
		return nil, false, fmt.Errorf("%w: пустой идентификатор пользователя", ErrValidation)
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		created = false
		u, err := tx.GetUser(ctx, userID)
		if err == nil {
			user = u
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("ошибка получения пользователя: %w", err)
		}

		user = model.NewUser(userID, s.economy.StartingBalance, s.now().UTC())
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		// Параллельный первый вход: запись уже создана другим запросом
		user, err = s.GetUser(ctx, userID)
		return user, false, err
	}
	if err != nil {
		return nil, false, wrapTxErr(err)
	}

	if created {
		s.logger.Info("Создан пользователь",
			slog.String("user_id", userID),
			slog.Int64("starting_balance", user.TokenBalance),
		)
	}
	return user, created, nil
}

// GetUser возвращает пользователя или ErrUserNotFound.
func (s *AccountService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var user *model.User
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
			}
			return fmt.Errorf("ошибка получения пользователя: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return user, nil
}
