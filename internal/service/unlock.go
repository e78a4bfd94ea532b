// unlock.go — покупка бессрочного доступа к чужим файлам.
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

// PurchaseResult — результат разблокировки файла.
type PurchaseResult struct {
	FileID     string
	Cost       int64
	Balance    int64
	UnlockedAt time.Time
}

// Quote — предварительный расчёт разблокировки для отображения в UI.
type Quote struct {
	FileID    string
	Extension string
	Cost      int64
	Balance   int64
	// Owned — пользователь владелец файла, покупка не требуется
	Owned bool
	// Unlocked — файл уже разблокирован
	Unlocked bool
	// Missing — сколько токенов не хватает (0, если хватает)
	Missing int64
}

// UnlockRegistry — разблокировка файлов за токены.
type UnlockRegistry struct {
	store     repository.Store
	ledger    *TokenLedger
	prices    *PriceTable
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewUnlockRegistry создаёт реестр разблокировок.
func NewUnlockRegistry(
	store repository.Store,
	ledger *TokenLedger,
	prices *PriceTable,
	publisher EventPublisher,
	logger *slog.Logger,
) *UnlockRegistry {
	return &UnlockRegistry{
		store:     store,
		ledger:    ledger,
		prices:    prices,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "unlock_registry")),
		now:       time.Now,
	}
}

// Prices возвращает используемый прайс-лист.
func (r *UnlockRegistry) Prices() *PriceTable {
	return r.prices
}

// Purchase разблокирует файл fileID для userID. Списание и запись
// разблокировки фиксируются одной транзакцией: параллельные покупки
// одного файла дают ровно одну запись и одно списание.
func (r *UnlockRegistry) Purchase(ctx context.Context, userID, fileID string) (*PurchaseResult, error) {
	var result PurchaseResult
	err := r.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		file, err := getFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		if file.OwnerID == userID {
			return ErrOwnerCannotPurchase
		}

		if _, err := tx.GetUnlock(ctx, userID, fileID); err == nil {
			return ErrAlreadyUnlocked
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("ошибка проверки разблокировки: %w", err)
		}

		cost := r.prices.CostFor(file.Extension)

		var buyer *model.User
		if cost > 0 {
			buyer, err = r.ledger.Debit(ctx, tx, userID, cost)
		} else {
			buyer, err = r.ledger.loadUser(ctx, tx, userID)
		}
		if err != nil {
			return err
		}

		rec := &model.UnlockRecord{
			UserID:     userID,
			FileID:     fileID,
			Cost:       cost,
			UnlockedAt: r.now().UTC(),
		}
		if err := tx.CreateUnlock(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyUnlocked
			}
			return fmt.Errorf("ошибка создания разблокировки: %w", err)
		}

		result = PurchaseResult{
			FileID:     fileID,
			Cost:       cost,
			Balance:    buyer.TokenBalance,
			UnlockedAt: rec.UnlockedAt,
		}
		return nil
	})
	err = wrapTxErr(err)
	unlocksTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	if result.Cost > 0 {
		tokensDebitedTotal.Add(float64(result.Cost))
	}
	r.logger.Info("Файл разблокирован",
		slog.String("user_id", userID),
		slog.String("file_id", fileID),
		slog.Int64("cost", result.Cost),
		slog.Int64("balance", result.Balance),
	)
	publishAll(ctx, r.publisher, r.logger, newEvent(model.EventFileUnlocked, userID, fileID, map[string]any{
		"cost":    result.Cost,
		"balance": result.Balance,
	}, result.UnlockedAt))
	return &result, nil
}

// HasAccess проверяет, может ли пользователь скачивать файл:
// он владелец или разблокировал файл.
func (r *UnlockRegistry) HasAccess(ctx context.Context, userID, fileID string) (bool, error) {
	var access bool
	err := r.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		file, err := getFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		if file.OwnerID == userID {
			access = true
			return nil
		}

		_, err = tx.GetUnlock(ctx, userID, fileID)
		switch {
		case err == nil:
			access = true
			return nil
		case errors.Is(err, repository.ErrNotFound):
			access = false
			return nil
		default:
			return fmt.Errorf("ошибка проверки разблокировки: %w", err)
		}
	})
	if err != nil {
		return false, wrapTxErr(err)
	}
	return access, nil
}

// Quote рассчитывает стоимость разблокировки без изменения данных.
func (r *UnlockRegistry) Quote(ctx context.Context, userID, fileID string) (*Quote, error) {
	var q Quote
	err := r.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		file, err := getFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		buyer, err := r.ledger.loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		q = Quote{
			FileID:    fileID,
			Extension: file.Extension,
			Cost:      r.prices.CostFor(file.Extension),
			Balance:   buyer.TokenBalance,
			Owned:     file.OwnerID == userID,
		}

		if !q.Owned {
			_, err = tx.GetUnlock(ctx, userID, fileID)
			switch {
			case err == nil:
				q.Unlocked = true
			case !errors.Is(err, repository.ErrNotFound):
				return fmt.Errorf("ошибка проверки разблокировки: %w", err)
			}
		}
		if !q.Owned && !q.Unlocked && q.Balance < q.Cost {
			q.Missing = q.Cost - q.Balance
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return &q, nil
}

// ListUnlocked возвращает разблокировки пользователя, новые первыми.
func (r *UnlockRegistry) ListUnlocked(ctx context.Context, userID string) ([]*model.UnlockRecord, error) {
	var records []*model.UnlockRecord
	err := r.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		records, err = tx.ListUnlocksByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("ошибка получения разблокировок: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return records, nil
}

// getFile читает файл, преобразуя ErrNotFound в ErrFileNotFound.
func getFile(ctx context.Context, tx repository.Tx, fileID string) (*model.File, error) {
	file, err := tx.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return file, nil
}
