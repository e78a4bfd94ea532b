// upload_bonus.go — бонус за каждые FilesPerBonus загруженных файлов.
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

// BonusResult — результат пересчёта бонуса за загрузки.
type BonusResult struct {
	UserID string
	// FileCount — текущее количество файлов пользователя
	FileCount int
	// Groups — количество оплаченных групп после операции
	Groups int
	// Credited — начислено токенов в этой операции (0 — порог не пройден)
	Credited int64
	// Balance — баланс после операции
	Balance int64
}

// UploadBonusTracker — начисление бонусов за загрузки.
// Бонус вычисляется по фактическому числу файлов, поэтому повторный
// вызов без пересечения порога ничего не меняет.
type UploadBonusTracker struct {
	store     repository.Store
	ledger    *TokenLedger
	economy   Economy
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewUploadBonusTracker создаёт трекер бонусов.
func NewUploadBonusTracker(
	store repository.Store,
	ledger *TokenLedger,
	economy Economy,
	publisher EventPublisher,
	logger *slog.Logger,
) *UploadBonusTracker {
	return &UploadBonusTracker{
		store:     store,
		ledger:    ledger,
		economy:   economy,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "upload_bonus")),
		now:       time.Now,
	}
}

// OnFileUploaded пересчитывает бонус пользователя после загрузки файла.
// Отсутствующий пользователь создаётся со стартовым балансом в той же транзакции.
func (t *UploadBonusTracker) OnFileUploaded(ctx context.Context, userID string) (*BonusResult, error) {
	var result BonusResult
	err := t.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		result = BonusResult{UserID: userID}

		count, err := tx.CountFilesByOwner(ctx, userID)
		if err != nil {
			return fmt.Errorf("ошибка подсчёта файлов: %w", err)
		}
		result.FileCount = count

		u, err := t.getOrCreateUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		expected := t.economy.expectedGroups(count)
		if expected <= u.UploadBonusCount {
			result.Groups = u.UploadBonusCount
			result.Balance = u.TokenBalance
			return nil
		}

		credit := int64(expected-u.UploadBonusCount) * t.economy.TokensPerBonus
		if credit > 0 {
			u, err = t.ledger.Credit(ctx, tx, userID, credit)
			if err != nil {
				return err
			}
		}

		u.UploadBonusCount = expected
		u.UpdatedAt = t.now().UTC()
		if err := tx.UpdateUser(ctx, u); err != nil {
			return fmt.Errorf("ошибка обновления счётчика бонусов: %w", err)
		}

		result.Groups = expected
		result.Credited = credit
		result.Balance = u.TokenBalance
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	if result.Credited > 0 {
		tokensCreditedTotal.WithLabelValues(reasonUploadBonus).Add(float64(result.Credited))
		t.logger.Info("Начислен бонус за загрузки",
			slog.String("user_id", userID),
			slog.Int("file_count", result.FileCount),
			slog.Int("groups", result.Groups),
			slog.Int64("credited", result.Credited),
			slog.Int64("balance", result.Balance),
		)
		publishAll(ctx, t.publisher, t.logger, newEvent(model.EventBonusAwarded, userID, "", map[string]any{
			"file_count": result.FileCount,
			"groups":     result.Groups,
			"credited":   result.Credited,
			"balance":    result.Balance,
		}, t.now()))
	}
	return &result, nil
}

func (t *UploadBonusTracker) getOrCreateUser(ctx context.Context, tx repository.Tx, userID string) (*model.User, error) {
	u, err := tx.GetUser(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	u = model.NewUser(userID, t.economy.StartingBalance, t.now().UTC())
	if err := tx.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return u, nil
}
