// ledger.go — токен-леджер: единственное место изменения баланса.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/taskmasterai/community-module/internal/domain/model"
	"github.com/taskmasterai/community-module/internal/repository"
)

// TokenLedger — начисление и списание токенов.
// Credit и Debit работают внутри транзакции вызывающего сервиса и
// перечитывают баланс непосредственно перед записью.
type TokenLedger struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenLedger создаёт токен-леджер.
func NewTokenLedger(store repository.Store, logger *slog.Logger) *TokenLedger {
	return &TokenLedger{
		store:  store,
		logger: logger.With(slog.String("component", "token_ledger")),
		now:    time.Now,
	}
}

// Credit увеличивает баланс пользователя на amount внутри транзакции tx.
func (l *TokenLedger) Credit(ctx context.Context, tx repository.Tx, userID string, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	u, err := l.loadUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if u.TokenBalance > math.MaxInt64-amount {
		return nil, fmt.Errorf("%w: переполнение баланса", ErrInvalidAmount)
	}

	u.TokenBalance += amount
	u.UpdatedAt = l.now().UTC()
	if err := tx.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("ошибка начисления токенов: %w", err)
	}
	return u, nil
}

// Debit уменьшает баланс пользователя на amount внутри транзакции tx.
// При недостатке средств возвращает *InsufficientFundsError и ничего не пишет.
func (l *TokenLedger) Debit(ctx context.Context, tx repository.Tx, userID string, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	u, err := l.loadUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if u.TokenBalance < amount {
		return nil, &InsufficientFundsError{Have: u.TokenBalance, Need: amount}
	}

	u.TokenBalance -= amount
	u.UpdatedAt = l.now().UTC()
	if err := tx.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("ошибка списания токенов: %w", err)
	}
	return u, nil
}

// CreditNow выполняет Credit в отдельной транзакции.
// reason попадает в лейбл метрики cm_tokens_credited_total.
func (l *TokenLedger) CreditNow(ctx context.Context, userID string, amount int64, reason string) (*model.User, error) {
	var user *model.User
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		user, err = l.Credit(ctx, tx, userID, amount)
		return err
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	tokensCreditedTotal.WithLabelValues(reason).Add(float64(amount))
	l.logger.Info("Токены начислены",
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
		slog.String("reason", reason),
		slog.Int64("balance", user.TokenBalance),
	)
	return user, nil
}

// DebitNow выполняет Debit в отдельной транзакции.
func (l *TokenLedger) DebitNow(ctx context.Context, userID string, amount int64) (*model.User, error) {
	var user *model.User
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		user, err = l.Debit(ctx, tx, userID, amount)
		return err
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	tokensDebitedTotal.Add(float64(amount))
	l.logger.Info("Токены списаны",
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
		slog.Int64("balance", user.TokenBalance),
	)
	return user, nil
}

// Balance возвращает текущий баланс пользователя.
func (l *TokenLedger) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := l.loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		balance = u.TokenBalance
		return nil
	})
	if err != nil {
		return 0, wrapTxErr(err)
	}
	return balance, nil
}

func (l *TokenLedger) loadUser(ctx context.Context, tx repository.Tx, userID string) (*model.User, error) {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}
