// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/taskmasterai/community-module/internal/repository"
)

var (
	// ErrAlreadyUnlocked — пользователь уже разблокировал файл.
	ErrAlreadyUnlocked = errors.New("файл уже разблокирован")
	// ErrOwnerCannotPurchase — владелец не может покупать собственный файл.
	ErrOwnerCannotPurchase = errors.New("владелец не может разблокировать собственный файл")
	// ErrFileNotFound — файл не найден.
	ErrFileNotFound = errors.New("файл не найден")
	// ErrUserNotFound — пользователь не найден.
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrInvalidRatingValue — оценка вне диапазона 1-5.
	ErrInvalidRatingValue = errors.New("оценка должна быть целым числом от 1 до 5")
	// ErrInvalidAmount — неположительная сумма операции с токенами.
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrInsufficientFunds — недостаточно токенов. Конкретная ошибка — *InsufficientFundsError.
	ErrInsufficientFunds = errors.New("недостаточно токенов")
	// ErrTransientConflict — транзакция не прошла после всех повторов, запрос можно повторить.
	ErrTransientConflict = errors.New("временный конфликт параллельных операций, повторите запрос")
	// ErrForbidden — операция запрещена для пользователя.
	ErrForbidden = errors.New("операция запрещена")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)

// InsufficientFundsError — баланс меньше стоимости операции.
// errors.Is(err, ErrInsufficientFunds) возвращает true.
type InsufficientFundsError struct {
	Have int64
	Need int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("недостаточно токенов: есть %d, нужно %d", e.Have, e.Need)
}

// Is проверяет соответствие sentinel-ошибке ErrInsufficientFunds.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Missing возвращает недостающее количество токенов.
func (e *InsufficientFundsError) Missing() int64 {
	return e.Need - e.Have
}

// wrapTxErr преобразует исчерпание повторов транзакции в ErrTransientConflict.
func wrapTxErr(err error) error {
	if err != nil && errors.Is(err, repository.ErrTxConflict) {
		return fmt.Errorf("%w: %w", ErrTransientConflict, err)
	}
	return err
}

// resultLabel возвращает значение лейбла result для метрик операции.
func resultLabel(err error) string {
	var insufficient *InsufficientFundsError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &insufficient):
		return "insufficient_funds"
	case errors.Is(err, ErrAlreadyUnlocked):
		return "already_unlocked"
	case errors.Is(err, ErrOwnerCannotPurchase):
		return "owner"
	case errors.Is(err, ErrFileNotFound):
		return "file_not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrTransientConflict):
		return "conflict"
	default:
		return "error"
	}
}
