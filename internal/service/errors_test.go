package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/taskmasterai/community-module/internal/repository"
)

func TestInsufficientFundsError_Is(t *testing.T) {
	err := fmt.Errorf("покупка: %w", &InsufficientFundsError{Have: 3, Need: 10})

	if !errors.Is(err, ErrInsufficientFunds) {
		t.Error("errors.Is(err, ErrInsufficientFunds) = false")
	}
	if errors.Is(err, ErrAlreadyUnlocked) {
		t.Error("errors.Is(err, ErrAlreadyUnlocked) = true")
	}
}

func TestWrapTxErr(t *testing.T) {
	if wrapTxErr(nil) != nil {
		t.Error("wrapTxErr(nil) != nil")
	}

	err := wrapTxErr(fmt.Errorf("попытка 5: %w", repository.ErrTxConflict))
	if !errors.Is(err, ErrTransientConflict) || !errors.Is(err, repository.ErrTxConflict) {
		t.Errorf("wrapTxErr = %v, ожидалась цепочка ErrTransientConflict + ErrTxConflict", err)
	}

	if got := wrapTxErr(ErrFileNotFound); got != ErrFileNotFound {
		t.Errorf("wrapTxErr изменил ошибку бизнес-логики: %v", got)
	}
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&InsufficientFundsError{Have: 1, Need: 2}, "insufficient_funds"},
		{ErrAlreadyUnlocked, "already_unlocked"},
		{ErrOwnerCannotPurchase, "owner"},
		{fmt.Errorf("%w: x", ErrFileNotFound), "file_not_found"},
		{ErrUserNotFound, "user_not_found"},
		{wrapTxErr(repository.ErrTxConflict), "conflict"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := resultLabel(tt.err); got != tt.want {
				t.Errorf("resultLabel(%v) = %q, ожидался %q", tt.err, got, tt.want)
			}
		})
	}
}
