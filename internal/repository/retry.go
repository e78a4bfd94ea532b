package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// txRetriesTotal — количество повторов транзакций из-за конфликтов.
var txRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cm_tx_retries_total",
	Help: "Количество повторов транзакций после конфликта параллельной записи.",
}, []string{"store"})

// RetryPolicy — политика повтора транзакций при конфликте.
type RetryPolicy struct {
	// MaxAttempts — максимальное число попыток (включая первую)
	MaxAttempts int
	// BaseDelay — базовая задержка перед повтором, растёт линейно с номером попытки
	BaseDelay time.Duration
}

// DefaultRetryPolicy — 5 попыток с базовой задержкой 5ms.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: 5 * time.Millisecond}

// RunWithRetry вызывает attempt, пока он возвращает ошибку, для которой
// retryable == true, но не более MaxAttempts раз. После исчерпания попыток
// возвращает ErrTxConflict с последней ошибкой в цепочке.
func RunWithRetry(ctx context.Context, policy RetryPolicy, storeName string, retryable func(error) bool, attempt func() error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for i := 1; i <= maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = attempt()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}

		if i == maxAttempts {
			break
		}
		txRetriesTotal.WithLabelValues(storeName).Inc()

		if policy.BaseDelay > 0 {
			// Джиттер разводит конкурирующие транзакции по времени
			delay := policy.BaseDelay*time.Duration(i) + time.Duration(rand.Int64N(int64(policy.BaseDelay)))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("%w: %d попыток: %w", ErrTxConflict, maxAttempts, lastErr)
}
