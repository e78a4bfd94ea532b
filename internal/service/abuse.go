// abuse.go — сверка счётчика бонусов с фактическим числом файлов.
//
// Бонусы начисляются по числу загрузок; если файлы удаляются после
// получения бонуса, сохранённый uploadBonusCount становится больше
// положенного. Монитор исправляет счётчик вниз и выдаёт предупреждение.
// Токены не списываются: подсистема только обнаруживает и сообщает.
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

// AbuseReport — результат проверки пользователя.
type AbuseReport struct {
	UserID         string `json:"user_id"`
	FileCount      int    `json:"file_count"`
	ExpectedGroups int    `json:"expected_groups"`
	// StoredGroups — счётчик бонусов до исправления
	StoredGroups int `json:"stored_groups"`
	// Corrected — счётчик исправлен в этой проверке
	Corrected    bool `json:"corrected"`
	WarningCount int  `json:"warning_count"`
	// Escalate — количество предупреждений достигло порога
	Escalate bool `json:"escalate"`
}

// AbuseMonitor — обнаружение расхождения счётчика бонусов.
type AbuseMonitor struct {
	store     repository.Store
	economy   Economy
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewAbuseMonitor создаёт монитор.
func NewAbuseMonitor(store repository.Store, economy Economy, publisher EventPublisher, logger *slog.Logger) *AbuseMonitor {
	return &AbuseMonitor{
		store:     store,
		economy:   economy,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "abuse_monitor")),
		now:       time.Now,
	}
}

// CheckAbuse сверяет счётчик бонусов пользователя. Повторный вызов без
// нового расхождения ничего не меняет. Для неизвестного пользователя
// возвращает пустой отчёт.
func (m *AbuseMonitor) CheckAbuse(ctx context.Context, userID string) (*AbuseReport, error) {
	var report AbuseReport
	err := m.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		report = AbuseReport{UserID: userID}

		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("ошибка получения пользователя: %w", err)
		}

		count, err := tx.CountFilesByOwner(ctx, userID)
		if err != nil {
			return fmt.Errorf("ошибка подсчёта файлов: %w", err)
		}

		report.FileCount = count
		report.ExpectedGroups = m.economy.expectedGroups(count)
		report.StoredGroups = u.UploadBonusCount

		if u.UploadBonusCount > report.ExpectedGroups {
			u.UploadBonusCount = report.ExpectedGroups
			u.AbuseWarningCount++
			u.UpdatedAt = m.now().UTC()
			if err := tx.UpdateUser(ctx, u); err != nil {
				return fmt.Errorf("ошибка исправления счётчика бонусов: %w", err)
			}
			report.Corrected = true
		}

		report.WarningCount = u.AbuseWarningCount
		report.Escalate = u.AbuseWarningCount >= m.economy.AbuseEscalationThreshold
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}

	if !report.Corrected {
		return &report, nil
	}

	abuseCorrectionsTotal.Inc()
	m.logger.Warn("Исправлен завышенный счётчик бонусов",
		slog.String("user_id", userID),
		slog.Int("file_count", report.FileCount),
		slog.Int("stored_groups", report.StoredGroups),
		slog.Int("expected_groups", report.ExpectedGroups),
		slog.Int("warning_count", report.WarningCount),
	)

	now := m.now()
	events := []model.Event{
		newEvent(model.EventAbuseCorrected, userID, "", map[string]any{
			"file_count":      report.FileCount,
			"stored_groups":   report.StoredGroups,
			"expected_groups": report.ExpectedGroups,
			"warning_count":   report.WarningCount,
		}, now),
	}
	if report.Escalate {
		m.logger.Error("Требуется эскалация: превышен порог предупреждений",
			slog.String("user_id", userID),
			slog.Int("warning_count", report.WarningCount),
			slog.Int("threshold", m.economy.AbuseEscalationThreshold),
		)
		events = append(events, newEvent(model.EventEscalationRequired, userID, "", map[string]any{
			"warning_count": report.WarningCount,
			"threshold":     m.economy.AbuseEscalationThreshold,
		}, now))
	}
	publishAll(ctx, m.publisher, m.logger, events...)
	return &report, nil
}
