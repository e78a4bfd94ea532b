package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskmasterai/community-module/internal/domain/model"
)

// Economy — константы файловой экономики.
type Economy struct {
	// FilesPerBonus — количество загрузок на один бонус
	FilesPerBonus int
	// TokensPerBonus — токены за один бонус
	TokensPerBonus int64
	// TokensPerDownload — токены владельцу за скачивание
	TokensPerDownload int64
	// StartingBalance — стартовый баланс нового пользователя
	StartingBalance int64
	// AbuseEscalationThreshold — число предупреждений для эскалации
	AbuseEscalationThreshold int
}

// DefaultEconomy возвращает значения по умолчанию: бонус 50 токенов
// за каждые 5 загрузок, 5 токенов за скачивание, стартовый баланс 100.
func DefaultEconomy() Economy {
	return Economy{
		FilesPerBonus:            5,
		TokensPerBonus:           50,
		TokensPerDownload:        5,
		StartingBalance:          100,
		AbuseEscalationThreshold: 3,
	}
}

// expectedGroups — количество полных групп загрузок, за которые положен бонус.
func (e Economy) expectedGroups(fileCount int) int {
	if e.FilesPerBonus <= 0 {
		return 0
	}
	return fileCount / e.FilesPerBonus
}

// EventPublisher — публикация доменных событий.
// Реализации — в пакете events.
type EventPublisher interface {
	Publish(ctx context.Context, event model.Event) error
}

// newEvent создаёт доменное событие с новым UUID.
func newEvent(eventType, userID, fileID string, payload map[string]any, now time.Time) model.Event {
	return model.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		UserID:     userID,
		FileID:     fileID,
		Payload:    payload,
		OccurredAt: now.UTC(),
	}
}

// publishAll публикует события после коммита. Ошибка публикации не
// откатывает операцию: состояние уже зафиксировано, событие логируется.
func publishAll(ctx context.Context, publisher EventPublisher, logger *slog.Logger, events ...model.Event) {
	if publisher == nil {
		return
	}
	for _, ev := range events {
		if err := publisher.Publish(ctx, ev); err != nil {
			logger.Warn("Ошибка публикации доменного события",
				slog.String("event_type", ev.Type),
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
