// Пакет events — публикация доменных событий файловой экономики.
//
// События публикуются после коммита транзакции, доставка best-effort:
// ошибка публикации логируется и не откатывает операцию.
// Драйверы: log (только журнал), kafka (segmentio/kafka-go),
// redis (Redis Streams через go-redis).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/taskmasterai/community-module/internal/config"
	"github.com/taskmasterai/community-module/internal/domain/model"
)

// eventsPublishedTotal — количество опубликованных событий.
var eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cm_events_published_total",
	Help: "Количество опубликованных доменных событий (по драйверу и результату).",
}, []string{"driver", "result"})

// Publisher — публикация доменных событий.
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
	Close() error
}

// New создаёт Publisher по драйверу из конфигурации.
func New(cfg *config.Config, logger *slog.Logger) (Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsDriverKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	case config.EventsDriverRedis:
		return NewRedisStreamPublisher(cfg.RedisURL, cfg.RedisStream, logger)
	case config.EventsDriverLog, "":
		return NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("неизвестный драйвер событий %q", cfg.EventsDriver)
	}
}

// encode сериализует событие в JSON.
func encode(event model.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события %s: %w", event.Type, err)
	}
	return data, nil
}

func observe(driver string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublishedTotal.WithLabelValues(driver, result).Inc()
}

// LogPublisher — публикация событий только в журнал.
// Используется по умолчанию и при локальной разработке.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher создаёт LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With(slog.String("component", "events"))}
}

// Publish записывает событие в журнал.
func (p *LogPublisher) Publish(_ context.Context, event model.Event) error {
	p.logger.Info("Доменное событие",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
		slog.String("user_id", event.UserID),
		slog.String("file_id", event.FileID),
		slog.Any("payload", event.Payload),
	)
	observe(config.EventsDriverLog, nil)
	return nil
}

// Close ничего не делает.
func (p *LogPublisher) Close() error {
	return nil
}
