package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/taskmasterai/community-module/internal/config"
	"github.com/taskmasterai/community-module/internal/domain/model"
)

// streamMaxLen — приблизительный предел длины потока (XADD MAXLEN ~).
const streamMaxLen = 100000

// streamAdder — подмножество *redis.Client, используемое публикатором.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisStreamPublisher — публикация событий в Redis Stream.
type RedisStreamPublisher struct {
	client streamAdder
	stream string
	logger *slog.Logger
}

// NewRedisStreamPublisher создаёт публикатор. redisURL — redis://... или host:port.
func NewRedisStreamPublisher(redisURL, stream string, logger *slog.Logger) (*RedisStreamPublisher, error) {
	client, err := connectRedis(redisURL)
	if err != nil {
		return nil, err
	}
	if stream == "" {
		return nil, fmt.Errorf("не задано имя Redis Stream")
	}
	return newRedisStreamPublisher(client, stream, logger), nil
}

func newRedisStreamPublisher(client streamAdder, stream string, logger *slog.Logger) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		logger: logger.With(slog.String("component", "redis_publisher")),
	}
}

// connectRedis создаёт клиента из URL или адреса host:port.
func connectRedis(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора URL Redis: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	if redisURL == "" {
		return nil, fmt.Errorf("не задан адрес Redis")
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Publish добавляет событие в поток.
func (p *RedisStreamPublisher) Publish(ctx context.Context, event model.Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"id":      event.ID,
			"type":    event.Type,
			"user_id": event.UserID,
			"payload": string(payload),
		},
	}).Err()
	observe(config.EventsDriverRedis, err)
	if err != nil {
		return fmt.Errorf("ошибка записи события в Redis Stream: %w", err)
	}
	p.logger.Debug("Событие опубликовано",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)
	return nil
}

// Close закрывает клиента Redis.
func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}
