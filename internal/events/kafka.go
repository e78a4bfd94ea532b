package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/taskmasterai/community-module/internal/config"
	"github.com/taskmasterai/community-module/internal/domain/model"
)

// messageWriter — подмножество *kafka.Writer, используемое публикатором.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher — публикация событий в топик Kafka.
// Ключ сообщения — userID: события одного пользователя попадают
// в одну партицию и сохраняют порядок.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher создаёт публикатор с синхронной записью и подтверждением всех реплик.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("для публикации в Kafka нужен хотя бы один брокер")
	}
	if topic == "" {
		return nil, fmt.Errorf("не задан топик Kafka")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: false,
	}
	return newKafkaPublisher(writer, topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With(slog.String("component", "kafka_publisher")),
	}
}

// Publish записывает событие в топик.
func (p *KafkaPublisher) Publish(ctx context.Context, event model.Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	})
	observe(config.EventsDriverKafka, err)
	if err != nil {
		return fmt.Errorf("ошибка записи события в Kafka: %w", err)
	}
	p.logger.Debug("Событие опубликовано",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)
	return nil
}

// Close закрывает writer, дожидаясь отправки буферизованных сообщений.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
