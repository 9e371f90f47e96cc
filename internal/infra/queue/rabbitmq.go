package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// RabbitNotificationQueue реализует очередь уведомлений через AMQP.
type RabbitNotificationQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string

	deliveries <-chan amqp.Delivery
}

// NewRabbitNotificationQueue подключается к RabbitMQ и объявляет durable очередь.
func NewRabbitNotificationQueue(amqpURL, queue string) (*RabbitNotificationQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitNotificationQueue{conn: conn, channel: channel, queue: queue}, nil
}

// Publish кладёт событие в очередь.
func (q *RabbitNotificationQueue) Publish(ctx context.Context, event domain.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие из очереди.
// ack(false) делает Nack с возвратом события в очередь.
func (q *RabbitNotificationQueue) Receive(ctx context.Context) (domain.NotificationEvent, domain.NotificationAckFunc, error) {
	if q.deliveries == nil {
		deliveries, err := q.channel.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.NotificationEvent{}, nil, fmt.Errorf("consume queue: %w", err)
		}
		q.deliveries = deliveries
	}

	for {
		select {
		case <-ctx.Done():
			return domain.NotificationEvent{}, nil, ctx.Err()
		case delivery, ok := <-q.deliveries:
			if !ok {
				return domain.NotificationEvent{}, nil, errors.New("rabbitmq queue: channel closed")
			}
			var event domain.NotificationEvent
			if err := json.Unmarshal(delivery.Body, &event); err != nil {
				// Нечитаемое событие подтверждаем, чтобы не зациклить доставку.
				_ = delivery.Ack(false)
				return domain.NotificationEvent{}, nil, fmt.Errorf("decode event: %w", err)
			}
			ack := func(success bool) error {
				if success {
					return delivery.Ack(false)
				}
				return delivery.Nack(false, true)
			}
			return event, ack, nil
		}
	}
}

// Close закрывает канал и соединение.
func (q *RabbitNotificationQueue) Close() error {
	if err := q.channel.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
