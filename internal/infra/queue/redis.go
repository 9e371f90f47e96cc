package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// RedisNotificationQueue реализует очередь уведомлений на базе Redis lists.
type RedisNotificationQueue struct {
	client *redis.Client
	key    string
}

// NewRedisNotificationQueue создаёт очередь по указанному ключу.
func NewRedisNotificationQueue(client *redis.Client, key string) *RedisNotificationQueue {
	return &RedisNotificationQueue{client: client, key: key}
}

// Publish кладёт событие в очередь.
func (q *RedisNotificationQueue) Publish(ctx context.Context, event domain.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие из очереди.
// ack(false) возвращает событие в хвост очереди для повторной доставки.
func (q *RedisNotificationQueue) Receive(ctx context.Context) (domain.NotificationEvent, domain.NotificationAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.NotificationEvent{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.NotificationEvent{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.NotificationEvent{}, nil, err
		}
		if len(res) != 2 {
			return domain.NotificationEvent{}, nil, errors.New("redis queue: unexpected response")
		}
		payload := []byte(res[1])
		var event domain.NotificationEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return domain.NotificationEvent{}, nil, fmt.Errorf("decode event: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.LPush(context.Background(), q.key, payload).Err()
		}
		return event, ack, nil
	}
}
