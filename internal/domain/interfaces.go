package domain

import (
	"context"
	"time"
)

// EventRepo управляет фактами прочтений и реакций.
type EventRepo interface {
	// RecordRead идемпотентно фиксирует прочтения и возвращает число
	// реально вставленных событий; дубликаты молча пропускаются.
	RecordRead(ctx context.Context, subjectIDs []string, actorID int64) (int, error)
	// UpsertReaction вставляет реакцию или заменяет значение существующей.
	UpsertReaction(ctx context.Context, subjectID string, actorID int64, value string) (Event, error)
	// RemoveReaction удаляет реакцию с совпадающим значением.
	// Возвращает ErrReactionNotFound, если подходящего события нет.
	RemoveReaction(ctx context.Context, subjectID string, actorID int64, value string) error
	// ListUnreadForActor возвращает чужие сообщения в каналах пользователя,
	// по которым нет события прочтения.
	ListUnreadForActor(ctx context.Context, actorID int64) ([]Message, error)
	// CountRewardSources возвращает сгруппированные счётчики событий,
	// засчитываемых в требования наград.
	CountRewardSources(ctx context.Context, userID int64) (map[string]int, error)
}

// ChannelRepo управляет каналами и сообщениями-субъектами.
type ChannelRepo interface {
	CreateChannel(ctx context.Context, title string) (Channel, error)
	AddMember(ctx context.Context, channelID string, userID int64) error
	ListMembers(ctx context.Context, channelID string) ([]int64, error)
	CreateMessage(ctx context.Context, channelID string, authorID int64) (Message, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// NotificationType описывает вид уведомления для разветвления доставки.
type NotificationType string

const (
	// NotificationMessageReacted — на сообщение поставили реакцию.
	NotificationMessageReacted NotificationType = "message_reacted"
	// NotificationMessagesRead — пользователь прочитал сообщения.
	NotificationMessagesRead NotificationType = "messages_read"
)

// NotificationEvent — событие для рассылки подключённым клиентам.
// Доставка best-effort: подтверждений от получателей не требуется.
type NotificationEvent struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	SubjectID string           `json:"subject_id,omitempty"`
	ActorID   int64            `json:"actor_id"`
	GroupKey  string           `json:"group_key"`
	Value     string           `json:"value,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationAckFunc подтверждает обработку или возвращает событие в очередь.
type NotificationAckFunc func(success bool) error

// NotificationQueue описывает очередь уведомлений между api и notifier.
type NotificationQueue interface {
	Publish(ctx context.Context, event NotificationEvent) error
	Receive(ctx context.Context) (NotificationEvent, NotificationAckFunc, error)
}
