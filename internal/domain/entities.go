package domain

import "time"

// EventKind описывает тип зафиксированного факта.
type EventKind string

const (
	// EventKindRead — пользователь прочитал сообщение.
	EventKindRead EventKind = "read"
	// EventKindReaction — пользователь отреагировал на сообщение.
	EventKindReaction EventKind = "reaction"
)

// Event представляет атомарный факт действия пользователя над сообщением.
// Связка (SubjectID, ActorID, Kind) уникальна: повторное прочтение не создаёт
// дубликата, повторная реакция заменяет значение предыдущей.
type Event struct {
	SubjectID string
	ActorID   int64
	Kind      EventKind
	Value     string
	GroupKey  string
	CreatedAt time.Time
}

// Channel описывает канал — группу, к которой принадлежат сообщения.
type Channel struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Message представляет сообщение-субъект. GroupKey денормализуется в события
// при записи и после создания не меняется.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  int64
	CreatedAt time.Time
}

// UnreadSummary содержит агрегат непрочитанного: количество по каналам и сумму.
type UnreadSummary struct {
	Total   int            `json:"unread_count"`
	ByGroup map[string]int `json:"channel_unread_counts"`
}

// RewardProgress содержит счётчики прогресса наград по типам требований.
type RewardProgress struct {
	UserID int64          `json:"user_id"`
	Counts map[string]int `json:"counts"`
}

// Типы требований наград, считаемые из событий платформы.
const (
	RewardMessagesAuthored  = "messages_authored"
	RewardReactionsGiven    = "reactions_given"
	RewardReactionsReceived = "reactions_received"
	RewardChannelsJoined    = "channels_joined"
)
