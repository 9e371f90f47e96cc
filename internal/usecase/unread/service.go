package unread

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/cache"
	"social-pulse/internal/infra/metrics"
)

// Service реализует учёт прочтений и агрегацию непрочитанного.
type Service struct {
	events   domain.EventRepo
	cache    domain.Cache
	queue    domain.NotificationQueue
	logger   zerolog.Logger
	cacheTTL time.Duration
}

// NewService создаёт сервис непрочитанного. queue может быть nil —
// тогда уведомления о прочтении не публикуются.
func NewService(events domain.EventRepo, cacheStore domain.Cache, queue domain.NotificationQueue, logger zerolog.Logger, cacheTTL time.Duration) *Service {
	return &Service{
		events:   events,
		cache:    cacheStore,
		queue:    queue,
		logger:   logger.With().Str("component", "unread").Logger(),
		cacheTTL: cacheTTL,
	}
}

// MarkRead фиксирует прочтения пачкой. Повторные и неизвестные
// идентификаторы пропускаются; возвращается число новых событий.
// После успешной вставки счётчики пользователя в кэше устаревают сами
// по TTL — точечная инвалидация дороже, чем короткое окно неточности.
func (s *Service) MarkRead(ctx context.Context, userID int64, subjectIDs []string) (int, error) {
	if len(subjectIDs) == 0 {
		return 0, nil
	}
	for _, id := range subjectIDs {
		if _, err := uuid.Parse(id); err != nil {
			return 0, fmt.Errorf("%w: некорректный идентификатор сообщения %q", domain.ErrInvalidArgument, id)
		}
	}

	inserted, err := s.events.RecordRead(ctx, subjectIDs, userID)
	if err != nil {
		return 0, fmt.Errorf("запись прочтений: %w", domain.StoreUnavailable(err))
	}

	if inserted > 0 {
		s.publishRead(ctx, userID)
	}
	return inserted, nil
}

// Counts возвращает агрегат непрочитанного: счётчики по каналам и сумму.
// Чтение идёт через кэш; ключ включает пользователя целиком.
func (s *Service) Counts(ctx context.Context, userID int64) (domain.UnreadSummary, error) {
	metrics.UnreadRequestsTotal.Inc()

	key := fmt.Sprintf("unread:counts:%d", userID)
	return cache.GetOrCompute(s.cache, s.logger, key, s.cacheTTL, func() (domain.UnreadSummary, error) {
		messages, err := s.events.ListUnreadForActor(ctx, userID)
		if err != nil {
			return domain.UnreadSummary{}, fmt.Errorf("выборка непрочитанного: %w", domain.StoreUnavailable(err))
		}
		return Summarize(messages), nil
	})
}

// Summarize сворачивает непрочитанные сообщения в счётчики по каналам.
// Сумма по каналам всегда равна общему количеству.
func Summarize(messages []domain.Message) domain.UnreadSummary {
	summary := domain.UnreadSummary{ByGroup: make(map[string]int, 8)}
	for _, m := range messages {
		summary.ByGroup[m.ChannelID]++
		summary.Total++
	}
	return summary
}

// publishRead отправляет уведомление о прочтении. Ошибка публикации не
// влияет на результат операции.
func (s *Service) publishRead(ctx context.Context, userID int64) {
	if s.queue == nil {
		return
	}
	event := domain.NotificationEvent{
		ID:        uuid.NewString(),
		Type:      domain.NotificationMessagesRead,
		ActorID:   userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.queue.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("не удалось опубликовать уведомление о прочтении")
		return
	}
	metrics.NotificationsPublished.WithLabelValues(string(domain.NotificationMessagesRead)).Inc()
}
