package reactions

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

const maxValueRunes = 64

// ErrInvalidValue возвращается, когда значение реакции пустое или длиннее
// допустимого.
var ErrInvalidValue = fmt.Errorf("%w: недопустимое значение реакции", domain.ErrInvalidArgument)

// Service реализует постановку и снятие реакций.
type Service struct {
	events domain.EventRepo
	queue  domain.NotificationQueue
	logger zerolog.Logger
}

// NewService создаёт сервис реакций. queue может быть nil — тогда
// уведомления не публикуются.
func NewService(events domain.EventRepo, queue domain.NotificationQueue, logger zerolog.Logger) *Service {
	return &Service{
		events: events,
		queue:  queue,
		logger: logger.With().Str("component", "reactions").Logger(),
	}
}

// React ставит реакцию на сообщение. Повторная реакция того же
// пользователя заменяет прежнее значение — побеждает последняя запись.
func (s *Service) React(ctx context.Context, userID int64, subjectID, value string) (domain.Event, error) {
	if err := validate(subjectID, value); err != nil {
		return domain.Event{}, err
	}

	event, err := s.events.UpsertReaction(ctx, subjectID, userID, value)
	if errors.Is(err, domain.ErrMessageNotFound) {
		return domain.Event{}, err
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("сохранение реакции: %w", domain.StoreUnavailable(err))
	}

	s.publishReacted(ctx, event)
	return event, nil
}

// Unreact снимает реакцию. Значение должно совпасть с сохранённым,
// иначе возвращается domain.ErrReactionNotFound.
func (s *Service) Unreact(ctx context.Context, userID int64, subjectID, value string) error {
	if err := validate(subjectID, value); err != nil {
		return err
	}

	err := s.events.RemoveReaction(ctx, subjectID, userID, value)
	if errors.Is(err, domain.ErrReactionNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("удаление реакции: %w", domain.StoreUnavailable(err))
	}
	return nil
}

func validate(subjectID, value string) error {
	if _, err := uuid.Parse(subjectID); err != nil {
		return fmt.Errorf("%w: некорректный идентификатор сообщения %q", domain.ErrInvalidArgument, subjectID)
	}
	if value == "" || utf8.RuneCountInString(value) > maxValueRunes {
		return ErrInvalidValue
	}
	return nil
}

// publishReacted отправляет уведомление о реакции. Ошибка публикации не
// влияет на результат операции.
func (s *Service) publishReacted(ctx context.Context, event domain.Event) {
	if s.queue == nil {
		return
	}
	notification := domain.NotificationEvent{
		ID:        uuid.NewString(),
		Type:      domain.NotificationMessageReacted,
		SubjectID: event.SubjectID,
		ActorID:   event.ActorID,
		GroupKey:  event.GroupKey,
		Value:     event.Value,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.queue.Publish(ctx, notification); err != nil {
		s.logger.Warn().Err(err).Str("subject_id", event.SubjectID).Msg("не удалось опубликовать уведомление о реакции")
		return
	}
	metrics.NotificationsPublished.WithLabelValues(string(domain.NotificationMessageReacted)).Inc()
}
