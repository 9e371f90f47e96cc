package unread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/cache"
)

const (
	msgA1 = "11111111-1111-1111-1111-111111111111"
	msgA2 = "22222222-2222-2222-2222-222222222222"
	msgB1 = "33333333-3333-3333-3333-333333333333"
)

type stubEventRepo struct {
	recorded    map[string]struct{}
	unread      []domain.Message
	listCalls   int
	recordErr   error
	listErr     error
	lastActorID int64
}

func newStubEventRepo() *stubEventRepo {
	return &stubEventRepo{recorded: make(map[string]struct{})}
}

func (s *stubEventRepo) RecordRead(_ context.Context, subjectIDs []string, actorID int64) (int, error) {
	if s.recordErr != nil {
		return 0, s.recordErr
	}
	s.lastActorID = actorID
	inserted := 0
	for _, id := range subjectIDs {
		if _, ok := s.recorded[id]; ok {
			continue
		}
		s.recorded[id] = struct{}{}
		inserted++
	}
	return inserted, nil
}

func (s *stubEventRepo) UpsertReaction(context.Context, string, int64, string) (domain.Event, error) {
	return domain.Event{}, nil
}

func (s *stubEventRepo) RemoveReaction(context.Context, string, int64, string) error { return nil }

func (s *stubEventRepo) ListUnreadForActor(context.Context, int64) ([]domain.Message, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.unread, nil
}

func (s *stubEventRepo) CountRewardSources(context.Context, int64) (map[string]int, error) {
	return nil, nil
}

type stubQueue struct {
	published []domain.NotificationEvent
	err       error
}

func (q *stubQueue) Publish(_ context.Context, event domain.NotificationEvent) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, event)
	return nil
}

func (q *stubQueue) Receive(context.Context) (domain.NotificationEvent, domain.NotificationAckFunc, error) {
	return domain.NotificationEvent{}, nil, errors.New("не используется")
}

func TestMarkReadSkipsDuplicates(t *testing.T) {
	repo := newStubEventRepo()
	service := NewService(repo, cache.NewMemory(), nil, zerolog.Nop(), time.Minute)

	inserted, err := service.MarkRead(context.Background(), 42, []string{msgA1, msgA2})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("ожидали 2 новых события, получили %d", inserted)
	}

	inserted, err = service.MarkRead(context.Background(), 42, []string{msgA1, msgA2, msgB1})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("дубликаты должны пропускаться, получили %d", inserted)
	}
	if repo.lastActorID != 42 {
		t.Fatalf("ожидали actor 42, получили %d", repo.lastActorID)
	}
}

func TestMarkReadRejectsMalformedID(t *testing.T) {
	service := NewService(newStubEventRepo(), cache.NewMemory(), nil, zerolog.Nop(), time.Minute)
	_, err := service.MarkRead(context.Background(), 42, []string{"не-uuid"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("ожидали ErrInvalidArgument, получили %v", err)
	}
}

func TestMarkReadEmptyBatchIsNoop(t *testing.T) {
	repo := newStubEventRepo()
	repo.recordErr = errors.New("до репозитория доходить не должно")
	service := NewService(repo, cache.NewMemory(), nil, zerolog.Nop(), time.Minute)
	inserted, err := service.MarkRead(context.Background(), 42, nil)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("ожидали 0, получили %d", inserted)
	}
}

func TestMarkReadWrapsStoreFailure(t *testing.T) {
	repo := newStubEventRepo()
	repo.recordErr = errors.New("connection refused")
	service := NewService(repo, cache.NewMemory(), nil, zerolog.Nop(), time.Minute)
	_, err := service.MarkRead(context.Background(), 42, []string{msgA1})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("ожидали ErrStoreUnavailable, получили %v", err)
	}
}

func TestMarkReadPublishesOnlyOnNewEvents(t *testing.T) {
	repo := newStubEventRepo()
	queue := &stubQueue{}
	service := NewService(repo, cache.NewMemory(), queue, zerolog.Nop(), time.Minute)

	if _, err := service.MarkRead(context.Background(), 42, []string{msgA1}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.published) != 1 {
		t.Fatalf("ожидали 1 уведомление, получили %d", len(queue.published))
	}
	if queue.published[0].Type != domain.NotificationMessagesRead {
		t.Fatalf("неверный тип уведомления: %s", queue.published[0].Type)
	}

	// Повтор той же пачки не порождает уведомления.
	if _, err := service.MarkRead(context.Background(), 42, []string{msgA1}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.published) != 1 {
		t.Fatalf("дубликат не должен публиковать уведомление")
	}
}

func TestMarkReadPublishFailureDoesNotFailRequest(t *testing.T) {
	repo := newStubEventRepo()
	queue := &stubQueue{err: errors.New("очередь лежит")}
	service := NewService(repo, cache.NewMemory(), queue, zerolog.Nop(), time.Minute)
	inserted, err := service.MarkRead(context.Background(), 42, []string{msgA1})
	if err != nil {
		t.Fatalf("сбой публикации не должен ронять запрос: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("ожидали 1, получили %d", inserted)
	}
}

func TestCountsGroupsByChannel(t *testing.T) {
	repo := newStubEventRepo()
	repo.unread = []domain.Message{
		{ID: msgA1, ChannelID: "channel-a", AuthorID: 7},
		{ID: msgA2, ChannelID: "channel-a", AuthorID: 7},
		{ID: msgB1, ChannelID: "channel-b", AuthorID: 9},
	}
	service := NewService(repo, cache.NewMemory(), nil, zerolog.Nop(), time.Minute)

	summary, err := service.Counts(context.Background(), 42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if summary.Total != 3 {
		t.Fatalf("ожидали сумму 3, получили %d", summary.Total)
	}
	if summary.ByGroup["channel-a"] != 2 || summary.ByGroup["channel-b"] != 1 {
		t.Fatalf("неверная разбивка по каналам: %+v", summary.ByGroup)
	}
}

func TestCountsServedFromCacheWithinTTL(t *testing.T) {
	repo := newStubEventRepo()
	repo.unread = []domain.Message{{ID: msgA1, ChannelID: "channel-a", AuthorID: 7}}
	service := NewService(repo, cache.NewMemory(), nil, zerolog.Nop(), time.Minute)

	if _, err := service.Counts(context.Background(), 42); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := service.Counts(context.Background(), 42); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("в пределах TTL хранилище читается один раз, вызовов: %d", repo.listCalls)
	}
}

func TestCountsMarksStoreFailure(t *testing.T) {
	repo := newStubEventRepo()
	repo.listErr = errors.New("connection refused")
	service := NewService(repo, cache.NewMemory(), nil, zerolog.Nop(), time.Minute)
	_, err := service.Counts(context.Background(), 42)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("ожидали ErrStoreUnavailable, получили %v", err)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Total != 0 || len(summary.ByGroup) != 0 {
		t.Fatalf("пустой список должен давать нулевой агрегат: %+v", summary)
	}
}
