package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/cache"
)

// Service считает прогресс пользователя по требованиям наград.
type Service struct {
	events   domain.EventRepo
	cache    domain.Cache
	logger   zerolog.Logger
	cacheTTL time.Duration
}

// NewService создаёт сервис прогресса наград.
func NewService(events domain.EventRepo, cacheStore domain.Cache, logger zerolog.Logger, cacheTTL time.Duration) *Service {
	return &Service{
		events:   events,
		cache:    cacheStore,
		logger:   logger.With().Str("component", "rewards").Logger(),
		cacheTTL: cacheTTL,
	}
}

// Progress возвращает счётчики по всем типам требований. Отсутствующие
// типы заполняются нулями, чтобы форма ответа не зависела от данных.
func (s *Service) Progress(ctx context.Context, userID int64) (domain.RewardProgress, error) {
	key := fmt.Sprintf("rewards:progress:%d", userID)
	return cache.GetOrCompute(s.cache, s.logger, key, s.cacheTTL, func() (domain.RewardProgress, error) {
		counts, err := s.events.CountRewardSources(ctx, userID)
		if err != nil {
			return domain.RewardProgress{}, fmt.Errorf("подсчёт прогресса наград: %w", domain.StoreUnavailable(err))
		}
		progress := domain.RewardProgress{UserID: userID, Counts: make(map[string]int, 4)}
		for _, requirement := range []string{
			domain.RewardMessagesAuthored,
			domain.RewardReactionsGiven,
			domain.RewardReactionsReceived,
			domain.RewardChannelsJoined,
		} {
			progress.Counts[requirement] = counts[requirement]
		}
		return progress, nil
	})
}
