package cache

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// GetOrCompute реализует cache-aside чтение агрегата.
//
// Попадание возвращается без вызова compute. Промах вычисляет значение,
// сериализует его и кладёт в кэш с TTL безусловной перезаписью. Битая
// запись (ошибка десериализации) трактуется как промах и логируется —
// запрос из-за неё не падает. Одновременные промахи по одному ключу
// не дедуплицируются: повторное вычисление дешевле координации.
func GetOrCompute[T any](c domain.Cache, logger zerolog.Logger, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	prefix := keyPrefix(key)

	if raw, err := c.Get(key); err == nil {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.ObserveCacheLookup(prefix, "hit")
			return cached, nil
		}
		metrics.ObserveCacheLookup(prefix, "corrupt")
		logger.Warn().Str("key", key).Msg("cache: битая запись, пересчитываем")
	} else {
		metrics.ObserveCacheLookup(prefix, "miss")
	}

	value, err := compute()
	if err != nil {
		return value, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache: не удалось сериализовать значение")
		return value, nil
	}
	if err := c.Set(key, raw, ttl); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("cache: не удалось сохранить значение")
	}
	return value, nil
}

func keyPrefix(key string) string {
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
