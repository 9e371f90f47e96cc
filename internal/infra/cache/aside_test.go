package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type summary struct {
	Total   int            `json:"total"`
	ByGroup map[string]int `json:"by_group"`
}

func TestGetOrComputeCachesValue(t *testing.T) {
	mem := NewMemory()
	calls := 0
	compute := func() (summary, error) {
		calls++
		return summary{Total: 3, ByGroup: map[string]int{"a": 2, "b": 1}}, nil
	}

	first, err := GetOrCompute(mem, zerolog.Nop(), "unread:counts:1", time.Minute, compute)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := GetOrCompute(mem, zerolog.Nop(), "unread:counts:1", time.Minute, compute)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if calls != 1 {
		t.Fatalf("ожидали одно вычисление в пределах TTL, получили %d", calls)
	}
	if second.Total != first.Total || second.ByGroup["a"] != 2 {
		t.Fatalf("значение из кэша не совпало: %+v", second)
	}
}

func TestGetOrComputeRecomputesAfterTTL(t *testing.T) {
	mem := NewMemory()
	current := time.Now()
	mem.now = func() time.Time { return current }

	calls := 0
	compute := func() (int, error) {
		calls++
		return calls, nil
	}

	if _, err := GetOrCompute(mem, zerolog.Nop(), "rewards:progress:7", 30*time.Second, compute); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	current = current.Add(31 * time.Second)
	value, err := GetOrCompute(mem, zerolog.Nop(), "rewards:progress:7", 30*time.Second, compute)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls != 2 {
		t.Fatalf("ожидали пересчёт после истечения TTL, вычислений: %d", calls)
	}
	if value != 2 {
		t.Fatalf("ожидали свежее значение 2, получили %d", value)
	}
}

func TestGetOrComputeTreatsCorruptEntryAsMiss(t *testing.T) {
	mem := NewMemory()
	if err := mem.Set("unread:counts:9", []byte("{обрывок"), time.Minute); err != nil {
		t.Fatalf("не удалось подготовить кэш: %v", err)
	}

	calls := 0
	value, err := GetOrCompute(mem, zerolog.Nop(), "unread:counts:9", time.Minute, func() (summary, error) {
		calls++
		return summary{Total: 5}, nil
	})
	if err != nil {
		t.Fatalf("битая запись не должна ронять запрос: %v", err)
	}
	if calls != 1 {
		t.Fatalf("ожидали пересчёт из-за битой записи")
	}
	if value.Total != 5 {
		t.Fatalf("ожидали вычисленное значение, получили %+v", value)
	}

	// После пересчёта запись перезаписана валидным значением.
	calls = 0
	_, err = GetOrCompute(mem, zerolog.Nop(), "unread:counts:9", time.Minute, func() (summary, error) {
		calls++
		return summary{}, nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls != 0 {
		t.Fatalf("ожидали попадание в кэш после восстановления")
	}
}

func TestGetOrComputeDoesNotCacheComputeError(t *testing.T) {
	mem := NewMemory()
	boom := errors.New("хранилище недоступно")

	_, err := GetOrCompute(mem, zerolog.Nop(), "unread:counts:2", time.Minute, func() (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ожидали ошибку вычисления как есть, получили %v", err)
	}

	value, err := GetOrCompute(mem, zerolog.Nop(), "unread:counts:2", time.Minute, func() (int, error) {
		return 7, nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if value != 7 {
		t.Fatalf("ошибка не должна была закэшироваться, получили %d", value)
	}
}

func TestKeyPrefix(t *testing.T) {
	if got := keyPrefix("unread:counts:42"); got != "unread" {
		t.Fatalf("ожидали префикс unread, получили %q", got)
	}
	if got := keyPrefix("plain"); got != "plain" {
		t.Fatalf("ожидали ключ целиком, получили %q", got)
	}
}
