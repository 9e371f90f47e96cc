package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrMiss возвращается Memory.Get при отсутствии или истечении ключа.
var ErrMiss = errors.New("cache: key not found")

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory — потокобезопасный in-process кэш с TTL. Используется в тестах
// и в развёртываниях без Redis. Истёкшие записи не отдаются при чтении,
// физически удаляются при последующих записях.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now подменяется в тестах для контроля истечения TTL.
	now func() time.Time
}

// NewMemory создаёт пустой кэш.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

// Once выполняет функцию, если ключ ещё не задан.
func (m *Memory) Once(key string, ttl time.Duration, fn func() error) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && m.now().Before(e.expiresAt) {
		m.mu.Unlock()
		return nil
	}
	m.entries[key] = memoryEntry{value: []byte("1"), expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Set задаёт значение и попутно вычищает истёкшие записи.
func (m *Memory) Set(key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	m.entries[key] = memoryEntry{value: buf, expiresAt: now.Add(ttl)}
	return nil
}

// Get возвращает значение либо ErrMiss.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || m.now().After(e.expiresAt) {
		return nil, ErrMiss
	}
	buf := make([]byte, len(e.value))
	copy(buf, e.value)
	return buf, nil
}
