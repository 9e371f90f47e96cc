package retry

import "time"

// Do вызывает fn и при ошибке повторяет до maxRetries дополнительных раз
// с экспоненциально удваивающейся задержкой, начиная с initialDelay.
// Последняя ошибка возвращается как есть, без оборачивания — вызывающий
// код сверяет её через errors.Is. Джиттера и потолка задержки нет:
// обёртка рассчитана на редкие внутренние вызовы, не на общий backoff.
func Do[T any](fn func() (T, error), maxRetries int, initialDelay time.Duration) (T, error) {
	value, err := fn()
	if err == nil {
		return value, nil
	}
	delay := initialDelay
	for attempt := 0; attempt < maxRetries; attempt++ {
		time.Sleep(delay)
		delay *= 2
		value, err = fn()
		if err == nil {
			return value, nil
		}
	}
	return value, err
}
