package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized возвращается, когда личность запроса не установлена.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden возвращается, когда пользователь не владеет целью операции.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidArgument возвращается при непригодных входных данных.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrChannelNotFound возвращается, когда канал не найден.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrMessageNotFound возвращается, когда сообщение не найдено.
	ErrMessageNotFound = errors.New("message not found")

	// ErrReactionNotFound возвращается при удалении реакции, которой нет
	// или значение которой не совпадает с сохранённым.
	ErrReactionNotFound = errors.New("reaction not found")

	// ErrStoreUnavailable помечает временный сбой хранилища; единственный
	// класс ошибок, который имеет смысл повторять.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreUnavailable помечает ошибку хранилища классом ErrStoreUnavailable,
// чтобы вызывающий код мог отличить временный сбой от доменной ошибки.
func StoreUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
