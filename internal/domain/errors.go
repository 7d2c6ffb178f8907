package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired операция изменения требует неанонимного аккаунта.
	ErrAuthRequired = errors.New("требуется вход в аккаунт")
	// ErrForbidden операция доступна только владельцу объявления.
	ErrForbidden = errors.New("операция доступна только владельцу")
	// ErrNotFound объявления нет в каноническом наборе.
	ErrNotFound = errors.New("объявление не найдено")
	// ErrRemoteUnavailable запись не удалось ни выполнить, ни отложить.
	ErrRemoteUnavailable = errors.New("удалённое хранилище недоступно")
	// ErrAIUnavailable ассистент не настроен или недоступен.
	ErrAIUnavailable = errors.New("ассистент недоступен")
)

// InvalidTransitionError недопустимый переход между статусами.
type InvalidTransitionError struct {
	From ListingStatus
	To   ListingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("недопустимый переход статуса: %s -> %s", e.From, e.To)
}

// ValidationError поле создаваемого объявления не прошло проверку.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("поле %s: %s", e.Field, e.Reason)
}
