// errors.go — ошибки сервисного слоя.
package service

import (
	"errors"
	"net/http"

	"github.com/bigkaa/goartstore/console-module/internal/gateway"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrSessionExpired — сессия истекла, нужен повторный вход.
	ErrSessionExpired = errors.New("сессия истекла")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrUnexpectedResponse — ответ API не удалось разобрать.
	ErrUnexpectedResponse = errors.New("неожиданная форма ответа API")
)

// RequestError — неуспешный исход запроса к API. Message передаётся
// пользователю без изменений.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Unwrap сопоставляет HTTP-статус с ошибкой сервисного слоя.
func (e *RequestError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrSessionExpired
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return nil
	}
}

// outcomeError превращает неуспешный исход в ошибку. Для успешного — nil.
func outcomeError(out gateway.Outcome) error {
	if out.Success {
		return nil
	}
	return &RequestError{Status: out.Status, Message: out.Error}
}
