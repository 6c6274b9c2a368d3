// Пакет service - бизнес-логика Lunch Planner.
// errors.go - ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict - запись используется другими данными.
	ErrConflict = errors.New("запись используется")
	// ErrInvalidRole - некорректная роль.
	ErrInvalidRole = errors.New("некорректная роль: допустимые значения staff, catering, admin")
	// ErrIDPUnavailable - Identity Provider (Keycloak) недоступен.
	ErrIDPUnavailable = errors.New("Identity Provider недоступен")
	// ErrValidation - ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)

// validationf создаёт ошибку валидации; её текст возвращается клиенту.
func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ValidationError - ErrValidation с причиной для клиента.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Is позволяет errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Reason возвращает причину для ответа клиенту. Для обычных ошибок -
// их текст.
func Reason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.msg
	}
	return err.Error()
}
