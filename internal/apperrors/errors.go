package apperrors

import (
	"errors"
	"fmt"
)

// Kind классифицирует доменную ошибку
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindInvalidState  Kind = "invalid_state"
	KindAuthorization Kind = "authorization"
	KindDataIntegrity Kind = "data_integrity" // фатальная, требует внимания оператора
)

// Error типизированная ошибка сервисного слоя
type Error struct {
	Kind    Kind
	Message string
	// Slot заполняется для конфликтов расписания (время слота HH:MM)
	Slot string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// SlotConflict конфликт, привязанный к конкретному слоту расписания
func SlotConflict(slot, reason string) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("slot %s: %s", slot, reason),
		Slot:    slot,
	}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Authorization(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// DataIntegrity оборачивает причину нарушенного инварианта хранилища
func DataIntegrity(err error, format string, args ...any) *Error {
	return &Error{Kind: KindDataIntegrity, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf возвращает вид ошибки или пустую строку для нетипизированных ошибок
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Is проверяет, что ошибка типизирована и имеет нужный вид
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
