// Package apperror задаёт категории ошибок витрины. Хендлеры переводят их в HTTP-коды,
// сервисы возвращают их вместо голых sql/redis ошибок.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInternal    Kind = "internal"
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindConflict    Kind = "conflict"
	KindExhausted   Kind = "exhausted"
	KindUnavailable Kind = "unavailable"
)

// Error несёт Kind и сообщение. Msg можно отдавать клиенту для всех видов, кроме internal.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string, err error) error   { return New(KindNotFound, msg, err) }
func Validation(msg string, err error) error { return New(KindValidation, msg, err) }
func Conflict(msg string, err error) error   { return New(KindConflict, msg, err) }

// Validationf и Conflictf собирают сообщение по формату.
func Validationf(format string, args ...interface{}) error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

func Conflictf(format string, args ...interface{}) error {
	return New(KindConflict, fmt.Sprintf(format, args...), nil)
}

// Exhausted операция исчерпала допустимое число попыток.
func Exhausted(msg string, err error) error { return New(KindExhausted, msg, err) }

// Unavailable внешний получатель временно недоступен (например, открыт circuit breaker).
func Unavailable(msg string, err error) error { return New(KindUnavailable, msg, err) }

// KindOf возвращает категорию ближайшей *Error в цепочке или KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return KindInternal
	}
	return e.Kind
}

func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
