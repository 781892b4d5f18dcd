package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind классифицирует ошибку для клиента и для политики повторов
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindRateLimited         Kind = "rate_limited"
	KindValidation          Kind = "validation"
	KindAuthorizationDenied Kind = "authorization_denied"
	KindTransientIO         Kind = "transient_io"
	KindNotFound            Kind = "not_found"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
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

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap помечает ошибку хранилища как временную
func Wrap(err error, message string) *Error {
	return &Error{Kind: KindTransientIO, Message: message, Err: err}
}

var (
	ErrUnauthorized   = Errorf(KindUnauthorized, "unauthorized")
	ErrNotParticipant = Errorf(KindAuthorizationDenied, "not a participant of this chat")
	ErrMessageMissing = Errorf(KindNotFound, "message not found")
)

// KindOf возвращает вид ошибки; неизвестные ошибки считаются временными
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransientIO
}

// Retryable: повторять имеет смысл только временные ошибки и превышение лимита
func (k Kind) Retryable() bool {
	return k == KindTransientIO || k == KindRateLimited
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// KindFromStatus восстанавливает вид ошибки по HTTP-ответу шлюза
func KindFromStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusForbidden:
		return KindAuthorizationDenied
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindTransientIO
	}
}

// PublicMessage скрывает детали временных ошибок от клиента
func PublicMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		if se.Kind == KindTransientIO {
			return se.Message
		}
		return se.Error()
	}
	return "internal error"
}
