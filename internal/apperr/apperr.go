// Package apperr classifies pipeline failures so transports can map them to
// responses without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindStorage    Kind = "storage"
	KindMetadata   Kind = "metadata"
	KindQueue      Kind = "queue"
	KindProcessing Kind = "processing"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error { return New(KindValidation, message, nil) }

func Storage(message string, cause error) *Error { return New(KindStorage, message, cause) }

func Metadata(message string, cause error) *Error { return New(KindMetadata, message, cause) }

func Queue(message string, cause error) *Error { return New(KindQueue, message, cause) }

func Processing(message string, cause error) *Error { return New(KindProcessing, message, cause) }

func NotFound(message string) *Error { return New(KindNotFound, message, nil) }

func Conflict(message string) *Error { return New(KindConflict, message, nil) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnsupportedMediaType
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
