// Package apperror defines the error kinds surfaced by stores and services and
// the HTTP status each kind maps to.
package apperror

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Error is a classified failure carrying a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps a JSON field path to its validation message.
	Fields map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func ValidationFields(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	return statusFor(KindOf(err))
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CascadeError reports a multi-step write that failed after some of its
// steps had already been committed. The committed steps are not undone.
type CascadeError struct {
	Operation string
	Completed []string
	Failed    string
	Err       error
}

func NewCascadeError(operation string, completed []string, failed string, err error) *CascadeError {
	return &CascadeError{
		Operation: operation,
		Completed: append([]string(nil), completed...),
		Failed:    failed,
		Err:       err,
	}
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Summary(), e.Err)
}

// Summary describes the partial write without the cause.
func (e *CascadeError) Summary() string {
	return fmt.Sprintf("%s partially applied: step %s failed after [%s]",
		e.Operation, e.Failed, strings.Join(e.Completed, ", "))
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}
