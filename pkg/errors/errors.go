// Package errors defines the watcher's error sentinels and the AppError
// wrapper that carries the HTTP status a failure maps to.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrReportFailed     = errors.New("stale report delivery failed")
)

// AppError is a failed operation. It matches both its Kind sentinel and the
// underlying cause with errors.Is.
type AppError struct {
	Op         string
	Kind       error
	Err        error
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *AppError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Store marks a failed store command. It maps to 500.
func Store(op string, err error) error {
	return &AppError{Op: op, Kind: ErrStoreUnavailable, Err: err, StatusCode: http.StatusInternalServerError}
}

// Invalid marks rejected caller input. It maps to 400.
func Invalid(op, format string, args ...any) error {
	return &AppError{Op: op, Kind: ErrInvalidInput, Err: fmt.Errorf(format, args...), StatusCode: http.StatusBadRequest}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	if errors.Is(err, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
