package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Status  int       `json:"-"`
	// Upstream is the backend's own status code for ErrServer.
	Upstream int   `json:"-"`
	Err      error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode is picked up by middleware.ErrorHandler.
func (e *AppError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	case ErrTransport, ErrServer, ErrDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrConflict

	// Backend call taxonomy
	ErrTransport
	ErrServer
	ErrValidation
	ErrDecode
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

// Validation reports a client-side check that failed before any network call.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

// Transport reports a request that never produced a backend response.
func Transport(op string, err error) *AppError {
	return &AppError{
		Code:    ErrTransport,
		Message: fmt.Sprintf("%s: backend unreachable", op),
		Err:     err,
	}
}

// Server reports a non-2xx backend response. status is the backend's status code.
func Server(status int, message string) *AppError {
	return &AppError{
		Code:     ErrServer,
		Message:  message,
		Status:   passthroughStatus(status),
		Upstream: status,
	}
}

// Decode reports a 2xx backend response whose body could not be read.
// status is the backend's status code.
func Decode(op string, status int, err error) *AppError {
	return &AppError{
		Code:     ErrDecode,
		Message:  fmt.Sprintf("%s: malformed backend response", op),
		Upstream: status,
		Err:      err,
	}
}

// Code returns the ErrorCode of err, or ErrInternal if err is not an AppError.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && Code(err) == code
}

// As is errors.As for *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// BackendStatus returns the backend status code carried by a Server error, or 0.
func BackendStatus(err error) int {
	if appErr, ok := As(err); ok && appErr.Code == ErrServer {
		return appErr.Upstream
	}
	return 0
}

// 4xx statuses are relayed as-is, anything else becomes a gateway error.
func passthroughStatus(status int) int {
	if status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}
