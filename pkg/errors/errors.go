package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by the storefront packages.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrCorruptData    = errors.New("corrupt persisted data")
)

// kind is how one class of failure is shown to clients. An empty message
// means the error text itself is safe to show.
type kind struct {
	sentinel error
	code     string
	status   int
	message  string
}

var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, ""},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized, "authentication required"},
	{ErrConflict, "CONFLICT", http.StatusConflict, "request conflicts with the current state"},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service temporarily unavailable"},
}

var internalKind = kind{code: "INTERNAL_ERROR", status: http.StatusInternalServerError, message: "an internal error occurred"}

func kindOf(err error) kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k
		}
	}
	return internalKind
}

// AppError is an error with a client-facing code and message.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(sentinel error, message string) *AppError {
	k := kindOf(sentinel)
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
}

// NotFound reports a missing resource, e.g. NotFound("cart line", "p1/M").
func NotFound(resource, id string) *AppError {
	return newAppError(ErrNotFound, fmt.Sprintf("%s %s not found", resource, id))
}

// InvalidInput reports a request the caller must fix.
func InvalidInput(message string) *AppError {
	return newAppError(ErrInvalidInput, message)
}

// Unauthorized reports missing or rejected credentials.
func Unauthorized(message string) *AppError {
	return newAppError(ErrUnauthorized, message)
}

// Conflict reports a request that cannot apply to the current cart.
func Conflict(message string) *AppError {
	return newAppError(ErrConflict, message)
}

// ServiceUnavailable reports an unreachable collaborator.
func ServiceUnavailable(message string) *AppError {
	return newAppError(ErrServiceUnavail, message)
}

// Corrupt wraps a decode failure of a persisted document.
func Corrupt(what string, err error) error {
	return fmt.Errorf("%s: %w: %w", what, ErrCorruptData, err)
}

// Classify returns the status, code and client-safe message for err. An
// AppError reports its own; wrapped sentinels use their kind; anything else
// is an internal error whose text is not exposed.
func Classify(err error) (status int, code, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Code, appErr.Message
	}
	k := kindOf(err)
	if k.message == "" {
		return k.status, k.code, err.Error()
	}
	return k.status, k.code, k.message
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	status, _, _ := Classify(err)
	return status
}
