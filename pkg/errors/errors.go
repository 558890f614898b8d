package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func NotSignedIn() *AppError {
	return &AppError{
		Code:    "NOT_SIGNED_IN",
		Message: "You must be signed in to use chat",
		Status:  http.StatusUnauthorized,
	}
}

func SelfChat() *AppError {
	return &AppError{
		Code:    "SELF_CHAT",
		Message: "You cannot start a chat with yourself",
		Status:  http.StatusBadRequest,
	}
}

func RoomNotFound(err error) *AppError {
	return &AppError{
		Code:    "ROOM_NOT_FOUND",
		Message: "Chat room not found",
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func EmptyMessage() *AppError {
	return &AppError{
		Code:    "EMPTY_MESSAGE",
		Message: "Message text must not be empty",
		Status:  http.StatusBadRequest,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

// Store error codes. Permission problems get a distinct user-facing message
// because they usually mean a signed-out session or misconfigured backend
// rules rather than a transient fault.
const (
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeUnavailable      = "UNAVAILABLE"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeStoreUnknown     = "STORE_UNKNOWN"
)

func PermissionDenied(err error) *AppError {
	return &AppError{
		Code:    CodePermissionDenied,
		Message: "Missing or insufficient permissions",
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Unavailable(err error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: "Chat service is temporarily unavailable, please try again later",
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

func Unauthenticated(err error) *AppError {
	return &AppError{
		Code:    CodeUnauthenticated,
		Message: "Your session is no longer valid, please sign in again",
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func StoreUnknown(message string, err error) *AppError {
	return &AppError{
		Code:    CodeStoreUnknown,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// FromStore translates an underlying store failure into the taxonomy above.
// Errors that are already AppErrors pass through unchanged.
func FromStore(err error, fallback string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch status.Code(err) {
	case codes.PermissionDenied:
		return PermissionDenied(err)
	case codes.Unavailable:
		return Unavailable(err)
	case codes.Unauthenticated:
		return Unauthenticated(err)
	default:
		return StoreUnknown(fallback, err)
	}
}

// IsStoreNotFound reports whether err is the store's own not-found signal,
// before translation into ROOM_NOT_FOUND.
func IsStoreNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
