package types

import "fmt"

// Error type strings carried in the response envelope. Dependency errors are
// surfaced as 500 like unexpected errors but keep a distinct type so outages
// of mail/storage are distinguishable from bugs in the logs.
const (
	ErrTypeValidation = "validation"
	ErrTypeAuth       = "auth"
	ErrTypeForbidden  = "forbidden"
	ErrTypeNotFound   = "not_found"
	ErrTypeConflict   = "conflict"
	ErrTypeDependency = "dependency"
	ErrTypeUnexpected = "unexpected"
)

type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// ValidationError builds a 400 error for malformed or missing input.
func ValidationError(message string) *CustomError {
	return &CustomError{Code: 400, Message: message, Type: ErrTypeValidation}
}

// AuthError builds a 401 error for a missing, invalid or expired credential.
func AuthError(message string) *CustomError {
	return &CustomError{Code: 401, Message: message, Type: ErrTypeAuth}
}

// ForbiddenError builds a 403 error for an authenticated user outside the allowed role set.
func ForbiddenError(message string) *CustomError {
	return &CustomError{Code: 403, Message: message, Type: ErrTypeForbidden}
}

// NotFoundError builds a 404 error for a missing resource.
func NotFoundError(message string) *CustomError {
	return &CustomError{Code: 404, Message: message, Type: ErrTypeNotFound}
}

// ConflictError builds a 409 error for unique-key violations, disallowed
// status transitions and lost optimistic-concurrency races.
func ConflictError(message string) *CustomError {
	return &CustomError{Code: 409, Message: message, Type: ErrTypeConflict}
}

// DependencyError builds a 500 error for a downstream service failure.
func DependencyError(message string) *CustomError {
	return &CustomError{Code: 500, Message: message, Type: ErrTypeDependency}
}
