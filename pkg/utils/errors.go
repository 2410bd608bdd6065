package utils

import (
	"errors"
	"fmt"
)

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %d, message: %s, error: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so the predefined errors work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithErr create application error with original error
func NewErrorWithErr(code ResponseCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors
var (
	// Parameter errors
	ErrInvalidParam = NewError(CodeInvalidParam, "invalid parameter")

	// Idempotency errors
	ErrIdempotencyConflict = NewError(CodeConflict, "idempotency key already used with a different request payload")
	ErrIdempotencyInFlight = NewError(CodeIdempotencyInUse, "a request with this idempotency key is already being processed")

	// Product / stock errors
	ErrProductNotFound = NewError(CodeProductNotFound, "product not found")
	ErrOutOfStock      = NewError(CodeOutOfStock, "insufficient stock")

	// Order errors
	ErrOrderNotFound     = NewError(CodeOrderNotFound, "order not found")
	ErrInvalidTransition = NewError(CodeInvalidTransition, "invalid order status transition")
	ErrEmptyCart         = NewError(CodeEmptyCart, "order must contain at least one item")
	ErrOrderBelowMin     = NewError(CodeOrderBelowMin, "order total below minimum amount")

	// Reservation errors
	ErrReservationNotFound = NewError(CodeNotFound, "reservation not found")

	// Auth errors
	ErrUnauthorized = NewError(CodeUnauthorized, "invalid credentials")
	ErrInvalidToken = NewError(CodeUnauthorized, "invalid refresh token")
	ErrTokenReplay  = NewError(CodeTokenReplay, "token reuse detected, all sessions revoked, please log in again")

	// System errors
	ErrInternalError = NewError(CodeInternalError, "internal server error")
	ErrDatabaseError = NewError(CodeDatabaseError, "database error")
	ErrRedisError    = NewError(CodeRedisError, "redis error")
)

// IsAppError check if it's an application error
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage get error message
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
