// Package apperr defines the application error taxonomy and its HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries an HTTP status code and a customer-safe message alongside the
// wrapped cause. The cause is only surfaced outside production.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
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

// Is matches errors by code so sentinel comparisons like
// errors.Is(err, apperr.ErrNotFound) work across instances.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation flags malformed or out-of-range input.
func Validation(message string) *Error {
	return New(http.StatusBadRequest, message, nil)
}

// InsufficientStock names the offending product so the customer knows which
// line made the whole checkout abort.
func InsufficientStock(productName string) *Error {
	return New(http.StatusBadRequest, fmt.Sprintf("insufficient stock for product %q", productName), nil)
}

// Unauthorized flags a missing credential or a webhook signature mismatch.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message, nil)
}

// NotFound flags a missing order, product, or user.
func NotFound(what string) *Error {
	return New(http.StatusNotFound, fmt.Sprintf("%s not found", what), nil)
}

// Gateway flags an external processor failure after retries are exhausted.
func Gateway(err error) *Error {
	return New(http.StatusBadGateway, "payment gateway unavailable", err)
}

// Internal flags an unexpected storage or runtime failure.
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "internal server error", err)
}

// Common sentinels
var (
	ErrEmptyCart = Validation("cart is empty")
)

// StatusCode extracts the HTTP status for any error, defaulting to 500.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// PublicMessage extracts the customer-safe message for any error.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
