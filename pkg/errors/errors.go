package errors

import (
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so a derived error still satisfies errors.Is against
// the predefined value it was built from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) WithDetails(details any) *AppError {
	c := *e
	c.Details = details
	return &c
}

func (e *AppError) WithError(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

func (e *AppError) WithMessage(message string) *AppError {
	c := *e
	c.Message = message
	return &c
}

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Malformed request",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrValidation = &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "Invalid input",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests, please try again later",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// Checkout errors
var (
	ErrGateway = &AppError{
		Code:       "GATEWAY_ERROR",
		Message:    "Payment gateway request failed",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrMissingReference = &AppError{
		Code:       "MISSING_REFERENCE",
		Message:    "No payment reference found",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrSubmissionInProgress = &AppError{
		Code:       "SUBMISSION_IN_PROGRESS",
		Message:    "A payment is already being processed for this session",
		HTTPStatus: http.StatusConflict,
	}

	ErrResetRequired = &AppError{
		Code:       "RESET_REQUIRED",
		Message:    "Reset the checkout before starting a new payment",
		HTTPStatus: http.StatusConflict,
	}

	ErrSessionNotFound = &AppError{
		Code:       "SESSION_NOT_FOUND",
		Message:    "Checkout session not found or expired",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUnknownCountry = &AppError{
		Code:       "UNKNOWN_COUNTRY",
		Message:    "Country is not supported",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUnknownCurrency = &AppError{
		Code:       "UNKNOWN_CURRENCY",
		Message:    "Currency is not supported",
		HTTPStatus: http.StatusNotFound,
	}

	ErrTransactionNotFound = &AppError{
		Code:       "TRANSACTION_NOT_FOUND",
		Message:    "Transaction not found",
		HTTPStatus: http.StatusNotFound,
	}
)
