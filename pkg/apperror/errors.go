package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet Business Logic (WAL) ----

func ErrNotFound(entity string) *AppError {
	return New("WAL_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicateAsset() *AppError {
	return New("WAL_002", "Asset already exists for this user and symbol", http.StatusConflict)
}

func ErrInsufficientBalance() *AppError {
	return New("WAL_003", "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrInvalidState(detail string) *AppError {
	return New("WAL_004", detail, http.StatusConflict)
}

func ErrConcurrentModification(err error) *AppError {
	return Wrap("WAL_005", "Ledger modified concurrently, retry the operation", http.StatusConflict, err)
}

func ErrStoreUnavailable(err error) *AppError {
	return Wrap("WAL_006", "Backing store unavailable", http.StatusServiceUnavailable, err)
}

func ErrInvalidAmount() *AppError {
	return New("WAL_007", "Invalid amount", http.StatusBadRequest)
}

// Validation returns a WAL_007-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("WAL_007", message, http.StatusBadRequest)
}

func ErrWithdrawalsSuspended() *AppError {
	return New("WAL_008", "Withdrawals are suspended for this asset", http.StatusForbidden)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// IsRetryable reports whether the error is a transient kind the engine may
// retry internally. Business-rule violations are never retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == "WAL_005" || appErr.Code == "WAL_006"
}

// CodeOf extracts the AppError code, or "" for untyped errors.
func CodeOf(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return ""
	}
	return appErr.Code
}
