package apperror

import (
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

// ---- Ledger Business Logic (LEDGER) ----

// ErrInsufficientBalance rejects a reserve/deduct/fee exceeding the relevant
// balance bucket. Raised before any mutation takes place.
func ErrInsufficientBalance(bucket string) *AppError {
	return New("LEDGER_001", fmt.Sprintf("Insufficient %s balance", bucket), http.StatusPaymentRequired)
}

// ErrInvalidAmount rejects a non-positive amount.
func ErrInvalidAmount() *AppError {
	return New("LEDGER_002", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("LEDGER_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrInvalidStatusTransition rejects a commission or payout state change the
// status machine does not allow.
func ErrInvalidStatusTransition(from, to string) *AppError {
	return New("LEDGER_004", fmt.Sprintf("Cannot transition from %s to %s", from, to), http.StatusConflict)
}

// ---- Fees (FEE) ----

// ErrFeeNotWaivable guards against double refunds: only a charged fee may be
// waived.
func ErrFeeNotWaivable(status string) *AppError {
	return New("FEE_001", fmt.Sprintf("Fee in status %s cannot be waived", status), http.StatusConflict)
}

func ErrNotAFee() *AppError {
	return New("FEE_002", "Transaction is not a fee", http.StatusBadRequest)
}

// ---- Payouts (PAYOUT) ----

// ErrExternalTransferFailed marks a payout gateway failure. The wallet must
// not have been deducted when this is returned.
func ErrExternalTransferFailed(err error) *AppError {
	return Wrap("PAYOUT_001", "External transfer failed", http.StatusBadGateway, err)
}

func ErrPayoutNotProcessable(status string) *AppError {
	return New("PAYOUT_002", fmt.Sprintf("Payout in status %s cannot be processed", status), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LEDGER_002-style validation error.
func Validation(message string) *AppError {
	return New("LEDGER_002", message, http.StatusBadRequest)
}
