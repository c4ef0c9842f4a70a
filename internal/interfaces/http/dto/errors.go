package dto

import "net/http"

// Error code constants surfaced by the API
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeValidation is used when request validation fails
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeAlreadyExists is used when an insert conflicts with an
	// existing resource
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	// ErrCodeInvalidInput is used for semantically invalid input
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeInsufficientStock is used when hold admission is refused
	ErrCodeInsufficientStock = "INSUFFICIENT_STOCK"
	// ErrCodeHoldExpired is used when the hold passed its deadline
	ErrCodeHoldExpired = "HOLD_EXPIRED"
	// ErrCodeHoldNotActive is used when the hold left the active state
	ErrCodeHoldNotActive = "HOLD_NOT_ACTIVE"
	// ErrCodeTerminalState is used when an order is already settled
	ErrCodeTerminalState = "TERMINAL_STATE"
	// ErrCodeSystemBusy is used when the admission lock wait ran out
	ErrCodeSystemBusy = "SYSTEM_BUSY"
	// ErrCodeStockInvariant is used when an impossible stock state is seen
	ErrCodeStockInvariant = "STOCK_INVARIANT_VIOLATION"
	// ErrCodeTransient is used when the deadlock retry budget ran out
	ErrCodeTransient = "TRANSIENT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:          http.StatusInternalServerError,
	ErrCodeValidation:        http.StatusUnprocessableEntity,
	ErrCodeInvalidInput:      http.StatusUnprocessableEntity,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeAlreadyExists:     http.StatusConflict,
	ErrCodeInsufficientStock: http.StatusConflict,
	ErrCodeHoldExpired:       http.StatusGone,
	ErrCodeHoldNotActive:     http.StatusConflict,
	ErrCodeTerminalState:     http.StatusConflict,
	ErrCodeSystemBusy:        http.StatusServiceUnavailable,
	ErrCodeStockInvariant:    http.StatusInternalServerError,
	ErrCodeTransient:         http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
