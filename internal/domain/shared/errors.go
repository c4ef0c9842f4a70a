package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound          = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists     = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput      = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInsufficientStock = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrHoldExpired       = NewDomainError("HOLD_EXPIRED", "Hold has expired")
	ErrHoldNotActive     = NewDomainError("HOLD_NOT_ACTIVE", "Hold is not in active state")
	ErrTerminalState     = NewDomainError("TERMINAL_STATE", "Order is already in a terminal state")
	ErrSystemBusy        = NewDomainError("SYSTEM_BUSY", "System is busy, try again later")
	ErrStockInvariant    = NewDomainError("STOCK_INVARIANT_VIOLATION", "Stock invariant violated")
	ErrTransient         = NewDomainError("TRANSIENT", "Transient storage failure, retries exhausted")
)
