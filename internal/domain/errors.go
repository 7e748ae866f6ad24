package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Lookup errors
	ErrAccountNotFound  = errors.New("credit account not found")
	ErrPaymentNotFound  = errors.New("credit payment not found")
	ErrCustomerNotFound = errors.New("customer not found")

	// State errors
	ErrAccountClosed = errors.New("account is closed — no further payments accepted")
	ErrOverpayment   = errors.New("payment exceeds the remaining balance")

	// Concurrency errors
	ErrStaleAccount = errors.New("account was modified concurrently — retry")

	// Integrity errors
	ErrIntegrity    = errors.New("change would break the ledger identity total = paid + remaining")
	ErrNegativePaid = errors.New("delta would drive paid amount negative")
	ErrNumberTaken  = errors.New("account number already in use")
)

// ValidationError reports malformed or out-of-range input, with enough
// detail for a user-facing message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is any of the lookup failures.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}

// IsConflict reports whether err describes a state that forbids the
// operation right now (closed account, rejected overpayment, or a
// concurrent-modification conflict that survived its retries).
func IsConflict(err error) bool {
	return errors.Is(err, ErrAccountClosed) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrStaleAccount)
}
