package booking

import "errors"

var (
	// ErrBookingNotFound covers lookups by id or reference.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrRetryWindowClosed means the booking can no longer take a new
	// payment attempt and must be rebooked.
	ErrRetryWindowClosed = errors.New("booking retry window closed")
	// ErrNotRetryable means the booking is not pending, so a new payment
	// attempt makes no sense.
	ErrNotRetryable = errors.New("booking is not awaiting payment")
	// ErrNotCancellable covers cancel attempts on already-terminal bookings.
	ErrNotCancellable = errors.New("booking cannot be cancelled")
	// ErrFlightNotBookable covers cancelled or departed flights.
	ErrFlightNotBookable = errors.New("flight is not open for booking")
)

// ValidationError carries a field-level message back to the request layer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
