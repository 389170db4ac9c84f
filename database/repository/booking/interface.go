package bookingRepo

import (
	"context"
	"errors"
	"time"

	"skybook/models"
)

// ErrDuplicateReference is returned by Create when the generated booking
// reference collides with an existing one. Callers regenerate and retry.
var ErrDuplicateReference = errors.New("booking reference already exists")

// BookingRepository defines booking data access. The implementation owns
// the PII codec: contact phone and passenger document numbers are
// encrypted on every write and decrypted on every read, so no caller can
// bypass field encryption.
type BookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)

	// UpdateStatus moves the booking between lifecycle states.
	UpdateStatus(ctx context.Context, id, status string) error
	// TransitionStatus moves the booking to a new status only when its
	// current status is one of from, reporting whether this caller won.
	// Confirmation runs through this so that concurrent finalizations
	// issue tickets and notify exactly once.
	TransitionStatus(ctx context.Context, id string, from []string, to string) (bool, error)
	// SetPaymentSummary refreshes the embedded payment mirror.
	SetPaymentSummary(ctx context.Context, id string, summary models.PaymentSummary) error
	// SetTicketNumbers writes issued ticket numbers onto the passengers.
	SetTicketNumbers(ctx context.Context, id string, segments []models.Segment) error

	// TransitionInventoryState flips the booking's hold marker with a
	// conditional update and reports whether this caller won. Exactly one
	// caller wins each transition, which is what keeps inventory commit
	// and release from running twice under concurrent callbacks.
	TransitionInventoryState(ctx context.Context, id, from, to string) (bool, error)

	// FindStalePending returns pending bookings created before the cutoff.
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	// FindCancelledBefore returns never-paid cancelled bookings last
	// touched before the cutoff. Feeds the long-term purge.
	FindCancelledBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
	// Delete purges a never-paid booking. Scheduled cleanup use only.
	Delete(ctx context.Context, id string) error
}
