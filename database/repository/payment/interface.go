package paymentRepo

import (
	"context"
	"time"

	"skybook/models"
)

// PaymentRepository owns payment documents and their append-only
// transaction sub-ledger.
type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)

	// AppendTransaction pushes a transaction unless one with the same
	// (provider, transactionId) already exists. Returns false when the
	// transaction was already recorded: that is the idempotency check for
	// at-least-once callback delivery, taken atomically in storage.
	AppendTransaction(ctx context.Context, paymentID string, txn models.Transaction) (bool, error)

	// SetOverall writes the derived status mirror, but only when the
	// current mirror is one of allowedFrom. Returns whether this caller
	// performed the transition; side effects belong to the winner only.
	SetOverall(ctx context.Context, paymentID, overall string, allowedFrom []string) (bool, error)

	// MarkRefundDue flags a payment whose money arrived after its seats
	// were gone. Reconciliation is an operator action.
	MarkRefundDue(ctx context.Context, paymentID string) error
	// AddRefund appends a refund sub-record.
	AddRefund(ctx context.Context, paymentID string, refund models.Refund) error

	// CancelPendingForBooking marks superseded pending payments cancelled
	// when the customer retries with a new payment.
	CancelPendingForBooking(ctx context.Context, bookingID string) error

	// FindExpired returns still-pending payments whose window has lapsed.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Payment, error)
}
