package payment

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	bookingRepo "skybook/database/repository/booking"
	inventoryRepo "skybook/database/repository/inventory"
	paymentRepo "skybook/database/repository/payment"
	"skybook/models"
	"skybook/services/codes"
	"skybook/services/payment/gateway"
	"skybook/services/notification"

	"go.uber.org/zap"
)

// ErrAmountMismatch is raised when a verified callback reports an amount
// different from the payment's own record. It is treated like a failed
// payment and logged for manual reconciliation: a matching signature does
// not make a wrong amount right.
var ErrAmountMismatch = errors.New("callback amount does not match payment amount")

// ErrPaymentNotFound covers callbacks and status lookups for unknown
// payments.
var ErrPaymentNotFound = errors.New("payment not found")

// Service is the payment state machine. It owns the payment lifecycle and
// reconciles verified gateway outcomes into booking and inventory state.
// Every terminal state is re-derivable by replaying the transaction list,
// which is what makes a crash between steps recoverable.
type Service struct {
	Payments  paymentRepo.PaymentRepository
	Bookings  bookingRepo.BookingRepository
	Inventory inventoryRepo.InventoryRepository
	Codes     *codes.Engine
	Notifier  notification.Notifier
	Logger    *zap.Logger

	// BookingWindow bounds how long a booking stays retryable after
	// creation before a failed payment cancels it.
	BookingWindow time.Duration
}

// ApplyCallback records a verified callback outcome and performs the
// side effects of any first transition into a terminal overall status.
// Replays of the same (provider, transactionId) return the current state
// without re-applying side effects.
func (s *Service) ApplyCallback(ctx context.Context, provider string, res *gateway.CallbackResult) (*models.Payment, error) {
	p, err := s.Payments.GetByReference(ctx, res.OrderRef)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s", ErrPaymentNotFound, res.OrderRef)
	}

	now := time.Now()
	txn := models.Transaction{
		Provider:      provider,
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		ResponseCode:  res.ResponseCode,
		InitiatedAt:   now,
		CompletedAt:   &now,
	}
	switch {
	case res.Success && res.Amount != p.Amount.Total:
		// Amount tampering defense: signature and response code say
		// success, the money says otherwise.
		s.Logger.Error("callback amount mismatch, treating as failed",
			zap.String("payment", p.ID),
			zap.String("provider", provider),
			zap.String("transaction", res.TransactionID),
			zap.Int64("expected", p.Amount.Total),
			zap.Int64("reported", res.Amount))
		txn.Status = models.TxnFailed
		txn.FailureReason = "amount mismatch"
	case res.Success:
		txn.Status = models.TxnSuccess
	default:
		txn.Status = models.TxnFailed
		txn.FailureReason = res.FailureReason
	}

	// Idempotency: the (provider, transactionId) pair maps to at most one
	// logical outcome. A replayed delivery short-circuits here; the append
	// below closes the race between two concurrent first deliveries.
	if existing := p.FindTransaction(provider, res.TransactionID); existing != nil && existing.Terminal() {
		return s.Status(ctx, p.ID)
	}
	inserted, err := s.Payments.AppendTransaction(ctx, p.ID, txn)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return s.Status(ctx, p.ID)
	}

	p, err = s.Payments.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	overall := DeriveOverall(p, now)

	switch overall {
	case models.PayPaid:
		// Only the caller that flips the mirror into paid runs the
		// success side effects; everyone else already sees paid.
		won, err := s.Payments.SetOverall(ctx, p.ID, models.PayPaid, []string{
			models.PayPending, models.PayProcessing, models.PayFailed,
			models.PayCancelled, models.PayExpired,
		})
		if err != nil {
			return nil, err
		}
		if won {
			s.finalizeSuccess(ctx, p)
		}
	case models.PayFailed, models.PayCancelled, models.PayExpired:
		won, err := s.Payments.SetOverall(ctx, p.ID, overall, []string{
			models.PayPending, models.PayProcessing,
		})
		if err != nil {
			return nil, err
		}
		if won {
			s.finalizeFailure(ctx, p, overall, txn.FailureReason)
		}
	default:
		if _, err := s.Payments.SetOverall(ctx, p.ID, overall, nil); err != nil {
			return nil, err
		}
	}

	if txn.FailureReason == "amount mismatch" {
		return p, ErrAmountMismatch
	}
	return s.Status(ctx, p.ID)
}

// finalizeSuccess commits inventory, confirms the booking, issues tickets
// and redeems the payment code. Called by the transition winner and by
// read-time reconciliation; each inner step is individually guarded, so
// replays finish what a crash left behind without running anything twice.
func (s *Service) finalizeSuccess(ctx context.Context, p *models.Payment) {
	b, err := s.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		s.Logger.Error("paid payment references missing booking",
			zap.String("payment", p.ID), zap.String("booking", p.BookingID), zap.Error(err))
		return
	}

	won, err := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvHeld, models.InvCommitted)
	if err != nil {
		s.Logger.Error("failed to transition inventory state", zap.String("booking", b.ID), zap.Error(err))
		return
	}
	if won {
		s.commitHolds(ctx, b)
	} else {
		late, err := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvReleased, models.InvCommitted)
		if err != nil {
			s.Logger.Error("failed to transition inventory state", zap.String("booking", b.ID), zap.Error(err))
			return
		}
		if late {
			if !s.reacquireHolds(ctx, p, b) {
				return
			}
		} else if b.InventoryState != models.InvCommitted || b.Status == models.BookingConfirmed {
			// Another caller owns the transition, or everything already
			// finished. Losing with the seats committed and the booking
			// still unconfirmed means an earlier run crashed after the
			// commit; fall through and finish its remaining steps.
			return
		}
	}

	// Confirmation is the claim on the rest: whoever flips the status
	// issues tickets, redeems the code and notifies, exactly once.
	confirmed, err := s.Bookings.TransitionStatus(ctx, b.ID, []string{
		models.BookingPending, models.BookingCancelled,
	}, models.BookingConfirmed)
	if err != nil {
		s.Logger.Error("failed to confirm booking", zap.String("booking", b.ID), zap.Error(err))
		return
	}
	if !confirmed {
		return
	}
	s.issueTickets(ctx, b)
	s.mirrorSummary(ctx, b, p, models.PayPaid)

	if b.PaymentCode != "" {
		// Limits are re-verified atomically in storage; exhaustion at this
		// point means concurrent confirmations beat us to the last slot.
		// The money is already taken, so log for reconciliation instead of
		// failing the confirmation.
		if err := s.Codes.RecordUsage(ctx, b.PaymentCode, b.UserID, b.ID, b.Payment.Amount.Discount); err != nil {
			s.Logger.Error("failed to record payment code usage at confirmation",
				zap.String("booking", b.ID),
				zap.String("code", b.PaymentCode),
				zap.Error(err))
		}
	}

	s.Notifier.BookingConfirmed(ctx, b)
	s.Logger.Info("booking confirmed",
		zap.String("booking", b.ID),
		zap.String("reference", b.Reference),
		zap.String("payment", p.ID))
}

// reacquireHolds handles a successful callback arriving after the expiry
// sweep released the holds. The caller already won the released->committed
// transition. Policy: re-acquire every hold; if any class was resold in
// the meantime, keep the money recorded but flag the payment refund_due
// for operator reconciliation.
func (s *Service) reacquireHolds(ctx context.Context, p *models.Payment, b *models.Booking) bool {
	var acquired []models.Segment
	for _, seg := range b.Segments {
		qty := b.SeatCount(seg)
		if err := s.Inventory.Hold(ctx, seg.FlightID, seg.Class, qty); err != nil {
			s.Logger.Error("late payment success but seats resold, flagging refund",
				zap.String("booking", b.ID),
				zap.String("payment", p.ID),
				zap.String("flight", seg.FlightID),
				zap.String("class", seg.Class),
				zap.Error(err))
			for _, got := range acquired {
				if rerr := s.Inventory.Release(ctx, got.FlightID, got.Class, b.SeatCount(got)); rerr != nil {
					s.Logger.Error("failed to release re-acquired hold", zap.Error(rerr))
				}
			}
			if _, terr := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvCommitted, models.InvReleased); terr != nil {
				s.Logger.Error("failed to restore inventory state", zap.Error(terr))
			}
			if merr := s.Payments.MarkRefundDue(ctx, p.ID); merr != nil {
				s.Logger.Error("failed to mark refund due", zap.Error(merr))
			}
			return false
		}
		acquired = append(acquired, seg)
	}
	s.commitHolds(ctx, b)
	return true
}

func (s *Service) commitHolds(ctx context.Context, b *models.Booking) {
	for _, seg := range b.Segments {
		qty := b.SeatCount(seg)
		if err := s.Inventory.Commit(ctx, seg.FlightID, seg.Class, qty); err != nil {
			s.Logger.Error("failed to commit inventory hold",
				zap.String("booking", b.ID),
				zap.String("flight", seg.FlightID),
				zap.String("class", seg.Class),
				zap.Error(err))
		}
	}
}

// finalizeFailure releases held inventory and decides the booking's fate:
// still inside the retry window it stays pending so the customer can pay
// again, past the window it is cancelled.
func (s *Service) finalizeFailure(ctx context.Context, p *models.Payment, overall, reason string) {
	b, err := s.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		s.Logger.Error("failed payment references missing booking",
			zap.String("payment", p.ID), zap.String("booking", p.BookingID), zap.Error(err))
		return
	}

	won, err := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvHeld, models.InvReleased)
	if err != nil {
		s.Logger.Error("failed to transition inventory state", zap.String("booking", b.ID), zap.Error(err))
		return
	}
	if !won {
		// Another caller released the holds and owns the rest.
		return
	}
	for _, seg := range b.Segments {
		qty := b.SeatCount(seg)
		if err := s.Inventory.Release(ctx, seg.FlightID, seg.Class, qty); err != nil {
			s.Logger.Error("failed to release inventory hold",
				zap.String("booking", b.ID),
				zap.String("flight", seg.FlightID),
				zap.String("class", seg.Class),
				zap.Error(err))
		}
	}

	s.mirrorSummary(ctx, b, p, overall)
	if time.Since(b.CreatedAt) > s.BookingWindow {
		if err := s.Bookings.UpdateStatus(ctx, b.ID, models.BookingCancelled); err != nil {
			s.Logger.Error("failed to cancel booking past retry window", zap.String("booking", b.ID), zap.Error(err))
		}
	}
	s.Notifier.PaymentFailed(ctx, b, reason)
}

func (s *Service) mirrorSummary(ctx context.Context, b *models.Booking, p *models.Payment, overall string) {
	summary := models.PaymentSummary{
		PaymentID: p.ID,
		Amount:    p.Amount,
		Method:    p.Provider,
		Status:    overall,
	}
	if err := s.Bookings.SetPaymentSummary(ctx, b.ID, summary); err != nil {
		s.Logger.Error("failed to mirror payment summary", zap.String("booking", b.ID), zap.Error(err))
	}
}

// issueTickets stamps a ticket number onto every passenger missing one.
func (s *Service) issueTickets(ctx context.Context, b *models.Booking) {
	changed := false
	for i := range b.Segments {
		for j := range b.Segments[i].Passengers {
			p := &b.Segments[i].Passengers[j]
			if p.TicketNumber == "" {
				p.TicketNumber = newTicketNumber()
				changed = true
			}
		}
	}
	if !changed {
		return
	}
	if err := s.Bookings.SetTicketNumbers(ctx, b.ID, b.Segments); err != nil {
		s.Logger.Error("failed to store ticket numbers", zap.String("booking", b.ID), zap.Error(err))
	}
}

// newTicketNumber returns an IATA-style 13-digit ticket number.
func newTicketNumber() string {
	const digits = "0123456789"
	out := make([]byte, 10)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			// crypto/rand failing means the process has bigger problems.
			panic(fmt.Sprintf("ticket number generation failed: %v", err))
		}
		out[i] = digits[n.Int64()]
	}
	return "738" + string(out)
}

// Status returns the payment with its overall status freshly derived from
// the transaction list. A stale mirror (crash between append and
// transition) is repaired here, side effects included: a read observing a
// terminal payment finishes whatever that payment still owes the booking.
func (s *Service) Status(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, err := s.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	derived := DeriveOverall(p, time.Now())
	if derived != p.Overall {
		if _, err := s.Payments.SetOverall(ctx, p.ID, derived, nil); err != nil {
			s.Logger.Warn("failed to refresh payment status mirror", zap.String("payment", p.ID), zap.Error(err))
		}
		p.Overall = derived
	}
	s.reconcile(ctx, p, derived)
	return p, nil
}

// reconcile runs the finalization a terminal payment is still owed. The
// mirror can reach a terminal value without side effects having run: a
// crash between transaction append and finalization, or an expiry derived
// during a status poll. The booking's inventory state says whether work
// remains; the inner steps are all individually guarded, so re-running a
// completed finalization is a no-op.
func (s *Service) reconcile(ctx context.Context, p *models.Payment, overall string) {
	switch overall {
	case models.PayPaid:
		b, err := s.Bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return
		}
		if b.InventoryState == models.InvCommitted && b.Status == models.BookingConfirmed {
			if b.Payment.PaymentID == p.ID && b.Payment.Status != models.PayPaid {
				s.mirrorSummary(ctx, b, p, models.PayPaid)
			}
			return
		}
		s.finalizeSuccess(ctx, p)
	case models.PayFailed, models.PayCancelled, models.PayExpired:
		b, err := s.Bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			return
		}
		// Only the booking's current payment may release its holds: after
		// a retry the booking is held again for the replacement payment.
		if b.InventoryState != models.InvHeld || b.Payment.PaymentID != p.ID {
			return
		}
		s.finalizeFailure(ctx, p, overall, failureReason(p, overall))
	}
}

// failureReason picks the reason reported to the customer for a terminal
// failure repaired outside the callback path.
func failureReason(p *models.Payment, overall string) string {
	if overall == models.PayExpired {
		return "payment window expired"
	}
	for i := len(p.Transactions) - 1; i >= 0; i-- {
		if r := p.Transactions[i].FailureReason; r != "" {
			return r
		}
	}
	return ""
}

// ExpireSweep marks payments past their validity window expired and
// releases their holds. Run periodically by the background worker.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.Payments.FindExpired(ctx, now, 200)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range stale {
		p := &stale[i]
		won, err := s.Payments.SetOverall(ctx, p.ID, models.PayExpired, []string{
			models.PayPending, models.PayProcessing,
		})
		if err != nil {
			s.Logger.Error("failed to expire payment", zap.String("payment", p.ID), zap.Error(err))
			continue
		}
		if !won {
			continue
		}
		expired++
		s.finalizeFailure(ctx, p, models.PayExpired, "payment window expired")
	}
	return expired, nil
}
