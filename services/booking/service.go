package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingRepo "skybook/database/repository/booking"
	catalogRepo "skybook/database/repository/catalog"
	inventoryRepo "skybook/database/repository/inventory"
	paymentRepo "skybook/database/repository/payment"
	"skybook/models"
	"skybook/services/codes"
	"skybook/services/payment/gateway"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxPassengersPerSegment = 9

// Service orchestrates booking creation and lifecycle. It owns the
// ordering that keeps the three-party dance honest: price, then hold
// seats, then persist, then hand off to the payment gateway. Nothing here
// confirms a booking; that is the payment state machine's job.
type Service struct {
	Bookings  bookingRepo.BookingRepository
	Payments  paymentRepo.PaymentRepository
	Inventory inventoryRepo.InventoryRepository
	Catalog   catalogRepo.CatalogRepository
	Codes     *codes.Engine
	Gateways  *gateway.Registry
	Logger    *zap.Logger

	// PaymentWindow bounds a single payment attempt; BookingWindow bounds
	// how long a pending booking accepts new attempts.
	PaymentWindow time.Duration
	BookingWindow time.Duration
}

// CreateBooking validates, prices, holds seats, persists the booking and
// opens the first payment attempt. When the gateway is unreachable the
// booking and its holds survive and the error is returned alongside the
// response, so the customer can retry payment without rebooking.
func (s *Service) CreateBooking(ctx context.Context, req *models.BookingRequest) (*models.BookingResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	segments, fares, currency, err := s.resolveSegments(ctx, req.Segments)
	if err != nil {
		return nil, err
	}
	amount := priceSegments(segments, fares)
	amount.Currency = currency

	if req.PaymentCode != "" {
		pc, err := s.Codes.Validate(ctx, req.PaymentCode)
		if err != nil {
			return nil, err
		}
		if err := s.Codes.CanUserUse(pc, req.UserID); err != nil {
			return nil, err
		}
		// The discount is priced in now but usage is only recorded at
		// confirmation, so abandoned carts never burn a redemption.
		amount.Discount = codes.CalculateDiscount(pc, amount.Total)
		amount.Total -= amount.Discount
	}

	if err := s.holdAll(ctx, segments); err != nil {
		return nil, err
	}

	now := time.Now()
	b := &models.Booking{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		Contact:        req.Contact,
		Segments:       segments,
		PaymentCode:    req.PaymentCode,
		Status:         models.BookingPending,
		InventoryState: models.InvHeld,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.persistWithFreshReference(ctx, b); err != nil {
		s.releaseAll(ctx, segments)
		return nil, err
	}

	return s.openPayment(ctx, b, req.Provider, amount)
}

// RetryPayment opens a fresh payment attempt for a pending booking.
// Released holds are re-acquired first; the customer may switch providers
// between attempts. Superseded pending payments are cancelled so only one
// attempt is live at a time.
func (s *Service) RetryPayment(ctx context.Context, reference, provider string) (*models.BookingResponse, error) {
	if _, err := s.Gateways.Get(provider); err != nil {
		return nil, invalid("provider", err.Error())
	}
	b, err := s.Bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	if b.Status != models.BookingPending {
		return nil, ErrNotRetryable
	}
	if time.Since(b.CreatedAt) > s.BookingWindow {
		return nil, ErrRetryWindowClosed
	}

	// A failed or expired attempt released the seats; claim the hold
	// marker back before touching the ledger so concurrent retries cannot
	// double-hold.
	won, err := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvReleased, models.InvHeld)
	if err != nil {
		return nil, err
	}
	if won {
		if err := s.holdAll(ctx, b.Segments); err != nil {
			if _, terr := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvHeld, models.InvReleased); terr != nil {
				s.Logger.Error("failed to restore inventory state after hold failure",
					zap.String("booking", b.ID), zap.Error(terr))
			}
			return nil, err
		}
	}

	if err := s.Payments.CancelPendingForBooking(ctx, b.ID); err != nil {
		s.Logger.Warn("failed to cancel superseded payments", zap.String("booking", b.ID), zap.Error(err))
	}

	amount := b.Payment.Amount
	if amount.Total == 0 {
		// First attempt never got a payment document; reprice.
		fares, currency, err := s.lookupFares(ctx, b.Segments)
		if err != nil {
			return nil, err
		}
		amount = priceSegments(b.Segments, fares)
		amount.Currency = currency
	}
	return s.openPayment(ctx, b, provider, amount)
}

// CancelBooking cancels a booking. Pending bookings release their holds;
// confirmed bookings return sold seats to the pool and get a full refund
// recorded against their payment.
func (s *Service) CancelBooking(ctx context.Context, reference string) error {
	b, err := s.Bookings.GetByReference(ctx, reference)
	if err != nil {
		return ErrBookingNotFound
	}

	switch b.Status {
	case models.BookingPending:
		won, err := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvHeld, models.InvReleased)
		if err != nil {
			return err
		}
		if won {
			s.releaseAll(ctx, b.Segments)
		}
		if err := s.Payments.CancelPendingForBooking(ctx, b.ID); err != nil {
			s.Logger.Warn("failed to cancel pending payments", zap.String("booking", b.ID), zap.Error(err))
		}
	case models.BookingConfirmed:
		won, err := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvCommitted, models.InvReleased)
		if err != nil {
			return err
		}
		if !won {
			return ErrNotCancellable
		}
		for _, seg := range b.Segments {
			qty := b.SeatCount(seg)
			if err := s.Inventory.CancelSold(ctx, seg.FlightID, seg.Class, qty); err != nil {
				s.Logger.Error("failed to return sold seats",
					zap.String("booking", b.ID),
					zap.String("flight", seg.FlightID),
					zap.String("class", seg.Class),
					zap.Error(err))
			}
		}
		if b.Payment.PaymentID != "" {
			refund := models.Refund{
				Amount: b.Payment.Amount.Total,
				Reason: "booking cancelled",
				At:     time.Now(),
			}
			if err := s.Payments.AddRefund(ctx, b.Payment.PaymentID, refund); err != nil {
				s.Logger.Error("failed to record refund", zap.String("booking", b.ID), zap.Error(err))
			}
		}
	default:
		return ErrNotCancellable
	}

	return s.Bookings.UpdateStatus(ctx, b.ID, models.BookingCancelled)
}

// GetBooking looks a booking up by its reference.
func (s *Service) GetBooking(ctx context.Context, reference string) (*models.Booking, error) {
	b, err := s.Bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

// PurgeStale cancels pending bookings past the retry window (releasing
// their holds) and deletes cancelled never-paid bookings older than the
// retention cutoff. Run hourly by the background worker.
func (s *Service) PurgeStale(ctx context.Context, now time.Time, retention time.Duration) (cancelled, deleted int, err error) {
	stale, err := s.Bookings.FindStalePending(ctx, now.Add(-s.BookingWindow), 500)
	if err != nil {
		return 0, 0, err
	}
	for i := range stale {
		b := &stale[i]
		won, err := s.Bookings.TransitionInventoryState(ctx, b.ID, models.InvHeld, models.InvReleased)
		if err != nil {
			s.Logger.Error("failed to release stale booking holds", zap.String("booking", b.ID), zap.Error(err))
			continue
		}
		if won {
			s.releaseAll(ctx, b.Segments)
		}
		if err := s.Payments.CancelPendingForBooking(ctx, b.ID); err != nil {
			s.Logger.Warn("failed to cancel stale payments", zap.String("booking", b.ID), zap.Error(err))
		}
		if err := s.Bookings.UpdateStatus(ctx, b.ID, models.BookingCancelled); err != nil {
			s.Logger.Error("failed to cancel stale booking", zap.String("booking", b.ID), zap.Error(err))
			continue
		}
		cancelled++
	}

	old, err := s.Bookings.FindCancelledBefore(ctx, now.Add(-retention), 500)
	if err != nil {
		return cancelled, 0, err
	}
	for i := range old {
		b := &old[i]
		switch b.Payment.Status {
		case models.PayPaid, models.PayPartiallyPaid, models.PayRefunded,
			models.PayPartiallyRefunded, models.PayRefundDue:
			// Money moved at some point; keep the record.
			continue
		}
		if err := s.Bookings.Delete(ctx, b.ID); err != nil {
			s.Logger.Error("failed to purge booking", zap.String("booking", b.ID), zap.Error(err))
			continue
		}
		deleted++
	}
	return cancelled, deleted, nil
}

// ---- internals -------------------------------------------------------

func (s *Service) validateRequest(req *models.BookingRequest) error {
	if req.UserID == "" {
		return invalid("userId", "required")
	}
	if req.Contact.Email == "" {
		return invalid("contact.email", "required")
	}
	if _, err := s.Gateways.Get(req.Provider); err != nil {
		return invalid("provider", err.Error())
	}
	if len(req.Segments) == 0 {
		return invalid("segments", "at least one segment required")
	}
	for i, seg := range req.Segments {
		if seg.FlightID == "" {
			return invalid(fmt.Sprintf("segments[%d].flightId", i), "required")
		}
		if seg.Class == "" {
			return invalid(fmt.Sprintf("segments[%d].class", i), "required")
		}
		if len(seg.Passengers) == 0 {
			return invalid(fmt.Sprintf("segments[%d].passengers", i), "at least one passenger required")
		}
		if len(seg.Passengers) > maxPassengersPerSegment {
			return invalid(fmt.Sprintf("segments[%d].passengers", i),
				fmt.Sprintf("at most %d passengers per segment", maxPassengersPerSegment))
		}
		seated := 0
		for j, p := range seg.Passengers {
			switch p.Type {
			case "adult", "child":
				seated++
			case "infant":
			default:
				return invalid(fmt.Sprintf("segments[%d].passengers[%d].type", i, j),
					"must be adult, child or infant")
			}
			if p.FirstName == "" || p.LastName == "" {
				return invalid(fmt.Sprintf("segments[%d].passengers[%d]", i, j), "name required")
			}
		}
		if seated == 0 {
			return invalid(fmt.Sprintf("segments[%d].passengers", i),
				"infants cannot travel without a seated passenger")
		}
	}
	return nil
}

// resolveSegments turns request segments into priced booking segments,
// checking each flight is open for sale.
func (s *Service) resolveSegments(ctx context.Context, in []models.SegmentInput) ([]models.Segment, map[string]*models.ClassFare, string, error) {
	segments := make([]models.Segment, 0, len(in))
	fares := make(map[string]*models.ClassFare)
	currency := ""

	for i, segIn := range in {
		f, err := s.Catalog.GetFlight(ctx, segIn.FlightID)
		if err != nil {
			return nil, nil, "", invalid(fmt.Sprintf("segments[%d].flightId", i), "unknown flight")
		}
		if f.Status != models.FlightScheduled || time.Now().After(f.DepartureAt) {
			return nil, nil, "", fmt.Errorf("%w: %s", ErrFlightNotBookable, f.ID)
		}
		fare := f.Fare(segIn.Class)
		if fare == nil {
			return nil, nil, "", invalid(fmt.Sprintf("segments[%d].class", i),
				fmt.Sprintf("class %s not sold on flight %s", segIn.Class, f.ID))
		}
		if currency == "" {
			currency = f.Currency
		} else if currency != f.Currency {
			return nil, nil, "", invalid(fmt.Sprintf("segments[%d]", i), "mixed currencies in one booking")
		}

		passengers := make([]models.Passenger, len(segIn.Passengers))
		for j, p := range segIn.Passengers {
			passengers[j] = models.Passenger{
				FirstName:      p.FirstName,
				LastName:       p.LastName,
				Type:           p.Type,
				DocumentNumber: p.DocumentNumber,
			}
		}
		segments = append(segments, models.Segment{
			FlightID:   segIn.FlightID,
			Class:      segIn.Class,
			FareBasis:  fare.FareBasis,
			FarePerPax: fare.BaseFare,
			Passengers: passengers,
		})
		fares[segIn.FlightID+"/"+segIn.Class] = fare
	}
	return segments, fares, currency, nil
}

func (s *Service) lookupFares(ctx context.Context, segments []models.Segment) (map[string]*models.ClassFare, string, error) {
	fares := make(map[string]*models.ClassFare)
	currency := ""
	for _, seg := range segments {
		f, err := s.Catalog.GetFlight(ctx, seg.FlightID)
		if err != nil {
			return nil, "", fmt.Errorf("flight %s no longer in catalog: %w", seg.FlightID, err)
		}
		fare := f.Fare(seg.Class)
		if fare == nil {
			return nil, "", fmt.Errorf("%w: class %s withdrawn on %s", ErrFlightNotBookable, seg.Class, f.ID)
		}
		fares[seg.FlightID+"/"+seg.Class] = fare
		if currency == "" {
			currency = f.Currency
		}
	}
	return fares, currency, nil
}

// holdAll acquires every segment's hold or none. The per-document updates
// are atomic; all-or-nothing across segments comes from rolling back the
// acquired prefix on the first failure.
func (s *Service) holdAll(ctx context.Context, segments []models.Segment) error {
	for i, seg := range segments {
		qty := seatCount(seg.Passengers)
		if err := s.Inventory.Hold(ctx, seg.FlightID, seg.Class, qty); err != nil {
			for _, got := range segments[:i] {
				if rerr := s.Inventory.Release(ctx, got.FlightID, got.Class, seatCount(got.Passengers)); rerr != nil {
					s.Logger.Error("failed to roll back hold",
						zap.String("flight", got.FlightID),
						zap.String("class", got.Class),
						zap.Error(rerr))
				}
			}
			return err
		}
	}
	return nil
}

func (s *Service) releaseAll(ctx context.Context, segments []models.Segment) {
	for _, seg := range segments {
		if err := s.Inventory.Release(ctx, seg.FlightID, seg.Class, seatCount(seg.Passengers)); err != nil {
			s.Logger.Error("failed to release hold",
				zap.String("flight", seg.FlightID),
				zap.String("class", seg.Class),
				zap.Error(err))
		}
	}
}

// persistWithFreshReference inserts the booking, regenerating the
// reference on a duplicate-key collision. Six alphanumerics give enough
// space that more than a couple of retries means something is wrong.
func (s *Service) persistWithFreshReference(ctx context.Context, b *models.Booking) error {
	for attempt := 0; attempt < 5; attempt++ {
		b.Reference = newReference()
		b.PNR = b.Reference
		err := s.Bookings.Create(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, bookingRepo.ErrDuplicateReference) {
			return err
		}
	}
	return fmt.Errorf("could not allocate a unique booking reference")
}

// openPayment creates the payment document and asks the gateway for a
// redirect. A gateway failure is returned together with the response:
// the booking, its holds and the pending payment all survive for retry.
func (s *Service) openPayment(ctx context.Context, b *models.Booking, provider string, amount models.AmountBreakdown) (*models.BookingResponse, error) {
	gw, err := s.Gateways.Get(provider)
	if err != nil {
		return nil, invalid("provider", err.Error())
	}

	now := time.Now()
	p := &models.Payment{
		ID:        uuid.New().String(),
		Reference: newReference(),
		BookingID: b.ID,
		Amount:    amount,
		Provider:  provider,
		Overall:   models.PayPending,
		ExpiresAt: now.Add(s.PaymentWindow),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Payments.Create(ctx, p); err != nil {
		return nil, err
	}
	summary := models.PaymentSummary{PaymentID: p.ID, Amount: amount, Method: provider, Status: models.PayPending}
	if err := s.Bookings.SetPaymentSummary(ctx, b.ID, summary); err != nil {
		s.Logger.Warn("failed to mirror payment summary", zap.String("booking", b.ID), zap.Error(err))
	}
	b.Payment = summary

	resp := &models.BookingResponse{Booking: b, PaymentID: p.ID}
	redirect, err := gw.CreatePaymentRequest(p, b)
	if err != nil {
		s.Logger.Error("gateway unavailable, booking kept pending for retry",
			zap.String("booking", b.ID),
			zap.String("payment", p.ID),
			zap.String("provider", provider),
			zap.Error(err))
		return resp, fmt.Errorf("%w: %s", gateway.ErrGatewayUnavailable, provider)
	}
	resp.RedirectURL = redirect
	return resp, nil
}
