package models

import "time"

// Booking statuses.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
	BookingNoShow    = "no_show"
)

// Inventory states for a booking's seat holds. Transitions are guarded by
// conditional updates so that commit and release each happen at most once
// regardless of how many callbacks or sweeps race for them.
const (
	InvHeld      = "held"
	InvCommitted = "committed"
	InvReleased  = "released"
)

// Passenger is one traveller on a segment. DocumentNumber is encrypted at
// rest by the booking repository.
type Passenger struct {
	FirstName      string `bson:"first_name" json:"firstName"`
	LastName       string `bson:"last_name" json:"lastName"`
	Type           string `bson:"type" json:"type"` // adult, child, infant
	DocumentNumber string `bson:"document_number" json:"documentNumber"`
	TicketNumber   string `bson:"ticket_number,omitempty" json:"ticketNumber,omitempty"`
}

// Segment is one flight leg of a booking with its passengers.
type Segment struct {
	FlightID   string      `bson:"flight_id" json:"flightId"`
	Class      string      `bson:"class" json:"class"` // booking class (RBD), e.g. "Y"
	FareBasis  string      `bson:"fare_basis" json:"fareBasis"`
	FarePerPax int64       `bson:"fare_per_pax" json:"farePerPax"`
	Passengers []Passenger `bson:"passengers" json:"passengers"`
}

// Contact is who we talk to about the booking. Phone is encrypted at rest.
type Contact struct {
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone" json:"phone"`
}

// PaymentSummary is the booking-side mirror of the payment. The payment
// document owns the truth; this exists so booking reads need no join.
type PaymentSummary struct {
	PaymentID string          `bson:"payment_id" json:"paymentId"`
	Amount    AmountBreakdown `bson:"amount" json:"amount"`
	Method    string          `bson:"method" json:"method"` // gateway provider name
	Status    string          `bson:"status" json:"status"` // mirror of payment status.overall
}

// Booking represents one purchase attempt.
type Booking struct {
	ID             string         `bson:"id" json:"id"`
	Reference      string         `bson:"reference" json:"reference"` // 6-char, unique
	PNR            string         `bson:"pnr" json:"pnr"`
	UserID         string         `bson:"user_id" json:"userId"`
	Contact        Contact        `bson:"contact" json:"contact"`
	Segments       []Segment      `bson:"segments" json:"segments"`
	Payment        PaymentSummary `bson:"payment" json:"payment"`
	PaymentCode    string         `bson:"payment_code,omitempty" json:"paymentCode,omitempty"`
	Status         string         `bson:"status" json:"status"`
	InventoryState string         `bson:"inventory_state" json:"-"`
	CreatedAt      time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updatedAt"`
}

// SeatCount returns the number of seats requested per segment, keyed by
// (flight, class). Every passenger except infants occupies a seat.
func (b *Booking) SeatCount(seg Segment) int {
	n := 0
	for _, p := range seg.Passengers {
		if p.Type != "infant" {
			n++
		}
	}
	return n
}
