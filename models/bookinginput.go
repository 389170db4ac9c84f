package models

// PassengerInput is one traveller in a booking request.
type PassengerInput struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Type           string `json:"type"`
	DocumentNumber string `json:"documentNumber"`
}

// SegmentInput is one requested flight leg.
type SegmentInput struct {
	FlightID   string           `json:"flightId"`
	Class      string           `json:"class"`
	Passengers []PassengerInput `json:"passengers"`
}

// BookingRequest is the inbound createBooking payload.
type BookingRequest struct {
	UserID      string         `json:"userId"`
	Contact     Contact        `json:"contact"`
	Segments    []SegmentInput `json:"segments"`
	Provider    string         `json:"provider"`              // gateway to pay with
	PaymentCode string         `json:"paymentCode,omitempty"` // optional discount code
}

// BookingResponse is what createBooking and retryPayment return: the
// persisted booking plus the gateway redirect the customer must follow.
type BookingResponse struct {
	Booking     *Booking `json:"booking"`
	PaymentID   string   `json:"paymentId"`
	RedirectURL string   `json:"redirectUrl,omitempty"`
}
