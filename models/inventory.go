package models

import "time"

// BookingClassInventory is the seat ledger for one (flight, class) pair.
// Invariants, enforced by conditional updates in the repository:
//
//	0 <= sold <= authorized
//	0 <= held
//	sold + held <= authorized
type BookingClassInventory struct {
	FlightID   string    `bson:"flight_id" json:"flightId"`
	Class      string    `bson:"class" json:"class"`
	Authorized int       `bson:"authorized" json:"authorized"`
	Sold       int       `bson:"sold" json:"sold"`
	Held       int       `bson:"held" json:"held"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updatedAt"`
}

// Available is the number of seats still sellable in this class.
func (i BookingClassInventory) Available() int {
	return i.Authorized - i.Sold
}
