package models

import "time"

// Flight statuses the core cares about. The catalog owns the full set.
const (
	FlightScheduled = "scheduled"
	FlightCancelled = "cancelled"
)

// ClassFare is the published fare for one booking class on a flight.
type ClassFare struct {
	Class     string `bson:"class" json:"class"`
	FareBasis string `bson:"fare_basis" json:"fareBasis"`
	BaseFare  int64  `bson:"base_fare" json:"baseFare"`
	TaxRatePM int64  `bson:"tax_rate_pm" json:"taxRatePM"` // per-mille of base fare
}

// Flight is the read-only catalog view the core needs: existence, schedule
// status and fares. The core never writes flights.
type Flight struct {
	ID           string      `bson:"id" json:"id"`
	FlightNumber string      `bson:"flight_number" json:"flightNumber"`
	Origin       string      `bson:"origin" json:"origin"`
	Destination  string      `bson:"destination" json:"destination"`
	DepartureAt  time.Time   `bson:"departure_at" json:"departureAt"`
	ArrivalAt    time.Time   `bson:"arrival_at" json:"arrivalAt"`
	Status       string      `bson:"status" json:"status"`
	Currency     string      `bson:"currency" json:"currency"`
	Fares        []ClassFare `bson:"fares" json:"fares"`
}

// Fare returns the fare for a booking class, or nil if the class is not
// sold on this flight.
func (f *Flight) Fare(class string) *ClassFare {
	for i := range f.Fares {
		if f.Fares[i].Class == class {
			return &f.Fares[i]
		}
	}
	return nil
}
