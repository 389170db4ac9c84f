package booking

import "skybook/models"

// priceSegments computes the fare breakdown for a set of priced segments.
// Infants fly free of seat fare here; seated passengers pay fare plus the
// class's per-mille tax. Rounding on taxes is half-up in minor units.
func priceSegments(segments []models.Segment, fares map[string]*models.ClassFare) models.AmountBreakdown {
	var base, taxes int64
	for _, seg := range segments {
		fare := fares[seg.FlightID+"/"+seg.Class]
		if fare == nil {
			continue
		}
		seats := int64(seatCount(seg.Passengers))
		segBase := fare.BaseFare * seats
		base += segBase
		taxes += (segBase*fare.TaxRatePM + 500) / 1000
	}
	return models.AmountBreakdown{
		Base:  base,
		Taxes: taxes,
		Total: base + taxes,
	}
}

func seatCount(passengers []models.Passenger) int {
	n := 0
	for _, p := range passengers {
		if p.Type != "infant" {
			n++
		}
	}
	return n
}
