package payment

import (
	"time"

	"skybook/models"
)

// DeriveOverall computes a payment's overall status from its transaction
// list, refund records and expiry clock. It is the only place overall
// status comes from: transitions refresh the stored mirror with this
// function's output and recovery after a crash is re-running it on read.
func DeriveOverall(p *models.Payment, now time.Time) string {
	var succeeded int64
	var open, failed, cancelled, expired, terminal int

	for _, t := range p.Transactions {
		switch t.Status {
		case models.TxnSuccess:
			succeeded += t.Amount
			terminal++
		case models.TxnPending, models.TxnProcessing:
			open++
		case models.TxnFailed:
			failed++
			terminal++
		case models.TxnCancelled:
			cancelled++
			terminal++
		case models.TxnExpired:
			expired++
			terminal++
		}
	}

	var refunded int64
	for _, r := range p.Refunds {
		refunded += r.Amount
	}

	// Money received decides first: a late successful callback outranks
	// the lapsed window.
	if p.Amount.Total > 0 && succeeded >= p.Amount.Total {
		switch {
		case refunded >= p.Amount.Total:
			return models.PayRefunded
		case refunded > 0:
			return models.PayPartiallyRefunded
		case p.RefundDue:
			return models.PayRefundDue
		}
		return models.PayPaid
	}
	if succeeded > 0 {
		return models.PayPartiallyPaid
	}
	if open > 0 {
		return models.PayProcessing
	}
	if terminal > 0 {
		// Failed wins over cancelled/expired when outcomes are mixed.
		switch {
		case failed > 0:
			return models.PayFailed
		case cancelled >= terminal:
			return models.PayCancelled
		default:
			return models.PayExpired
		}
	}
	if !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt) {
		return models.PayExpired
	}
	return models.PayPending
}
