package payment

import (
	"testing"
	"time"

	"skybook/models"

	"github.com/stretchr/testify/assert"
)

func basePayment(total int64) *models.Payment {
	return &models.Payment{
		ID:        "pay_1",
		Reference: "PXK2M1",
		Amount:    models.AmountBreakdown{Total: total, Currency: "VND"},
		ExpiresAt: time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC),
	}
}

func TestDeriveOverall(t *testing.T) {
	before := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	after := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	success := models.Transaction{Status: models.TxnSuccess, Amount: 1_200_000}
	failed := models.Transaction{Status: models.TxnFailed}
	cancelled := models.Transaction{Status: models.TxnCancelled}
	expiredTxn := models.Transaction{Status: models.TxnExpired}
	processing := models.Transaction{Status: models.TxnProcessing}

	tests := []struct {
		name string
		mut  func(p *models.Payment)
		now  time.Time
		want string
	}{
		{"no transactions inside window", func(p *models.Payment) {}, before, models.PayPending},
		{"no transactions past window", func(p *models.Payment) {}, after, models.PayExpired},
		{"open transaction", func(p *models.Payment) {
			p.Transactions = []models.Transaction{processing}
		}, before, models.PayProcessing},
		{"full success", func(p *models.Payment) {
			p.Transactions = []models.Transaction{success}
		}, before, models.PayPaid},
		{"success after window still paid", func(p *models.Payment) {
			p.Transactions = []models.Transaction{success}
		}, after, models.PayPaid},
		{"partial success", func(p *models.Payment) {
			p.Transactions = []models.Transaction{{Status: models.TxnSuccess, Amount: 500_000}}
		}, before, models.PayPartiallyPaid},
		{"failed then success", func(p *models.Payment) {
			p.Transactions = []models.Transaction{failed, success}
		}, before, models.PayPaid},
		{"all failed", func(p *models.Payment) {
			p.Transactions = []models.Transaction{failed, failed}
		}, before, models.PayFailed},
		{"failed outranks cancelled", func(p *models.Payment) {
			p.Transactions = []models.Transaction{cancelled, failed}
		}, before, models.PayFailed},
		{"all cancelled", func(p *models.Payment) {
			p.Transactions = []models.Transaction{cancelled}
		}, before, models.PayCancelled},
		{"expired transactions only", func(p *models.Payment) {
			p.Transactions = []models.Transaction{expiredTxn}
		}, before, models.PayExpired},
		{"failed with one still open", func(p *models.Payment) {
			p.Transactions = []models.Transaction{failed, processing}
		}, before, models.PayProcessing},
		{"paid with refund due flag", func(p *models.Payment) {
			p.Transactions = []models.Transaction{success}
			p.RefundDue = true
		}, after, models.PayRefundDue},
		{"fully refunded", func(p *models.Payment) {
			p.Transactions = []models.Transaction{success}
			p.Refunds = []models.Refund{{Amount: 1_200_000}}
		}, before, models.PayRefunded},
		{"partially refunded", func(p *models.Payment) {
			p.Transactions = []models.Transaction{success}
			p.Refunds = []models.Refund{{Amount: 400_000}}
		}, before, models.PayPartiallyRefunded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := basePayment(1_200_000)
			tc.mut(p)
			assert.Equal(t, tc.want, DeriveOverall(p, tc.now))
		})
	}
}

// A stale stored mirror must never leak: derivation ignores it entirely.
func TestDeriveOverallIgnoresStoredMirror(t *testing.T) {
	p := basePayment(1_200_000)
	p.Transactions = []models.Transaction{{Status: models.TxnSuccess, Amount: 1_200_000}}
	p.Overall = models.PayPending // crash between append and transition

	got := DeriveOverall(p, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC))
	assert.Equal(t, models.PayPaid, got)
}
