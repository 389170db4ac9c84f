package codeRepo

import (
	"context"
	"errors"

	"skybook/models"
)

// ErrUsageExhausted is returned by RecordUsage when the code's total or
// per-user limit would be exceeded. Nothing is recorded in that case.
var ErrUsageExhausted = errors.New("payment code usage exhausted")

// PaymentCodeRepository stores discount instruments. RecordUsage is the
// single mutation and re-verifies both usage limits inside one conditional
// update, so concurrent confirmations cannot overshoot a limit.
type PaymentCodeRepository interface {
	GetByCode(ctx context.Context, code string) (*models.PaymentCode, error)
	// RecordUsage appends a usage record and increments usedCount iff the
	// total and per-user limits still hold at the instant of the update.
	RecordUsage(ctx context.Context, code string, usage models.CodeUsage) error
	// MarkExpired transitions active codes past their expiry date.
	MarkExpired(ctx context.Context, code string) error
	// ExpireAll sweeps every active code past its expiry. Returns how many
	// codes were transitioned.
	ExpireAll(ctx context.Context) (int64, error)
	Create(ctx context.Context, c *models.PaymentCode) error
}
