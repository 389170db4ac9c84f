// Package codes validates and prices promotional payment codes.
package codes

import (
	"context"
	"errors"
	"fmt"
	"time"

	codeRepo "skybook/database/repository/paymentcode"
	"skybook/models"

	"go.uber.org/zap"
)

// Validation errors. All are user-correctable and carry no side effects.
var (
	ErrCodeNotFound      = errors.New("payment code not found")
	ErrCodeNotYetActive  = errors.New("payment code not yet active")
	ErrCodeExpired       = errors.New("payment code expired")
	ErrCodeInactive      = errors.New("payment code inactive")
	ErrUsageExhausted    = codeRepo.ErrUsageExhausted
	ErrUserUsageExceeded = errors.New("payment code usage limit reached for this user")
)

// Engine is the discount code engine. Stateless apart from the repository;
// the atomic usage counter in the repository is its only concurrency
// concern.
type Engine struct {
	Repo   codeRepo.PaymentCodeRepository
	Logger *zap.Logger
}

func NewEngine(repo codeRepo.PaymentCodeRepository, logger *zap.Logger) *Engine {
	return &Engine{Repo: repo, Logger: logger}
}

// Validate resolves a code and checks its window, status and total usage
// limit. It does not check per-user limits; see CanUserUse.
func (e *Engine) Validate(ctx context.Context, code string) (*models.PaymentCode, error) {
	pc, err := e.Repo.GetByCode(ctx, code)
	if err != nil {
		return nil, ErrCodeNotFound
	}
	now := time.Now()
	if now.Before(pc.ValidFrom) {
		return nil, ErrCodeNotYetActive
	}
	if now.After(pc.ExpiryDate) {
		// Auto-transition: the stored status catches up lazily.
		if pc.Status == models.CodeActive {
			if err := e.Repo.MarkExpired(ctx, pc.Code); err != nil {
				e.Logger.Warn("failed to expire payment code", zap.String("code", pc.Code), zap.Error(err))
			}
		}
		return nil, ErrCodeExpired
	}
	if pc.Status != models.CodeActive {
		if pc.Status == models.CodeExpired {
			return nil, ErrCodeExpired
		}
		return nil, ErrCodeInactive
	}
	if pc.UsageLimit.Total > 0 && pc.UsedCount >= pc.UsageLimit.Total {
		return nil, ErrUsageExhausted
	}
	return pc, nil
}

// CanUserUse checks the per-user limit for a validated code.
func (e *Engine) CanUserUse(pc *models.PaymentCode, userID string) error {
	if pc.UsageLimit.PerUser > 0 && pc.UserUsageCount(userID) >= pc.UsageLimit.PerUser {
		return ErrUserUsageExceeded
	}
	return nil
}

// CalculateDiscount prices a code against an amount. The result is always
// in [0, amount]; percentage codes round half-up and respect maxDiscount.
func CalculateDiscount(pc *models.PaymentCode, amount int64) int64 {
	if amount < pc.MinAmount {
		return 0
	}
	var discount int64
	switch pc.DiscountType {
	case models.DiscountPercentage:
		discount = (amount*pc.Value + 50) / 100
		if pc.MaxDiscount > 0 && discount > pc.MaxDiscount {
			discount = pc.MaxDiscount
		}
	case models.DiscountFixed:
		discount = pc.Value
	default:
		return 0
	}
	if discount > amount {
		discount = amount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// RecordUsage redeems a code for a confirmed booking, after payment
// confirmation: recording earlier risks charging a discount for a booking
// that never completes. Limits are re-verified atomically in storage
// because they may have been exhausted since the booking-time check. A
// booking redeems at most once, so replayed finalizations are a no-op.
func (e *Engine) RecordUsage(ctx context.Context, code, userID, bookingID string, discount int64) error {
	usage := models.CodeUsage{
		UserID:    userID,
		BookingID: bookingID,
		Amount:    discount,
		At:        time.Now(),
	}
	if err := e.Repo.RecordUsage(ctx, code, usage); err != nil {
		return fmt.Errorf("record usage for code %s: %w", code, err)
	}
	return nil
}
