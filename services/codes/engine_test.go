package codes

import (
	"context"
	"errors"
	"testing"
	"time"

	codeRepo "skybook/database/repository/paymentcode"
	"skybook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCodeRepo is an in-memory PaymentCodeRepository with the same
// check-and-increment semantics as the mongo conditional update.
type fakeCodeRepo struct {
	codes map[string]*models.PaymentCode
}

func newFakeCodeRepo(cs ...*models.PaymentCode) *fakeCodeRepo {
	r := &fakeCodeRepo{codes: make(map[string]*models.PaymentCode)}
	for _, c := range cs {
		r.codes[c.Code] = c
	}
	return r
}

func (r *fakeCodeRepo) GetByCode(_ context.Context, code string) (*models.PaymentCode, error) {
	c, ok := r.codes[code]
	if !ok {
		return nil, errors.New("payment code not found")
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCodeRepo) RecordUsage(_ context.Context, code string, usage models.CodeUsage) error {
	c, ok := r.codes[code]
	if !ok || c.Status != models.CodeActive {
		return codeRepo.ErrUsageExhausted
	}
	for _, u := range c.Usages {
		if u.BookingID == usage.BookingID {
			return nil
		}
	}
	if c.UsageLimit.Total > 0 && c.UsedCount >= c.UsageLimit.Total {
		return codeRepo.ErrUsageExhausted
	}
	if c.UsageLimit.PerUser > 0 && c.UserUsageCount(usage.UserID) >= c.UsageLimit.PerUser {
		return codeRepo.ErrUsageExhausted
	}
	c.UsedCount++
	c.Usages = append(c.Usages, usage)
	return nil
}

func (r *fakeCodeRepo) MarkExpired(_ context.Context, code string) error {
	if c, ok := r.codes[code]; ok && c.Status == models.CodeActive {
		c.Status = models.CodeExpired
	}
	return nil
}

func (r *fakeCodeRepo) ExpireAll(_ context.Context) (int64, error) { return 0, nil }

func (r *fakeCodeRepo) Create(_ context.Context, c *models.PaymentCode) error {
	r.codes[c.Code] = c
	return nil
}

func activeCode(code string) *models.PaymentCode {
	return &models.PaymentCode{
		Code:         code,
		DiscountType: models.DiscountPercentage,
		Value:        10,
		ValidFrom:    time.Now().Add(-time.Hour),
		ExpiryDate:   time.Now().Add(time.Hour),
		Status:       models.CodeActive,
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("active code passes", func(t *testing.T) {
		e := NewEngine(newFakeCodeRepo(activeCode("SUMMER10")), zap.NewNop())
		pc, err := e.Validate(ctx, "SUMMER10")
		require.NoError(t, err)
		assert.Equal(t, "SUMMER10", pc.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		e := NewEngine(newFakeCodeRepo(), zap.NewNop())
		_, err := e.Validate(ctx, "NOPE")
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})

	t.Run("not yet active", func(t *testing.T) {
		c := activeCode("SOON")
		c.ValidFrom = time.Now().Add(time.Hour)
		e := NewEngine(newFakeCodeRepo(c), zap.NewNop())
		_, err := e.Validate(ctx, "SOON")
		assert.ErrorIs(t, err, ErrCodeNotYetActive)
	})

	t.Run("expired code auto-transitions", func(t *testing.T) {
		c := activeCode("OLD")
		c.ExpiryDate = time.Now().Add(-time.Minute)
		repo := newFakeCodeRepo(c)
		e := NewEngine(repo, zap.NewNop())
		_, err := e.Validate(ctx, "OLD")
		assert.ErrorIs(t, err, ErrCodeExpired)
		assert.Equal(t, models.CodeExpired, repo.codes["OLD"].Status)
	})

	t.Run("total limit exhausted", func(t *testing.T) {
		c := activeCode("FULL")
		c.UsageLimit.Total = 2
		c.UsedCount = 2
		e := NewEngine(newFakeCodeRepo(c), zap.NewNop())
		_, err := e.Validate(ctx, "FULL")
		assert.ErrorIs(t, err, ErrUsageExhausted)
	})
}

func TestCanUserUse(t *testing.T) {
	e := NewEngine(newFakeCodeRepo(), zap.NewNop())

	c := activeCode("WELCOME50")
	c.UsageLimit.PerUser = 1
	assert.NoError(t, e.CanUserUse(c, "user-1"))

	c.Usages = append(c.Usages, models.CodeUsage{UserID: "user-1", BookingID: "b-1"})
	assert.ErrorIs(t, e.CanUserUse(c, "user-1"), ErrUserUsageExceeded)
	assert.NoError(t, e.CanUserUse(c, "user-2"))
}

func TestCalculateDiscount(t *testing.T) {
	pct := func(value, min, max int64) *models.PaymentCode {
		return &models.PaymentCode{
			DiscountType: models.DiscountPercentage,
			Value:        value, MinAmount: min, MaxDiscount: max,
		}
	}
	fixed := func(value, min int64) *models.PaymentCode {
		return &models.PaymentCode{DiscountType: models.DiscountFixed, Value: value, MinAmount: min}
	}

	cases := []struct {
		name   string
		code   *models.PaymentCode
		amount int64
		want   int64
	}{
		{"ten percent", pct(10, 0, 0), 1_200_000, 120_000},
		{"rounds half up", pct(15, 0, 0), 101, 15},
		{"clamped to max discount", pct(50, 0, 100_000), 1_200_000, 100_000},
		{"below min amount", pct(10, 500_000, 0), 400_000, 0},
		{"fixed", fixed(50_000, 0), 1_200_000, 50_000},
		{"fixed exceeds amount", fixed(50_000, 0), 30_000, 30_000},
		{"hundred percent", pct(100, 0, 0), 777, 777},
		{"zero amount", pct(10, 0, 0), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateDiscount(tc.code, tc.amount)
			assert.Equal(t, tc.want, got)
			assert.GreaterOrEqual(t, got, int64(0))
			assert.LessOrEqual(t, got, tc.amount)
		})
	}
}

func TestRecordUsageRespectsLimits(t *testing.T) {
	ctx := context.Background()
	c := activeCode("WELCOME50")
	c.UsageLimit = models.UsageLimit{Total: 2, PerUser: 1}
	repo := newFakeCodeRepo(c)
	e := NewEngine(repo, zap.NewNop())

	require.NoError(t, e.RecordUsage(ctx, "WELCOME50", "u1", "b1", 100))
	// Same user again: per-user limit.
	assert.ErrorIs(t, e.RecordUsage(ctx, "WELCOME50", "u1", "b2", 100), ErrUsageExhausted)
	// Second user takes the last total slot.
	require.NoError(t, e.RecordUsage(ctx, "WELCOME50", "u2", "b3", 100))
	// Third user: total limit.
	assert.ErrorIs(t, e.RecordUsage(ctx, "WELCOME50", "u3", "b4", 100), ErrUsageExhausted)
	assert.Equal(t, 2, repo.codes["WELCOME50"].UsedCount)

	// A replayed finalization re-records the same booking: no-op, not an
	// extra redemption.
	require.NoError(t, e.RecordUsage(ctx, "WELCOME50", "u1", "b1", 100))
	assert.Equal(t, 2, repo.codes["WELCOME50"].UsedCount)
}
