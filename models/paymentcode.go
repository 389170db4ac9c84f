package models

import "time"

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Payment code statuses.
const (
	CodeActive   = "active"
	CodeInactive = "inactive"
	CodeExpired  = "expired"
)

// UsageLimit caps how often a payment code may be used. Zero means
// unlimited.
type UsageLimit struct {
	Total   int `bson:"total" json:"total"`
	PerUser int `bson:"per_user" json:"perUser"`
}

// CodeUsage records one redemption of a payment code.
type CodeUsage struct {
	UserID    string    `bson:"user_id" json:"userId"`
	BookingID string    `bson:"booking_id" json:"bookingId"`
	Amount    int64     `bson:"amount" json:"amount"`
	At        time.Time `bson:"at" json:"at"`
}

// PaymentCode is a discount instrument applied at booking time and
// redeemed exactly once per confirmed booking.
type PaymentCode struct {
	Code         string      `bson:"code" json:"code"`
	DiscountType string      `bson:"discount_type" json:"discountType"`
	Value        int64       `bson:"value" json:"value"` // percent (<=100) or fixed amount
	MinAmount    int64       `bson:"min_amount" json:"minAmount"`
	MaxDiscount  int64       `bson:"max_discount" json:"maxDiscount"` // 0 = uncapped
	ValidFrom    time.Time   `bson:"valid_from" json:"validFrom"`
	ExpiryDate   time.Time   `bson:"expiry_date" json:"expiryDate"`
	UsageLimit   UsageLimit  `bson:"usage_limit" json:"usageLimit"`
	UsedCount    int         `bson:"used_count" json:"usedCount"`
	Usages       []CodeUsage `bson:"usages" json:"usages"`
	Status       string      `bson:"status" json:"status"`
	CreatedAt    time.Time   `bson:"created_at" json:"createdAt"`
}

// UserUsageCount returns how many times a user has redeemed this code.
func (c *PaymentCode) UserUsageCount(userID string) int {
	n := 0
	for _, u := range c.Usages {
		if u.UserID == userID {
			n++
		}
	}
	return n
}
