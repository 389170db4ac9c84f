package models

import "time"

// Transaction statuses. A transaction is one attempt at one gateway.
const (
	TxnPending    = "pending"
	TxnProcessing = "processing"
	TxnSuccess    = "success"
	TxnFailed     = "failed"
	TxnCancelled  = "cancelled"
	TxnExpired    = "expired"
)

// Overall payment statuses. Overall is always derived from the transaction
// list (plus refund records), never hand-assigned.
const (
	PayPending           = "pending"
	PayProcessing        = "processing"
	PayPaid              = "paid"
	PayPartiallyPaid     = "partially_paid"
	PayFailed            = "failed"
	PayCancelled         = "cancelled"
	PayExpired           = "expired"
	PayRefunded          = "refunded"
	PayPartiallyRefunded = "partially_refunded"
	// PayRefundDue marks a payment that succeeded after its holds were
	// resold: the money was taken but no seats can be delivered, so an
	// operator owes the customer a refund.
	PayRefundDue = "refund_due"
)

// Transaction is one attempt at one gateway. Append-only; the pair
// (provider, transactionId) is the idempotency key for callbacks.
type Transaction struct {
	Provider      string     `bson:"provider" json:"provider"`
	TransactionID string     `bson:"transaction_id" json:"transactionId"`
	Amount        int64      `bson:"amount" json:"amount"`
	Status        string     `bson:"status" json:"status"`
	ResponseCode  string     `bson:"response_code" json:"responseCode"`
	FailureReason string     `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`
	InitiatedAt   time.Time  `bson:"initiated_at" json:"initiatedAt"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
}

// Terminal reports whether the transaction has reached a final outcome.
func (t Transaction) Terminal() bool {
	switch t.Status {
	case TxnSuccess, TxnFailed, TxnCancelled, TxnExpired:
		return true
	}
	return false
}

// Refund is a sub-record of money returned against a paid payment.
type Refund struct {
	Amount int64     `bson:"amount" json:"amount"`
	Reason string    `bson:"reason" json:"reason"`
	At     time.Time `bson:"at" json:"at"`
}

// Payment is one payment attempt against one booking.
type Payment struct {
	ID           string          `bson:"id" json:"id"`
	Reference    string          `bson:"reference" json:"reference"` // travels to the gateway as the order id
	BookingID    string          `bson:"booking_id" json:"bookingId"`
	Amount       AmountBreakdown `bson:"amount" json:"amount"`
	Provider     string          `bson:"provider" json:"provider"`
	Transactions []Transaction   `bson:"transactions" json:"transactions"`
	Refunds      []Refund        `bson:"refunds,omitempty" json:"refunds,omitempty"`
	RefundDue    bool            `bson:"refund_due" json:"refundDue"`
	// Overall is a stored mirror of the derived status, refreshed on every
	// transition and recomputed on read. It is never the source of truth.
	Overall   string    `bson:"overall" json:"overall"`
	ExpiresAt time.Time `bson:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// FindTransaction returns the transaction for a provider transaction id,
// or nil.
func (p *Payment) FindTransaction(provider, transactionID string) *Transaction {
	for i := range p.Transactions {
		t := &p.Transactions[i]
		if t.Provider == provider && t.TransactionID == transactionID {
			return t
		}
	}
	return nil
}
