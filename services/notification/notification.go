// Package notification is the fire-and-forget collaborator for customer
// messaging. Delivery failures are logged and swallowed: notifying can
// never roll back payment or booking state.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"skybook/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types handled by the background worker.
const (
	TypeBookingConfirmed = "notify:booking_confirmed"
	TypePaymentFailed    = "notify:payment_failed"
)

// Notifier is what the transaction core sees.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b *models.Booking)
	PaymentFailed(ctx context.Context, b *models.Booking, reason string)
}

// Payload is the task body for both notification types.
type Payload struct {
	BookingID string `json:"bookingId"`
	Reference string `json:"reference"`
	Email     string `json:"email"`
	Reason    string `json:"reason,omitempty"`
}

// QueueNotifier enqueues notification tasks onto the asynq queue; the
// worker in cron delivers them.
type QueueNotifier struct {
	Client *asynq.Client
	Logger *zap.Logger
}

func NewQueueNotifier(client *asynq.Client, logger *zap.Logger) *QueueNotifier {
	return &QueueNotifier{Client: client, Logger: logger}
}

func (n *QueueNotifier) enqueue(taskType string, p Payload) {
	body, err := json.Marshal(p)
	if err != nil {
		n.Logger.Error("failed to marshal notification payload", zap.Error(err))
		return
	}
	if _, err := n.Client.Enqueue(asynq.NewTask(taskType, body)); err != nil {
		n.Logger.Error("failed to enqueue notification",
			zap.String("type", taskType),
			zap.String("booking", p.BookingID),
			zap.Error(err))
	}
}

func (n *QueueNotifier) BookingConfirmed(_ context.Context, b *models.Booking) {
	n.enqueue(TypeBookingConfirmed, Payload{
		BookingID: b.ID,
		Reference: b.Reference,
		Email:     b.Contact.Email,
	})
}

func (n *QueueNotifier) PaymentFailed(_ context.Context, b *models.Booking, reason string) {
	n.enqueue(TypePaymentFailed, Payload{
		BookingID: b.ID,
		Reference: b.Reference,
		Email:     b.Contact.Email,
		Reason:    reason,
	})
}

// HandleTask is the worker-side handler for both notification types. The
// real delivery channel (templated email) lives outside the core; here we
// log the event so operators can trace it.
func HandleTask(logger *zap.Logger) asynq.HandlerFunc {
	return func(_ context.Context, task *asynq.Task) error {
		var p Payload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("invalid notification payload: %w", err)
		}
		logger.Info("delivering notification",
			zap.String("type", task.Type()),
			zap.String("booking", p.BookingID),
			zap.String("reference", p.Reference))
		return nil
	}
}
