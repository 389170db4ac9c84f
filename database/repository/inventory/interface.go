package inventoryRepo

import (
	"context"
	"errors"

	"skybook/models"
)

// ErrInsufficientInventory is returned when an operation's precondition
// does not hold at the instant of the atomic update. The update has no
// side effects in that case.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// InventoryRepository is the seat ledger. Every mutation is one atomic
// conditional update scoped to a single (flight, class) document; there is
// no read-then-write anywhere. Concurrent holds racing for the last seats
// get exactly one winner per seat.
type InventoryRepository interface {
	// Hold reserves quantity seats provisionally. Fails with
	// ErrInsufficientInventory unless available - held >= quantity.
	Hold(ctx context.Context, flightID, class string, quantity int) error
	// Commit converts held seats to sold on payment success.
	Commit(ctx context.Context, flightID, class string, quantity int) error
	// Release returns held seats to the pool on failure, cancellation or
	// hold expiry.
	Release(ctx context.Context, flightID, class string, quantity int) error
	// CancelSold returns sold seats to the pool after a post-confirmation
	// cancellation.
	CancelSold(ctx context.Context, flightID, class string, quantity int) error

	Get(ctx context.Context, flightID, class string) (*models.BookingClassInventory, error)
	Seed(ctx context.Context, inv *models.BookingClassInventory) error
}
