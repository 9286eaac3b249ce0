package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks an order through the checkout authorization flow.
type Status string

const (
	// StatusCreated means a gateway order exists but payment has not been
	// confirmed. Orders can stay in this state indefinitely if the user
	// abandons payment; reconciliation is an operational concern.
	StatusCreated Status = "created"
	// StatusSettled means the gateway's payment confirmation passed
	// signature verification.
	StatusSettled Status = "settled"
	// StatusFailed means the gateway reported an explicit payment failure.
	StatusFailed Status = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusSettled || s == StatusFailed
}

// Order is a server-side record of a charge intent minted at the payment
// gateway. Handle is the gateway's opaque order identifier; Amount is in
// minor currency units (paise).
type Order struct {
	Handle         string
	Amount         int64
	Currency       string
	Status         Status
	PaymentID      string
	IdempotencyKey string
	CreatedAt      time.Time
}

// Item is a cart line item as resubmitted by the client. Price is the
// client's view and is only cross-checked, never trusted.
type Item struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// Repository defines persistence operations for checkout orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByHandle(ctx context.Context, handle string) (*Order, error)
	// GetByIdempotencyKey returns the order previously created for the given
	// key, or ErrNotFound.
	GetByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	// Settle marks the order settled with the given payment id, but only if
	// it is still in the created state. It reports whether the row was
	// updated; false means another caller settled it first (or it never
	// existed).
	Settle(ctx context.Context, handle, paymentID string) (bool, error)
}
