package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for checkout validation and verification.
var (
	ErrEmptyItems         = errors.New("products required")
	ErrInvalidAmount      = errors.New("amount must be greater than 0")
	ErrNotFound           = errors.New("order not found")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrSignatureInvalid   = errors.New("payment signature invalid")
)

// ProductNotFoundError indicates a submitted line item references a product
// that does not exist in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// UnsupportedCurrencyError indicates the requested currency code is not in
// the configured supported set.
type UnsupportedCurrencyError struct {
	Currency string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("currency %s not supported", e.Currency)
}

// AmountMismatchError indicates the client-submitted amount deviates from the
// server-side recomputation beyond the minor-unit rounding tolerance. Both
// amounts are in minor currency units.
type AmountMismatchError struct {
	Submitted  int64
	Recomputed int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: submitted %d, recomputed %d", e.Submitted, e.Recomputed)
}
