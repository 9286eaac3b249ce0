package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/emkart/storefront/internal/domain/product"
)

// amountTolerance is the maximum accepted deviation, in minor currency units,
// between the client-submitted amount and the server-side recomputation.
const amountTolerance = 1

// minorUnitFactor converts major currency units to minor ones (rupees to
// paise).
var minorUnitFactor = decimal.NewFromInt(100)

// Gateway mints order records at the external payment gateway.
type Gateway interface {
	// CreateOrder creates a charge intent for the given amount in minor
	// currency units and returns the gateway's opaque order handle.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
}

// CreateOrderRequest holds the input for initiating a checkout order.
type CreateOrderRequest struct {
	Items    []Item
	Amount   int64 // minor currency units, as computed by the client
	Currency string
	// IdempotencyKey deduplicates retried submissions. Empty disables
	// deduplication.
	IdempotencyKey string
}

// VerifyRequest holds the gateway's signed payment confirmation.
type VerifyRequest struct {
	Handle    string
	PaymentID string
	Signature string
}

// Service implements order initiation and payment verification.
type Service struct {
	products product.Repository
	orders   Repository
	gateway  Gateway

	secret     []byte
	currencies map[string]struct{}
}

// NewService creates the checkout order service. secret is the gateway key
// secret used for callback signature verification; currencies is the set of
// accepted currency codes.
func NewService(
	products product.Repository,
	orders Repository,
	gateway Gateway,
	secret []byte,
	currencies []string,
) *Service {
	set := make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		set[c] = struct{}{}
	}
	return &Service{
		products:   products,
		orders:     orders,
		gateway:    gateway,
		secret:     secret,
		currencies: set,
	}
}

// CreateOrder validates the submitted cart, recomputes the authoritative
// amount from the catalog, mints a gateway order, and persists it.
//
// The client-submitted amount is cross-checked against the server-side
// recomputation rather than trusted: a deviation beyond the minor-unit
// rounding tolerance rejects the request before any gateway call.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, ok := s.currencies[req.Currency]; !ok {
		return nil, &UnsupportedCurrencyError{Currency: req.Currency}
	}

	// Replayed submission: return the order minted for the same key instead
	// of creating a second gateway order.
	if req.IdempotencyKey != "" {
		existing, err := s.orders.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		switch {
		case err == nil:
			zctx.From(ctx).Info("Duplicate checkout submission",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("handle", existing.Handle),
			)
			return existing, nil
		case !errors.Is(err, ErrNotFound):
			return nil, errors.Wrap(err, "idempotency lookup")
		}
	}

	recomputed, err := s.recomputeAmount(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if diff := recomputed - req.Amount; diff > amountTolerance || diff < -amountTolerance {
		return nil, &AmountMismatchError{Submitted: req.Amount, Recomputed: recomputed}
	}

	handle, err := s.gateway.CreateOrder(ctx, recomputed, req.Currency, req.IdempotencyKey)
	if err != nil {
		zctx.From(ctx).Error("Gateway order creation failed", zap.Error(err))
		return nil, ErrGatewayUnavailable
	}

	o := &Order{
		Handle:         handle,
		Amount:         recomputed,
		Currency:       req.Currency,
		Status:         StatusCreated,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrapf(err, "create order %q", handle)
	}
	return o, nil
}

// recomputeAmount batch-fetches the submitted products from the catalog and
// returns the authoritative total in minor currency units.
func (s *Service) recomputeAmount(ctx context.Context, items []Item) (int64, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return 0, errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	total := decimal.Zero
	for _, item := range items {
		p, ok := byID[item.ID]
		if !ok {
			return 0, &ProductNotFoundError{ProductID: item.ID}
		}
		total = total.Add(p.Price)
	}

	return total.Mul(minorUnitFactor).Round(0).IntPart(), nil
}

// Verify checks the gateway's payment confirmation signature and settles the
// order. Repeated calls with the same valid triple are idempotent: they
// return the settled order without a second settlement side effect.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*Order, error) {
	o, err := s.orders.GetByHandle(ctx, req.Handle)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", req.Handle)
	}

	if !VerifySignature(s.secret, req.Handle, req.PaymentID, req.Signature) {
		zctx.From(ctx).Warn("Payment signature mismatch", zap.String("handle", req.Handle))
		return nil, ErrSignatureInvalid
	}

	if o.Status == StatusSettled {
		// Already settled. Same payment id means a replayed confirmation;
		// a different one means a second payment claims the same order.
		if o.PaymentID == req.PaymentID {
			return o, nil
		}
		return nil, ErrSignatureInvalid
	}

	settled, err := s.orders.Settle(ctx, req.Handle, req.PaymentID)
	if err != nil {
		return nil, errors.Wrapf(err, "settle order %q", req.Handle)
	}
	if !settled {
		// Lost a settle race; re-read to report the winner's state.
		o, err = s.orders.GetByHandle(ctx, req.Handle)
		if err != nil {
			return nil, errors.Wrapf(err, "get order %q", req.Handle)
		}
		if o.Status == StatusSettled && o.PaymentID == req.PaymentID {
			return o, nil
		}
		return nil, ErrSignatureInvalid
	}

	o.Status = StatusSettled
	o.PaymentID = req.PaymentID
	zctx.From(ctx).Info("Order settled",
		zap.String("handle", o.Handle),
		zap.String("payment_id", o.PaymentID),
		zap.Int64("amount", o.Amount),
	)
	return o, nil
}
