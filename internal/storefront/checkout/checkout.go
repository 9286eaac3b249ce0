// Package checkout runs the full payment flow for the current cart: order
// initiation against the API, the gateway widget, and server-side
// settlement. Nothing here is fatal for the process, every error fails only
// the attempt and leaves the cart intact.
package checkout

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emkart/storefront/internal/storefront/auth"
	"github.com/emkart/storefront/internal/storefront/cart"
	"github.com/emkart/storefront/internal/storefront/dispatch"
	"github.com/emkart/storefront/internal/storefront/payment"
)

// ErrEmptyCart is returned when checkout starts with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

// ErrVerificationFailed means the gateway reported success but the server
// refused to settle. Funds may have moved, so the user needs support, not a
// retry.
var ErrVerificationFailed = errors.New("payment could not be confirmed, contact support")

// Doer issues authenticated API requests. *dispatch.Dispatcher satisfies it.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any, opts ...dispatch.Option) error
}

type checkoutItem struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

type checkoutRequest struct {
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Products []checkoutItem `json:"products"`
}

type checkoutResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type verifyResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId"`
}

// Config wires an Orchestrator.
type Config struct {
	Currency string
	// OnSettled runs after a confirmed settlement, with the cart already
	// cleared. Typically navigation to the confirmation page.
	OnSettled func(orderHandle string)
}

// Orchestrator drives one checkout attempt at a time.
type Orchestrator struct {
	cart       *cart.Cart
	dispatcher Doer
	controller *payment.Controller
	widget     payment.Widget
	provider   auth.Provider

	currency  string
	onSettled func(string)
}

func New(
	c *cart.Cart,
	dispatcher Doer,
	controller *payment.Controller,
	widget payment.Widget,
	provider auth.Provider,
	cfg Config,
) *Orchestrator {
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Orchestrator{
		cart:       c,
		dispatcher: dispatcher,
		controller: controller,
		widget:     widget,
		provider:   provider,
		currency:   currency,
		onSettled:  cfg.OnSettled,
	}
}

// Checkout runs one payment attempt for the current cart contents.
func (o *Orchestrator) Checkout(ctx context.Context) error {
	items := o.cart.Items()
	if len(items) == 0 {
		return ErrEmptyCart
	}

	if err := o.controller.Begin(); err != nil {
		return err
	}

	handle, amount, err := o.createOrder(ctx, items)
	if err != nil {
		// Initiation never opened the widget, so failing here is safe.
		if ferr := o.controller.Fail(); ferr != nil {
			return ferr
		}
		return err
	}

	ev, err := o.runGateway(ctx, handle, amount)
	if err != nil {
		return err
	}

	success, ok := ev.(payment.EventSuccess)
	if !ok {
		// Failed or dismissed in the widget. The controller already released
		// the guard and the cart stays as it was.
		return nil
	}

	return o.verify(ctx, success)
}

func (o *Orchestrator) createOrder(ctx context.Context, items []cart.Item) (handle string, amount int64, err error) {
	req := checkoutRequest{
		Amount:   toMinorUnits(o.cart.Total()),
		Currency: o.currency,
		Products: make([]checkoutItem, 0, len(items)),
	}
	for _, it := range items {
		req.Products = append(req.Products, checkoutItem{
			ID:    it.ID,
			Title: it.Title,
			Price: it.Price,
		})
	}

	var resp checkoutResponse
	// No automatic retry here: the call creates server state and the
	// idempotency key only protects deliberate resubmissions.
	err = o.dispatcher.Do(ctx, http.MethodPost, "/api/product/checkoutProducts", req, &resp,
		dispatch.WithHeader("Idempotency-Key", uuid.NewString()))
	if err != nil {
		return "", 0, errors.Wrap(err, "create order")
	}
	return resp.ID, resp.Amount, nil
}

func (o *Orchestrator) runGateway(ctx context.Context, handle string, amount int64) (payment.Event, error) {
	opts := payment.CheckoutOptions{
		OrderHandle: handle,
		Amount:      amount,
		Currency:    o.currency,
		Description: "EMKart order",
	}
	if session, ok := o.provider.Current(); ok {
		opts.Name = session.Name
		opts.Email = session.Email
		opts.Phone = session.Phone
	}

	events, err := o.widget.Open(ctx, opts)
	if err != nil {
		if ferr := o.controller.Fail(); ferr != nil {
			return nil, ferr
		}
		return nil, errors.Wrap(err, "open payment widget")
	}
	if err := o.controller.GatewayOpened(); err != nil {
		return nil, err
	}

	ev, err := o.controller.Await(ctx, events)
	if err != nil {
		// Timeout or cancellation. Guard is released, cart preserved.
		return nil, err
	}
	return ev, nil
}

func (o *Orchestrator) verify(ctx context.Context, success payment.EventSuccess) error {
	req := verifyRequest{
		OrderID:   success.OrderID,
		PaymentID: success.PaymentID,
		Signature: success.Signature,
	}

	var resp verifyResponse
	if err := o.dispatcher.Do(ctx, http.MethodPost, "/api/product/verifyCheckout", req, &resp); err != nil {
		if ferr := o.controller.Fail(); ferr != nil {
			return ferr
		}
		return errors.Wrap(ErrVerificationFailed, err.Error())
	}

	if err := o.controller.Settle(); err != nil {
		return err
	}

	// Only an explicit settlement clears the cart and navigates.
	o.cart.Clear()
	if o.onSettled != nil {
		o.onSettled(success.OrderID)
	}
	return nil
}

func toMinorUnits(total decimal.Decimal) int64 {
	return total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
