package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/emkart/storefront/internal/domain/order"
)

// idempotencyKeyHeader deduplicates retried checkout submissions.
const idempotencyKeyHeader = "Idempotency-Key"

type checkoutRequest struct {
	Amount   int64
	Currency string
	Products []order.Item
}

// CheckoutProducts handles POST /api/product/checkoutProducts: it validates
// the submitted cart, mints a gateway order, and returns its handle.
func (h *Handler) CheckoutProducts(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCheckoutRequest(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	o, err := h.checkout.CreateOrder(r.Context(), order.CreateOrderRequest{
		Items:          req.Products,
		Amount:         req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.Handle) })
		e.Field("amount", func(e *jx.Encoder) { e.Int64(o.Amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(o.Currency) })
	})
	writeJSON(w, http.StatusOK, &e)
}

// VerifyCheckout handles POST /api/product/verifyCheckout: it validates the
// gateway's signed payment confirmation and settles the order.
func (h *Handler) VerifyCheckout(w http.ResponseWriter, r *http.Request) {
	req, err := decodeVerifyRequest(r)
	if err != nil {
		writeDecodeError(w, err)
		return
	}

	o, err := h.checkout.Verify(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound), errors.Is(err, order.ErrSignatureInvalid):
			// One opaque rejection for both cases: the caller learns nothing
			// about which orders exist.
			writeError(w, http.StatusBadRequest, "payment verification failed")
		default:
			writeInternalError(w, r, err)
		}
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("orderId", func(e *jx.Encoder) { e.Str(o.Handle) })
	})
	writeJSON(w, http.StatusOK, &e)
}

// writeCheckoutError maps order domain errors to HTTP statuses.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		pnfErr *order.ProductNotFoundError
		ucErr  *order.UnsupportedCurrencyError
		amErr  *order.AmountMismatchError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems), errors.Is(err, order.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pnfErr), errors.As(err, &ucErr), errors.As(err, &amErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeInternalError(w, r, err)
	}
}

// writeDecodeError distinguishes oversized bodies (the transport rejects
// them via http.MaxBytesReader) from malformed JSON.
func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "malformed request body")
}

func decodeCheckoutRequest(r *http.Request) (checkoutRequest, error) {
	var req checkoutRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return req, err
	}

	d := jx.DecodeBytes(body)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "amount":
			v, err := d.Int64()
			if err != nil {
				return err
			}
			req.Amount = v
			return nil
		case "currency":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.Currency = v
			return nil
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return err
				}
				req.Products = append(req.Products, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return req, err
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var item order.Item
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			item.ID = v
			return nil
		case "title":
			v, err := d.Str()
			if err != nil {
				return err
			}
			item.Title = v
			return nil
		case "price":
			num, err := d.Num()
			if err != nil {
				return err
			}
			// Accept both bare and string-quoted numbers.
			price, err := decimal.NewFromString(strings.Trim(num.String(), `"`))
			if err != nil {
				return err
			}
			item.Price = price
			return nil
		default:
			return d.Skip()
		}
	})
	return item, err
}

func decodeVerifyRequest(r *http.Request) (order.VerifyRequest, error) {
	var req order.VerifyRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return req, err
	}

	d := jx.DecodeBytes(body)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "razorpay_order_id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.Handle = v
			return nil
		case "razorpay_payment_id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.PaymentID = v
			return nil
		case "razorpay_signature":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.Signature = v
			return nil
		default:
			return d.Skip()
		}
	})
	return req, err
}
