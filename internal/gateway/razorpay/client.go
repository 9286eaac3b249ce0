// Package razorpay implements the payment gateway boundary against the
// Razorpay Orders API.
package razorpay

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emkart/storefront/internal/domain/order"
)

// maxResponseBytes bounds how much of a gateway response is read.
const maxResponseBytes = 1 << 20

// Config holds Razorpay API credentials and endpoint.
type Config struct {
	// BaseURL of the Razorpay REST API, e.g. https://api.razorpay.com.
	BaseURL string
	// KeyID and KeySecret are the API credentials; KeySecret is also the
	// HMAC key for callback signature verification.
	KeyID     string
	KeySecret string
	// Timeout for gateway calls. Zero means 10 seconds.
	Timeout time.Duration
}

// Client calls the Razorpay Orders API.
type Client struct {
	base   *url.URL
	keyID  string
	secret string
	http   *http.Client
}

var _ order.Gateway = (*Client)(nil)

// New creates a Razorpay client with an instrumented transport.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		base:   base,
		keyID:  cfg.KeyID,
		secret: cfg.KeySecret,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// CreateOrder mints an order record at the gateway and returns its opaque id.
// amount is in minor currency units. receipt is an optional merchant-side
// reference echoed back by the gateway.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(currency) })
		if receipt != "" {
			e.Field("receipt", func(e *jx.Encoder) { e.Str(receipt) })
		}
	})

	u := c.base.JoinPath("/v1/orders")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(e.Bytes()))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "post order")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("gateway returned %d: %s", resp.StatusCode, gatewayErrorDescription(body))
	}

	id, err := decodeOrderID(body)
	if err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	return id, nil
}

// decodeOrderID extracts the "id" field from a gateway order response.
func decodeOrderID(body []byte) (string, error) {
	var id string
	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "id" {
			v, err := d.Str()
			if err != nil {
				return err
			}
			id = v
			return nil
		}
		return d.Skip()
	}); err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("missing order id")
	}
	return id, nil
}

// gatewayErrorDescription pulls error.description out of a Razorpay error
// body, falling back to the raw payload.
func gatewayErrorDescription(body []byte) string {
	var desc string
	d := jx.DecodeBytes(body)
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) == "description" {
				v, err := d.Str()
				if err != nil {
					return err
				}
				desc = v
				return nil
			}
			return d.Skip()
		})
	})
	if desc == "" {
		return string(body)
	}
	return desc
}
