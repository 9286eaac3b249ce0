package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emkart/storefront/internal/domain/auth"
	"github.com/emkart/storefront/internal/domain/order"
	"github.com/emkart/storefront/internal/domain/product"
)

const testSecret = "rzp-test-secret"

// --- Fakes ---

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	if token != "valid-token" {
		return nil, auth.ErrUnauthenticated
	}
	return &auth.Identity{UserID: "user-1", Name: "Asha"}, nil
}

type fakeProductRepo struct {
	products []product.Product
}

func (f *fakeProductRepo) List(context.Context) ([]product.Product, error) {
	return f.products, nil
}

func (f *fakeProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		for _, p := range f.products {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

type fakeOrderRepo struct {
	byHandle map[string]*order.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{byHandle: make(map[string]*order.Order)}
}

func (f *fakeOrderRepo) Create(_ context.Context, o *order.Order) error {
	cp := *o
	f.byHandle[o.Handle] = &cp
	return nil
}

func (f *fakeOrderRepo) GetByHandle(_ context.Context, handle string) (*order.Order, error) {
	o, ok := f.byHandle[handle]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) GetByIdempotencyKey(_ context.Context, key string) (*order.Order, error) {
	for _, o := range f.byHandle {
		if o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (f *fakeOrderRepo) Settle(_ context.Context, handle, paymentID string) (bool, error) {
	o, ok := f.byHandle[handle]
	if !ok || o.Status != order.StatusCreated {
		return false, nil
	}
	o.Status = order.StatusSettled
	o.PaymentID = paymentID
	return true, nil
}

type fakeGateway struct {
	handle string
	err    error
	calls  int
}

func (f *fakeGateway) CreateOrder(context.Context, int64, string, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.handle, nil
}

// --- Harness ---

type fixture struct {
	mux     *http.ServeMux
	orders  *fakeOrderRepo
	gateway *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := &fakeProductRepo{products: []product.Product{
		{ID: "1", Title: "Headphones", Price: decimal.RequireFromString("100")},
		{ID: "2", Title: "Keyboard", Price: decimal.RequireFromString("250")},
	}}
	orders := newFakeOrderRepo()
	gateway := &fakeGateway{handle: "order_abc123"}
	svc := order.NewService(catalog, orders, gateway, []byte(testSecret), []string{"INR"})

	mux := http.NewServeMux()
	NewHandler(catalog, svc).Register(mux, fakeVerifier{})
	return &fixture{mux: mux, orders: orders, gateway: gateway}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

const checkoutBody = `{"amount":35000,"currency":"INR","products":[` +
	`{"id":"1","title":"Headphones","price":100},` +
	`{"id":"2","title":"Keyboard","price":250}]}`

// --- Tests ---

func TestCheckoutProducts_NoToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "", checkoutBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, f.gateway.calls)
}

func TestCheckoutProducts_InvalidToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "stale-token", checkoutBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutProducts_Success(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "valid-token", checkoutBody)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}](t, rec)
	assert.Equal(t, "order_abc123", resp.ID)
	assert.Equal(t, int64(35000), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
}

func TestCheckoutProducts_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	body := `{"amount":30000,"currency":"INR","products":[{"id":"1","title":"Headphones","price":100},{"id":"2","title":"Keyboard","price":250}]}`
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "valid-token", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, f.gateway.calls, "mismatched amounts must not reach the gateway")
}

func TestCheckoutProducts_EmptyProducts(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "valid-token",
		`{"amount":100,"currency":"INR","products":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutProducts_UnsupportedCurrency(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "valid-token",
		`{"amount":35000,"currency":"USD","products":[{"id":"1","title":"Headphones","price":100}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCheckoutProducts_GatewayDown(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = errors.New("connection refused")
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "valid-token", checkoutBody)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCheckoutProducts_MalformedBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "valid-token", `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyCheckout_Settles(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "valid-token", checkoutBody)
	require.Equal(t, http.StatusOK, rec.Code)

	sig := order.Sign([]byte(testSecret), "order_abc123", "pay_1")
	body := `{"razorpay_order_id":"order_abc123","razorpay_payment_id":"pay_1","razorpay_signature":"` + sig + `"}`

	rec = f.do(t, http.MethodPost, "/api/product/verifyCheckout", "valid-token", body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[struct {
		Status string `json:"status"`
	}](t, rec)
	assert.Equal(t, "settled", resp.Status)

	// Replay is an idempotent 200.
	rec = f.do(t, http.MethodPost, "/api/product/verifyCheckout", "valid-token", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyCheckout_BadSignature(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/product/checkoutProducts", "valid-token", checkoutBody)
	require.Equal(t, http.StatusOK, rec.Code)

	body := `{"razorpay_order_id":"order_abc123","razorpay_payment_id":"pay_1","razorpay_signature":"deadbeef"}`
	rec = f.do(t, http.MethodPost, "/api/product/verifyCheckout", "valid-token", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyCheckout_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	sig := order.Sign([]byte(testSecret), "order_missing", "pay_1")
	body := `{"razorpay_order_id":"order_missing","razorpay_payment_id":"pay_1","razorpay_signature":"` + sig + `"}`
	rec := f.do(t, http.MethodPost, "/api/product/verifyCheckout", "valid-token", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProducts_Public(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/product/getProducts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[[]struct {
		ID    string  `json:"id"`
		Title string  `json:"title"`
		Price float64 `json:"price"`
	}](t, rec)
	require.Len(t, resp, 2)
	assert.Equal(t, "Headphones", resp[0].Title)
}
