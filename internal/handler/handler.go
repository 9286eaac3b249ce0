// Package handler exposes the checkout HTTP surface. Routing is hand-written
// on net/http; request and response bodies use go-faster/jx.
package handler

import (
	"net/http"

	"github.com/emkart/storefront/internal/domain/auth"
	"github.com/emkart/storefront/internal/domain/order"
	"github.com/emkart/storefront/internal/domain/product"
)

// Handler serves the product catalog and checkout endpoints.
type Handler struct {
	products product.Repository
	checkout *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, checkout *order.Service) *Handler {
	return &Handler{
		products: products,
		checkout: checkout,
	}
}

// Register mounts the API routes on mux. Checkout routes require a bearer
// token; the catalog read is public.
func (h *Handler) Register(mux *http.ServeMux, verifier auth.Verifier) {
	authn := RequireAuth(verifier)
	mux.HandleFunc("GET /api/product/getProducts", h.GetProducts)
	mux.Handle("POST /api/product/checkoutProducts", authn(http.HandlerFunc(h.CheckoutProducts)))
	mux.Handle("POST /api/product/verifyCheckout", authn(http.HandlerFunc(h.VerifyCheckout)))
}
