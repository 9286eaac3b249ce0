package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// GetProducts handles GET /api/product/getProducts: the public catalog read
// the storefront grid is built from.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
				e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(p.Price.String())) })
				e.Field("imageRef", func(e *jx.Encoder) { e.Str(p.ImageRef) })
			})
		}
	})
	writeJSON(w, http.StatusOK, &e)
}
