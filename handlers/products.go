package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront/models"
)

// ProductsHandler lists the catalog, optionally narrowed by ?category=.
func ProductsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			products []models.Product
			err      error
		)
		if category := r.URL.Query().Get("category"); category != "" {
			products, err = d.Products.GetByCategory(r.Context(), category)
		} else {
			products, err = d.Products.GetAll(r.Context())
		}
		if err != nil {
			writeStoreError(w, err, "failed to get products")
			return
		}
		if products == nil {
			products = []models.Product{}
		}
		writeJSON(w, http.StatusOK, products)
	}
}

func ProductHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		product, err := d.Products.GetByID(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, "failed to get product")
			return
		}
		writeJSON(w, http.StatusOK, product)
	}
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
