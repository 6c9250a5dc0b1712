package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/admin"
	"storefront/models"
	"storefront/store"
	"storefront/validators"
)

const maxUploadSize = 32 << 20

func writeAdminError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, admin.ErrImageRequired):
		writeError(w, http.StatusBadRequest, "invalid_input", admin.MsgImageRequired, nil)
	case errors.Is(err, admin.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, admin.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), map[string]any{"categories": admin.Categories})
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", fallback, nil)
	default:
		writeStoreError(w, err, fallback)
	}
}

func AdminStatsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.Admin.Stats(r.Context())
		if err != nil {
			writeStoreError(w, err, "failed to load stats")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func AdminProductsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := d.Admin.ListProducts(r.Context())
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

// AdminCreateProductHandler takes a multipart form with the product fields, a
// required "image" file and any number of "images" files.
func AdminCreateProductHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form", map[string]any{"error": err.Error()})
			return
		}
		defer r.MultipartForm.RemoveAll()

		input := models.ProductInput{
			Name:        strings.TrimSpace(r.FormValue("name")),
			Category:    r.FormValue("category"),
			Description: r.FormValue("description"),
		}
		price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("price")))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "price must be a number", nil)
			return
		}
		input.Price = price
		if err := validators.Struct(input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
			return
		}

		var primary *admin.Image
		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			primary = &admin.Image{Filename: header.Filename, Body: file}
		}

		var additional []admin.Image
		for _, fh := range r.MultipartForm.File["images"] {
			file, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("cannot read %s", fh.Filename), nil)
				return
			}
			defer file.Close()
			additional = append(additional, admin.Image{Filename: fh.Filename, Body: file})
		}

		product, err := d.Admin.CreateProduct(r.Context(), input, primary, additional)
		if err != nil {
			if product != nil {
				writeError(w, http.StatusInternalServerError, "partial_failure", admin.MsgProductAddFailed, map[string]any{"product_id": product.ID})
				return
			}
			writeAdminError(w, err, admin.MsgProductAddFailed)
			return
		}
		writeJSON(w, http.StatusCreated, toast{Message: admin.MsgProductAdded, Data: product})
	}
}

func AdminDeleteProductHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		if err := d.Admin.DeleteProduct(r.Context(), id); err != nil {
			writeAdminError(w, err, admin.MsgProductDeleteFailed)
			return
		}
		writeJSON(w, http.StatusOK, toast{Message: admin.MsgProductDeleted})
	}
}

func AdminOrdersHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := d.Admin.ListOrders(r.Context())
		if err != nil {
			writeStoreError(w, err, admin.MsgOrdersFetchFailed)
			return
		}
		if orders == nil {
			orders = []models.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func AdminOrderStatusHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var req models.StatusRequest
		if !decodeValid(w, r, &req) {
			return
		}
		if err := d.Admin.UpdateOrderStatus(r.Context(), id, req.Status); err != nil {
			writeAdminError(w, err, admin.MsgOrderUpdateFailed)
			return
		}
		writeJSON(w, http.StatusOK, toast{Message: admin.MsgOrderUpdated})
	}
}

func AdminExportOrdersHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := d.Admin.ExportOrders(r.Context(), &buf); err != nil {
			writeStoreError(w, err, "failed to export orders")
			return
		}
		filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}
