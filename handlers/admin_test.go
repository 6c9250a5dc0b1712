package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/admin"
	"storefront/models"
)

func productForm(t *testing.T, fields map[string]string, files map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, names := range files {
		for _, name := range names {
			fw, err := mw.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = fw.Write([]byte("image-bytes-" + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *fixture) postForm(token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type createdProduct struct {
	Message string         `json:"message"`
	Data    models.Product `json:"data"`
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada@example.com").AccessToken

	rec := f.do(http.MethodGet, "/api/admin/orders", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCreateProduct(t *testing.T) {
	f := newFixture(t)
	token := f.register(adminEmail).AccessToken
	fields := map[string]string{
		"name":        "Denim Jacket",
		"price":       "45000",
		"category":    "Clothes",
		"description": "Classic blue denim jacket",
	}

	body, ct := productForm(t, fields, map[string][]string{"image": {"front.jpg"}, "images": {"back.jpg", "side.jpg"}})
	rec := f.postForm(token, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[createdProduct](t, rec)
	assert.Equal(t, admin.MsgProductAdded, created.Message)
	assert.Contains(t, created.Data.Image, "http://shop.test/storage/product-images/")
	assert.Contains(t, created.Data.Image, "-front.jpg")
	assert.Len(t, created.Data.Images, 2)

	img := f.do(http.MethodGet, created.Data.Image[len("http://shop.test"):], "", nil)
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image-bytes-front.jpg", img.Body.String())

	rec = f.do(http.MethodGet, "/api/products?category=clothes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Product](t, rec), 1)

	rec = f.do(http.MethodGet, "/api/products/"+created.Data.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Denim Jacket", decode[models.Product](t, rec).Name)
}

func TestAdminCreateProductRejections(t *testing.T) {
	f := newFixture(t)
	token := f.register(adminEmail).AccessToken
	valid := func() map[string]string {
		return map[string]string{"name": "Denim Jacket", "price": "45000", "category": "Clothes"}
	}
	withImage := map[string][]string{"image": {"front.jpg"}}

	tests := []struct {
		name    string
		mutate  func(map[string]string)
		files   map[string][]string
		message string
	}{
		{"missing image", func(map[string]string) {}, nil, "Please select a product image"},
		{"unknown category", func(m map[string]string) { m["category"] = "Groceries" }, withImage, "unknown product category: Groceries"},
		{"bad price", func(m map[string]string) { m["price"] = "cheap" }, withImage, "price must be a number"},
		{"negative price", func(m map[string]string) { m["price"] = "-1" }, withImage, "price must not be negative"},
		{"missing name", func(m map[string]string) { delete(m, "name") }, withImage, "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := valid()
			tt.mutate(fields)
			body, ct := productForm(t, fields, tt.files)
			rec := f.postForm(token, body, ct)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.message, decode[apiError](t, rec).Message)
		})
	}

	rec := f.do(http.MethodGet, "/api/admin/products", token, nil)
	assert.Empty(t, decode[[]models.Product](t, rec))
}

func TestAdminDeleteProduct(t *testing.T) {
	f := newFixture(t)
	token := f.register(adminEmail).AccessToken
	p := f.product("Leather Watch", 35000)

	rec := f.do(http.MethodDelete, "/api/admin/products/"+p.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, admin.MsgProductDeleted, decode[toast](t, rec).Message)

	rec = f.do(http.MethodDelete, "/api/admin/products/"+p.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminOrders(t *testing.T) {
	f := newFixture(t)
	token := f.register(adminEmail).AccessToken
	order := &models.Order{UserID: "user-1", Total: decimal.NewFromInt(15000), DeliveryName: "Ada Obi"}
	require.NoError(t, f.backend.Orders.Create(context.Background(), order))
	f.product("Leather Watch", 35000)

	rec := f.do(http.MethodGet, "/api/admin/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Order](t, rec), 1)

	path := "/api/admin/orders/" + order.ID.String() + "/status"
	rec = f.do(http.MethodPatch, path, token, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPatch, path, token, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, admin.MsgOrderUpdated, decode[toast](t, rec).Message)

	rec = f.do(http.MethodGet, "/api/admin/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[admin.Stats](t, rec)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, 0, stats.PendingOrders)
	assert.Equal(t, 1, stats.TotalProducts)
	assert.True(t, stats.TotalSales.Equal(decimal.NewFromInt(15000)))

	rec = f.do(http.MethodGet, "/api/admin/orders/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}
