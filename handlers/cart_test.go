package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartFlow(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada@example.com").AccessToken
	shirt := f.product("Classic White T-Shirt", 15000)
	jacket := f.product("Denim Jacket", 45000)

	rec := f.do(http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[cartView](t, rec)
	require.NotNil(t, view.Session)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, view.Count)

	f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID, "quantity": 2})
	rec = f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID, "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view = decode[cartView](t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, "75000", view.Subtotal.String())

	rec = f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": jacket.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decode[cartView](t, rec).Count)

	rec = f.do(http.MethodPost, "/api/cart/items/"+jacket.ID.String()+"/save", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[cartView](t, rec)
	assert.Len(t, view.Items, 1)
	require.Len(t, view.SavedItems, 1)
	assert.Equal(t, jacket.ID, view.SavedItems[0].ProductID)

	rec = f.do(http.MethodPost, "/api/cart/items/"+jacket.ID.String()+"/move", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[cartView](t, rec).Items, 2)

	rec = f.do(http.MethodPatch, "/api/cart/items/"+shirt.ID.String(), token, map[string]int{"quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60000", decode[cartView](t, rec).Subtotal.String())

	rec = f.do(http.MethodPatch, "/api/cart/items/"+shirt.ID.String(), token, map[string]int{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[cartView](t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, jacket.ID, view.Items[0].ProductID)

	rec = f.do(http.MethodDelete, "/api/cart/items/"+jacket.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartView](t, rec).Items)

	f.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": shirt.ID})
	rec = f.do(http.MethodDelete, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[cartView](t, rec).Count)
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	f := newFixture(t)
	ada := f.register("ada@example.com").AccessToken
	bola := f.register("bola@example.com").AccessToken
	shirt := f.product("Classic White T-Shirt", 15000)

	f.do(http.MethodPost, "/api/cart/items", ada, map[string]any{"product_id": shirt.ID, "quantity": 2})

	rec := f.do(http.MethodGet, "/api/cart", bola, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartView](t, rec).Items)
}

func TestAddItemRejections(t *testing.T) {
	f := newFixture(t)
	token := f.register("ada@example.com").AccessToken

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"unknown product", map[string]any{"product_id": uuid.New()}, http.StatusNotFound},
		{"missing product", map[string]any{"quantity": 1}, http.StatusBadRequest},
		{"unknown field", map[string]any{"product_id": uuid.New(), "price": 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, f.do(http.MethodPost, "/api/cart/items", token, tt.body).Code)
		})
	}

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/api/cart/items/not-a-uuid", token, nil).Code)
}
