package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/catalog"
	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/middleware"
	"github.com/Alturino/storefront/internal/storage"
	"github.com/Alturino/storefront/storefront/internal/session"
)

const checkoutUrl = "https://shop.example.com/checkouts/1"

func stock(n int) *int {
	return &n
}

type fakeCommerce struct {
	products []commerce.Product
}

func (f *fakeCommerce) GetProducts(c context.Context, count int) ([]commerce.Product, error) {
	return f.products, nil
}

func (f *fakeCommerce) GetProductByID(c context.Context, id string) (commerce.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return commerce.Product{}, inErrors.ErrProductNotFound
}

func (f *fakeCommerce) CartCreate(
	c context.Context,
	lines []commerce.CartLineInput,
	buyer *commerce.BuyerIdentity,
) (commerce.CartCreateResult, error) {
	return commerce.CartCreateResult{CartID: "cart-1", CheckoutURL: checkoutUrl}, nil
}

type body struct {
	Status     string                     `json:"status"`
	StatusCode int                        `json:"statusCode"`
	Message    string                     `json:"message"`
	Data       map[string]json.RawMessage `json:"data"`
}

type cartBody struct {
	Items []struct {
		VariantID string `json:"variantId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Notices []struct {
		Message string `json:"message"`
	} `json:"notices"`
	TotalQuantity int `json:"total_quantity"`
}

type client struct {
	t         *testing.T
	router    *mux.Router
	sessionId string
}

func (cl client) do(method string, path string, payload interface{}) (int, body) {
	cl.t.Helper()
	var reqBody bytes.Buffer
	if payload != nil {
		require.NoError(cl.t, json.NewEncoder(&reqBody).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set(inHttp.KEY_HEADER_SESSION_ID, cl.sessionId)
	rec := httptest.NewRecorder()
	cl.router.ServeHTTP(rec, req)

	res := body{}
	require.NoError(cl.t, json.NewDecoder(rec.Body).Decode(&res))
	return rec.Code, res
}

func (cl client) cart(res body) cartBody {
	cl.t.Helper()
	cart := cartBody{}
	require.NoError(cl.t, json.Unmarshal(res.Data["cart"], &cart))
	return cart
}

func setup(t *testing.T) client {
	t.Helper()
	fake := &fakeCommerce{products: []commerce.Product{
		{
			ID:     "p1",
			Handle: "pearl-ring",
			Title:  "Pearl Ring",
			Variants: []commerce.Variant{
				{
					ID:                "v1",
					Title:             "Size 6",
					Price:             commerce.Money{Amount: decimal.RequireFromString("100"), CurrencyCode: "USD"},
					AvailableForSale:  true,
					QuantityAvailable: stock(5),
				},
				{
					ID:                "v2",
					Title:             "Size 7",
					Price:             commerce.Money{Amount: decimal.RequireFromString("100"), CurrencyCode: "USD"},
					AvailableForSale:  false,
					QuantityAvailable: stock(0),
				},
			},
		},
	}}
	registry := session.NewRegistry(
		storage.NewMemoryStorage(),
		fake,
		nil,
		nil,
		nil,
		config.Cart{NoticeTTL: 4 * time.Second},
	)
	t.Cleanup(func() {
		require.NoError(t, registry.Shutdown(context.Background()))
	})
	cat := catalog.NewCache(fake, nil, config.Commerce{ProductCount: 250})

	router := mux.NewRouter()
	router.Use(middleware.Session)
	AttachCatalogController(router, cat)
	AttachCartController(router, registry)
	AttachWishlistController(router, registry, cat)
	AttachCheckoutController(router, registry, nil, nil)

	return client{t: t, router: router, sessionId: uuid.NewString()}
}

func TestCatalogRoutes(t *testing.T) {
	cl := setup(t)

	code, res := cl.do(http.MethodGet, "/products", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data["products"]), "pearl-ring")

	code, res = cl.do(http.MethodGet, "/products/pearl-ring", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data["product"]), `"id":"p1"`)

	code, res = cl.do(http.MethodGet, "/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "failed", res.Status)
}

func TestCartRoutes(t *testing.T) {
	cl := setup(t)

	code, res := cl.do(http.MethodPost, "/cart/items", map[string]interface{}{
		"product_id": "p1",
		"variant_id": "v1",
		"quantity":   2,
	})
	require.Equal(t, http.StatusOK, code)
	cart := cl.cart(res)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	code, res = cl.do(http.MethodPut, "/cart/items/v1", map[string]interface{}{"quantity": 9})
	require.Equal(t, http.StatusOK, code)
	cart = cl.cart(res)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Contains(t, string(res.Data["result"]), "Only 5 left in stock")

	code, res = cl.do(http.MethodPost, "/cart/validate", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "true", string(res.Data["valid"]))

	code, res = cl.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, cl.cart(res).TotalQuantity)

	code, res = cl.do(http.MethodDelete, "/cart/items/v1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, cl.cart(res).Items)
}

func TestCartRouteFailures(t *testing.T) {
	type testCase struct {
		name     string
		method   string
		path     string
		payload  interface{}
		wantCode int
	}

	testCases := []testCase{
		{
			name:     "missing quantity",
			method:   http.MethodPost,
			path:     "/cart/items",
			payload:  map[string]interface{}{"product_id": "p1", "variant_id": "v1"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unavailable variant",
			method:   http.MethodPost,
			path:     "/cart/items",
			payload:  map[string]interface{}{"product_id": "p1", "variant_id": "v2", "quantity": 1},
			wantCode: http.StatusConflict,
		},
		{
			name:     "unknown product",
			method:   http.MethodPost,
			path:     "/cart/items",
			payload:  map[string]interface{}{"product_id": "p9", "variant_id": "v1", "quantity": 1},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "update line not in cart",
			method:   http.MethodPut,
			path:     "/cart/items/v1",
			payload:  map[string]interface{}{"quantity": 1},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "negative quantity",
			method:   http.MethodPut,
			path:     "/cart/items/v1",
			payload:  map[string]interface{}{"quantity": -1},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "sync as guest",
			method:   http.MethodPost,
			path:     "/cart/sync",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "orders as guest",
			method:   http.MethodGet,
			path:     "/orders",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "checkout empty cart",
			method:   http.MethodPost,
			path:     "/checkout",
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cl := setup(t)
			code, res := cl.do(tc.method, tc.path, tc.payload)
			assert.Equal(t, tc.wantCode, code)
			assert.Equal(t, "failed", res.Status)
		})
	}
}

func TestCheckoutRoute(t *testing.T) {
	cl := setup(t)
	code, _ := cl.do(http.MethodPost, "/cart/items", map[string]interface{}{
		"product_id": "p1",
		"variant_id": "v1",
		"quantity":   1,
	})
	require.Equal(t, http.StatusOK, code)

	code, res := cl.do(http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", res.Status)
	assert.Contains(t, string(res.Data["checkout"]), checkoutUrl)

	_, res = cl.do(http.MethodGet, "/cart", nil)
	assert.Empty(t, cl.cart(res).Items)
}

func TestWishlistRoutes(t *testing.T) {
	cl := setup(t)

	code, res := cl.do(http.MethodPost, "/wishlist", map[string]interface{}{"product_id": "p1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "true", string(res.Data["added"]))

	code, res = cl.do(http.MethodGet, "/wishlist", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data["items"]), `"productId":"p1"`)

	code, _ = cl.do(http.MethodPost, "/wishlist", map[string]interface{}{"product_id": "p9"})
	assert.Equal(t, http.StatusNotFound, code)

	code, res = cl.do(http.MethodDelete, "/wishlist/p1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "true", string(res.Data["removed"]))
	assert.Equal(t, "[]", string(res.Data["items"]))
}

func TestSessionsAreIsolated(t *testing.T) {
	cl := setup(t)
	code, _ := cl.do(http.MethodPost, "/cart/items", map[string]interface{}{
		"product_id": "p1",
		"variant_id": "v1",
		"quantity":   1,
	})
	require.Equal(t, http.StatusOK, code)

	other := cl
	other.sessionId = uuid.NewString()
	_, res := other.do(http.MethodGet, "/cart", nil)
	assert.Empty(t, other.cart(res).Items)
}
