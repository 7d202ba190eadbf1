package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
)

const productJson = `{
  "id": "gid://shopify/Product/1",
  "title": "Pearl Ring",
  "description": "Freshwater pearl",
  "handle": "pearl-ring",
  "totalInventory": 3,
  "priceRange": {
    "minVariantPrice": {"amount": "49.90", "currencyCode": "USD"},
    "maxVariantPrice": {"amount": "59.90", "currencyCode": "USD"}
  },
  "images": {"edges": [{"node": {"url": "https://cdn/ring.jpg", "altText": "ring"}}]},
  "variants": {"edges": [
    {"node": {
      "id": "gid://shopify/ProductVariant/11",
      "title": "Size 6",
      "price": {"amount": "49.90", "currencyCode": "USD"},
      "availableForSale": true,
      "quantityAvailable": 3,
      "selectedOptions": [{"name": "Size", "value": "6"}]
    }},
    {"node": {
      "id": "gid://shopify/ProductVariant/12",
      "title": "Size 7",
      "price": {"amount": "59.90", "currencyCode": "USD"},
      "availableForSale": true,
      "quantityAvailable": null,
      "selectedOptions": [{"name": "Size", "value": "7"}]
    }}
  ]}
}`

type recordedRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.Commerce{
		Endpoint:       server.URL,
		ApiKey:         "secret",
		Timeout:        time.Second,
		BreakerTimeout: time.Minute,
	})
}

func decodeRequest(t *testing.T, r *http.Request) recordedRequest {
	req := recordedRequest{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestGetProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		req := decodeRequest(t, r)
		assert.Contains(t, req.Query, "query getProducts")
		assert.EqualValues(t, 250, req.Variables["count"])
		_, _ = w.Write([]byte(`{"data":{"products":{"edges":[{"node":` + productJson + `}]}}}`))
	})

	products, err := client.GetProducts(context.Background(), 250)
	require.NoError(t, err)
	require.Len(t, products, 1)

	product := products[0]
	assert.Equal(t, "pearl-ring", product.Handle)
	assert.Equal(t, "https://cdn/ring.jpg", product.ImageURL())
	require.Len(t, product.Variants, 2)
	assert.True(t, decimal.RequireFromString("49.90").Equal(product.Variants[0].Price.Amount))
	assert.Equal(t, []SelectedOption{{Name: "Size", Value: "6"}}, product.Variants[0].SelectedOptions)

	available, tracked := product.Variants[0].Stock()
	assert.True(t, tracked)
	assert.Equal(t, 3, available)

	_, tracked = product.Variants[1].Stock()
	assert.False(t, tracked)
	assert.True(t, product.Variants[1].Purchasable())
}

func TestGetProductByID(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		status      int
		expectedErr error
	}{
		{
			name:     "given existing product should return product",
			response: `{"data":{"product":` + productJson + `}}`,
			status:   http.StatusOK,
		},
		{
			name:        "given null product should return not found",
			response:    `{"data":{"product":null}}`,
			status:      http.StatusOK,
			expectedErr: inErrors.ErrProductNotFound,
		},
		{
			name:        "given graphql errors should return graphql error",
			response:    `{"errors":[{"message":"throttled"}]}`,
			status:      http.StatusOK,
			expectedErr: ErrGraphQL,
		},
		{
			name:        "given server failure should return unavailable",
			response:    `oops`,
			status:      http.StatusBadGateway,
			expectedErr: inErrors.ErrCommerceUnavailable,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				req := decodeRequest(t, r)
				assert.Equal(t, "gid://shopify/Product/1", req.Variables["id"])
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.response))
			})

			product, err := client.GetProductByID(context.Background(), "gid://shopify/Product/1")
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				return
			}
			require.NoError(t, err)
			variant, ok := product.VariantByID("gid://shopify/ProductVariant/11")
			assert.True(t, ok)
			assert.Equal(t, "Size 6", variant.Title)
		})
	}
}

func TestCartCreate(t *testing.T) {
	tests := []struct {
		name     string
		buyer    *BuyerIdentity
		response string
		expected CartCreateResult
	}{
		{
			name:     "given lines should return checkout url",
			response: `{"data":{"cartCreate":{"cart":{"id":"gid://shopify/Cart/1","checkoutUrl":"https://shop/checkout/1"},"userErrors":[]}}}`,
			expected: CartCreateResult{
				CartID:      "gid://shopify/Cart/1",
				CheckoutURL: "https://shop/checkout/1",
				UserErrors:  []UserError{},
			},
		},
		{
			name:     "given deleted variant should return user errors",
			buyer:    &BuyerIdentity{Phone: "+14155550100"},
			response: `{"data":{"cartCreate":{"cart":null,"userErrors":[{"field":["input","lines","0"],"message":"The merchandise does not exist."}]}}}`,
			expected: CartCreateResult{
				UserErrors: []UserError{
					{Field: []string{"input", "lines", "0"}, Message: "The merchandise does not exist."},
				},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				req := decodeRequest(t, r)
				assert.True(t, strings.Contains(req.Query, "mutation cartCreate"))
				input := req.Variables["input"].(map[string]interface{})
				lines := input["lines"].([]interface{})
				assert.Equal(t, map[string]interface{}{
					"merchandiseId": "gid://shopify/ProductVariant/11",
					"quantity":      float64(2),
				}, lines[0])
				_, hasBuyer := input["buyerIdentity"]
				assert.Equal(t, test.buyer != nil, hasBuyer)
				_, _ = w.Write([]byte(test.response))
			})

			result, err := client.CartCreate(
				context.Background(),
				[]CartLineInput{{MerchandiseID: "gid://shopify/ProductVariant/11", Quantity: 2}},
				test.buyer,
			)
			require.NoError(t, err)
			assert.Equal(t, test.expected, result)
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for range 5 {
		_, err := client.GetProducts(context.Background(), 1)
		assert.ErrorIs(t, err, inErrors.ErrCommerceUnavailable)
	}
	_, err := client.GetProducts(context.Background(), 1)
	assert.ErrorIs(t, err, inErrors.ErrCommerceUnavailable)
	assert.EqualValues(t, 5, calls.Load())
}
