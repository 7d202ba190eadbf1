package response

import (
	"github.com/Alturino/storefront/cart"
	"github.com/Alturino/storefront/internal/commerce"
)

type Cart struct {
	Items         []cart.LineItem `json:"items"`
	Notices       []cart.Notice   `json:"notices"`
	Subtotal      commerce.Money  `json:"subtotal"`
	TotalQuantity int             `json:"total_quantity"`
	CheckoutUrl   string          `json:"checkout_url,omitempty"`
	IsLoading     bool            `json:"is_loading"`
}

// FromStore renders the cart drawer. A cart mixing currencies is shown without a subtotal.
func FromStore(store *cart.Store) Cart {
	state := store.State()
	subtotal, _ := store.Subtotal()
	return Cart{
		Items:         store.Items(),
		Notices:       store.Notices(),
		Subtotal:      subtotal,
		TotalQuantity: store.TotalQuantity(),
		CheckoutUrl:   state.CheckoutURL,
		IsLoading:     state.IsLoading,
	}
}
