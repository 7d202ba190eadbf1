package cart

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alturino/storefront/internal/commerce"
)

type ProductRef struct {
	ID       string `json:"id"`
	Handle   string `json:"handle"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type LineItem struct {
	Product         ProductRef                `json:"product"`
	VariantID       string                    `json:"variantId"`
	VariantTitle    string                    `json:"variantTitle"`
	UnitPrice       commerce.Money            `json:"unitPrice"`
	Quantity        int                       `json:"quantity"`
	SelectedOptions []commerce.SelectedOption `json:"selectedOptions"`
}

func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Amount.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewLineItem builds a line for the given variant of product.
func NewLineItem(product commerce.Product, variant commerce.Variant, quantity int) LineItem {
	options := make([]commerce.SelectedOption, len(variant.SelectedOptions))
	copy(options, variant.SelectedOptions)
	return LineItem{
		Product: ProductRef{
			ID:       product.ID,
			Handle:   product.Handle,
			Title:    product.Title,
			ImageURL: product.ImageURL(),
		},
		VariantID:       variant.ID,
		VariantTitle:    variant.Title,
		UnitPrice:       variant.Price,
		Quantity:        quantity,
		SelectedOptions: options,
	}
}

// Subtotal sums the line totals of items. Lines priced in different currencies cannot be
// summed and give ErrMixedCurrency.
func Subtotal(items []LineItem) (commerce.Money, error) {
	subtotal := commerce.Money{Amount: decimal.Zero}
	for _, item := range items {
		switch subtotal.CurrencyCode {
		case "":
			subtotal.CurrencyCode = item.UnitPrice.CurrencyCode
		case item.UnitPrice.CurrencyCode:
		default:
			return commerce.Money{Amount: decimal.Zero}, fmt.Errorf(
				"failed summing variantId=%s priced in %s into %s with error=%w",
				item.VariantID,
				item.UnitPrice.CurrencyCode,
				subtotal.CurrencyCode,
				ErrMixedCurrency,
			)
		}
		subtotal.Amount = subtotal.Amount.Add(item.LineTotal())
	}
	return subtotal, nil
}

// Checkout is a remote checkout together with the cart snapshot it was opened for.
type Checkout struct {
	CartID   string
	URL      string
	Items    []LineItem
	Subtotal commerce.Money
}

type State struct {
	Items        map[string]LineItem `json:"items"`
	RemoteCartID string              `json:"remoteCartId,omitempty"`
	CheckoutURL  string              `json:"checkoutUrl,omitempty"`
	// BoundUserID is the signed-in user whose saved cart this cart mirrors.
	BoundUserID string `json:"boundUserId,omitempty"`
	IsLoading    bool                `json:"-"`
}

func (s State) clone() State {
	items := make(map[string]LineItem, len(s.Items))
	for k, v := range s.Items {
		items[k] = v
	}
	s.Items = items
	return s
}

type NoticeType string

const (
	NoticeError   NoticeType = "error"
	NoticeWarning NoticeType = "warning"
)

// Notice is an inline message attached to a line, shown until ExpiresAt.
type Notice struct {
	VariantID string     `json:"variantId"`
	Message   string     `json:"message"`
	Type      NoticeType `json:"type"`
	ExpiresAt time.Time  `json:"expiresAt"`
}
