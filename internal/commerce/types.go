package commerce

import (
	"github.com/shopspring/decimal"
)

type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

type PriceRange struct {
	MinVariantPrice Money `json:"minVariantPrice"`
	MaxVariantPrice Money `json:"maxVariantPrice"`
}

type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
}

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Variant struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Price            Money  `json:"price"`
	AvailableForSale bool   `json:"availableForSale"`
	// QuantityAvailable is nil when the platform does not track stock for the variant.
	QuantityAvailable *int             `json:"quantityAvailable"`
	SelectedOptions   []SelectedOption `json:"selectedOptions"`
}

// Stock reports how many units can be sold. tracked is false when the variant has no
// stock count, in which case only AvailableForSale limits it.
func (v Variant) Stock() (available int, tracked bool) {
	if v.QuantityAvailable == nil {
		return 0, false
	}
	return *v.QuantityAvailable, true
}

// Purchasable is false for variants that are not for sale or have no units left.
func (v Variant) Purchasable() bool {
	if !v.AvailableForSale {
		return false
	}
	available, tracked := v.Stock()
	return !tracked || available > 0
}

type Product struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Handle         string     `json:"handle"`
	TotalInventory *int       `json:"totalInventory"`
	PriceRange     PriceRange `json:"priceRange"`
	Images         []Image    `json:"images"`
	Variants       []Variant  `json:"variants"`
}

func (p Product) VariantByID(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

func (p Product) ImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

type CartLineInput struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

type BuyerIdentity struct {
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type CartCreateResult struct {
	CartID      string      `json:"cartId"`
	CheckoutURL string      `json:"checkoutUrl"`
	UserErrors  []UserError `json:"userErrors"`
}
