package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	OrderItems   []OrderItem     `json:"order_items"`
	Status       string          `json:"status"`
	CheckoutUrl  string          `json:"checkout_url"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CurrencyCode string          `json:"currency_code"`
	ID           uuid.UUID       `json:"id"`
	UserId       uuid.UUID       `json:"user_id"`
}

type OrderItem struct {
	ProductId    string          `json:"product_id"`
	VariantId    string          `json:"variant_id"`
	Title        string          `json:"title"`
	VariantTitle string          `json:"variant_title"`
	Price        decimal.Decimal `json:"price"`
	CurrencyCode string          `json:"currency_code"`
	Quantity     int             `json:"quantity"`
}
