package request

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateOrder struct {
	UserId       uuid.UUID       `validate:"required,uuid"                   json:"user_id"`
	CheckoutUrl  string          `validate:"required,url"                    json:"checkout_url"`
	TotalAmount  decimal.Decimal `validate:"price"                           json:"total_amount"`
	CurrencyCode string          `validate:"required,len=3,alpha,uppercase"  json:"currency_code"`
	OrderItems   []OrderItem     `validate:"required,gt=0,dive"              json:"order_items"`
}

type OrderItem struct {
	ProductId    string          `validate:"required"                        json:"product_id"`
	VariantId    string          `validate:"required"                        json:"variant_id"`
	Title        string          `validate:"required"                        json:"title"`
	VariantTitle string          `                                           json:"variant_title"`
	Price        decimal.Decimal `validate:"price"                           json:"price"`
	CurrencyCode string          `validate:"required,len=3,alpha,uppercase"  json:"currency_code"`
	Quantity     int             `validate:"required,gte=1"                  json:"quantity"`
}
