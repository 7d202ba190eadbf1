package repository

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type CartItem struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"user_id"`
	VariantID   string             `json:"variant_id"`
	ProductID   string             `json:"product_id"`
	Quantity    int32              `json:"quantity"`
	ProductData []byte             `json:"product_data"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}

type Order struct {
	ID           uuid.UUID          `json:"id"`
	UserID       uuid.UUID          `json:"user_id"`
	CheckoutUrl  string             `json:"checkout_url"`
	TotalAmount  pgtype.Numeric     `json:"total_amount"`
	CurrencyCode string             `json:"currency_code"`
	Status       OrderStatus        `json:"status"`
	OrderData    []byte             `json:"order_data"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type Profile struct {
	UserID            uuid.UUID          `json:"user_id"`
	PhoneNumber       pgtype.Text        `json:"phone_number"`
	ShopifyCustomerID pgtype.Text        `json:"shopify_customer_id"`
	CreatedAt         pgtype.Timestamptz `json:"created_at"`
	UpdatedAt         pgtype.Timestamptz `json:"updated_at"`
}
