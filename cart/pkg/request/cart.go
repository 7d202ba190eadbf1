package request

type AddCartItem struct {
	ProductId string `validate:"required"       json:"product_id"`
	VariantId string `validate:"required"       json:"variant_id"`
	Quantity  int    `validate:"required,gte=1" json:"quantity"`
}

// UpdateCartItem sets the quantity of a line, zero removes it.
type UpdateCartItem struct {
	Quantity *int `validate:"required,gte=0" json:"quantity"`
}
