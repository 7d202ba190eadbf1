package request

type AddWishlistItem struct {
	ProductId string `validate:"required" json:"product_id"`
}
