package constants

const (
	APP_STOREFRONT         = "storefront"
	APP_STOREFRONT_MIGRATE = "storefront-migrate"
	APP_CART_MIRROR        = "cart-mirror"
	APP_MAIN_STOREFRONT    = "main storefront"
	AUDIENCE_AUTHENTICATED = "authenticated"
)

const (
	STORAGE_KEY_CART     = "cart-storage"
	STORAGE_KEY_WISHLIST = "wishlist-storage"
	CACHE_KEY_CATALOG    = "catalog-snapshot"
)
