package constants

const (
	KEY_APP_NAME       = "app"
	KEY_BODY           = "body"
	KEY_CACHE_KEY      = "cacheKey"
	KEY_CART           = "cart"
	KEY_CART_ID        = "cartId"
	KEY_CART_ITEMS     = "cartItems"
	KEY_CHECKOUT_URL   = "checkoutUrl"
	KEY_CONFIG         = "config"
	KEY_DB_URL         = "dbUrl"
	KEY_HEADER         = "header"
	KEY_ORDER          = "order"
	KEY_ORDER_ID       = "orderId"
	KEY_PROCESS        = "process"
	KEY_PRODUCT        = "product"
	KEY_PRODUCT_HANDLE = "productHandle"
	KEY_PRODUCT_ID     = "productId"
	KEY_QUANTITY       = "quantity"
	KEY_REQUEST        = "request"
	KEY_REQUEST_HOST   = "host"
	KEY_REQUEST_ID     = "requestId"
	KEY_REQUEST_IP     = "requesterIP"
	KEY_REQUEST_METHOD = "requestMethod"
	KEY_REQUEST_URI    = "requestURI"
	KEY_REQUEST_URL    = "requestURL"
	KEY_SESSION_ID     = "sessionId"
	KEY_SPAN_ID        = "spanId"
	KEY_STORAGE_KEY    = "storageKey"
	KEY_TAG            = "tag"
	KEY_TOKEN          = "token"
	KEY_TRACE_ID       = "traceId"
	KEY_USER_ID        = "userId"
	KEY_VARIANT_ID     = "variantId"
)
