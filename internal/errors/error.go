package errors

import (
	"errors"
)

var (
	ErrEmptyAuth           = errors.New("missing authorization")
	ErrEmptySubject        = errors.New("missing subject")
	ErrTokenInvalid        = errors.New("invalid token")
	ErrUnauthenticated     = errors.New("sign in required")
	ErrOutOfStock          = errors.New("product is out of stock")
	ErrProductNotFound     = errors.New("product not found")
	ErrVariantNotFound     = errors.New("variant not found")
	ErrCommerceUnavailable = errors.New("commerce backend unavailable")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInvalidSession      = errors.New("invalid session id")
)
