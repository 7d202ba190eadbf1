package cart

import (
	"errors"
	"strings"

	"github.com/Alturino/storefront/internal/commerce"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNoCheckoutURL    = errors.New("no checkout url returned")
	ErrCheckoutRejected = errors.New("checkout rejected")
	ErrEditInFlight     = errors.New("an edit for this item is already in progress")
	ErrMixedCurrency    = errors.New("cart lines are priced in different currencies")
)

// UserErrors carries the platform's user-facing validation messages unchanged.
type UserErrors []commerce.UserError

func (e UserErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, ue := range e {
		messages = append(messages, ue.Message)
	}
	return strings.Join(messages, "; ")
}

func (e UserErrors) Is(target error) bool {
	return target == ErrCheckoutRejected
}
