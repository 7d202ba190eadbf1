// Package controller exposes the storefront over HTTP.
package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Alturino/storefront/cart"
	"github.com/Alturino/storefront/checkout"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/validate"
)

var requestValidator = validate.New()

var errMalformedBody = errors.New("malformed request body")

func decodeRequest(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %s", errMalformedBody, err.Error())
	}
	return requestValidator.StructCtx(r.Context(), v)
}

func statusFor(err error) int {
	validationErrors := validator.ValidationErrors{}
	switch {
	case errors.As(err, &validationErrors),
		errors.Is(err, errMalformedBody),
		errors.Is(err, inErrors.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, inErrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, inErrors.ErrProductNotFound),
		errors.Is(err, inErrors.ErrVariantNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrEditInFlight),
		errors.Is(err, checkout.ErrCheckoutInFlight):
		return http.StatusConflict
	case errors.Is(err, cart.ErrCheckoutRejected),
		errors.Is(err, cart.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, inErrors.ErrCommerceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
