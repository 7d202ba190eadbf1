package validate

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// New returns a validator that understands decimal prices and uuid ids.
//
// Decimals are validated through their string form with the "price" tag, uuids through
// their string form with the standard "uuid" tag; uuid.Nil maps to "" so "required" fails.
func New() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterCustomTypeFunc(PriceValue, decimal.Decimal{})
	validate.RegisterCustomTypeFunc(UUIDValue, uuid.UUID{})
	_ = validate.RegisterValidation("price", ValidatePrice)
	return validate
}

func ValidatePrice(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func PriceValue(v reflect.Value) interface{} {
	n, ok := v.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	return n.String()
}

func UUIDValue(v reflect.Value) interface{} {
	id, ok := v.Interface().(uuid.UUID)
	if !ok || id == uuid.Nil {
		return ""
	}
	return id.String()
}
