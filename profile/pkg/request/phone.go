package request

type SavePhoneNumber struct {
	PhoneNumber string `validate:"required,e164" json:"phone_number"`
	// RetryCheckout re-runs the checkout that stopped for a missing phone number.
	RetryCheckout bool `                         json:"retry_checkout"`
}
