// Package checkout hands a session's cart off to the commerce platform's checkout page.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart"
	"github.com/Alturino/storefront/internal"
	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/order/pkg/request"
	"github.com/Alturino/storefront/order/pkg/response"
)

const (
	messageFailed           = "Checkout failed, please try again"
	messageInFlight         = "Checkout is already in progress"
	messageInventoryChanged = "Some items in your cart have changed"
	messagePhoneRequired    = "Please add a phone number to continue"
	messageInvalidPhone     = "Please enter a valid phone number"
	messageEmptyCart        = "Your cart is empty"
	messageStockUnavailable = "We could not check stock right now, please try again"
)

var ErrCheckoutInFlight = errors.New("checkout already in progress")

type Status string

const (
	StatusRedirected       Status = "redirected"
	StatusInventoryChanged Status = "inventory_changed"
	StatusPhoneRequired    Status = "phone_required"
	StatusFailed           Status = "failed"
)

type Result struct {
	Status      Status        `json:"status"`
	CheckoutURL string        `json:"checkoutUrl,omitempty"`
	Message     string        `json:"message,omitempty"`
	Notices     []cart.Notice `json:"notices,omitempty"`
}

type InventoryGate interface {
	ValidateCartInventory(c context.Context) (bool, error)
}

type PhoneStore interface {
	PhoneNumber(c context.Context, userId uuid.UUID) (string, error)
	SavePhoneNumber(c context.Context, userId uuid.UUID, phone string) error
}

type OrderRecorder interface {
	CreateOrder(c context.Context, param request.CreateOrder) (response.Order, error)
}

type SavedCart interface {
	DeleteCartItems(c context.Context, userID uuid.UUID) error
}

type Orchestrator struct {
	store     *cart.Store
	inventory InventoryGate
	profiles  PhoneStore
	orders    OrderRecorder
	saved     SavedCart
	inFlight  atomic.Bool
}

// NewOrchestrator wires a checkout for one session. profiles, orders and saved are only
// used for signed-in users and may be nil for guest-only deployments.
func NewOrchestrator(
	store *cart.Store,
	inventory InventoryGate,
	profiles PhoneStore,
	orders OrderRecorder,
	saved SavedCart,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		inventory: inventory,
		profiles:  profiles,
		orders:    orders,
		saved:     saved,
	}
}

// Checkout runs one attempt. The returned Result is always safe to show; err carries the
// underlying cause of a failed attempt.
func (o *Orchestrator) Checkout(c context.Context, opener WindowOpener) (Result, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return Result{Status: StatusFailed, Message: messageInFlight}, ErrCheckoutInFlight
	}
	defer o.inFlight.Store(false)
	return o.run(c, opener)
}

// SubmitPhoneAndRetry saves the phone number of the signed-in user and, once saved,
// starts the checkout again from a fresh window.
func (o *Orchestrator) SubmitPhoneAndRetry(
	c context.Context,
	opener WindowOpener,
	phone string,
) (Result, error) {
	c, span := otel.Tracer.Start(c, "CheckoutOrchestrator SubmitPhoneAndRetry")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CheckoutOrchestrator SubmitPhoneAndRetry").
		Logger()

	userId, ok := internal.UserIdFromContext(c)
	if !ok || o.profiles == nil {
		err := fmt.Errorf("failed saving phone number with error=%w", inErrors.ErrUnauthenticated)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Result{Status: StatusFailed, Message: err.Error()}, err
	}

	logger = logger.With().
		Str(constants.KEY_USER_ID, userId.String()).
		Str(constants.KEY_PROCESS, "saving phone number").
		Logger()
	logger.Info().Msg("saving phone number")
	if err := o.profiles.SavePhoneNumber(logger.WithContext(c), userId, phone); err != nil {
		err = fmt.Errorf("failed saving phone number with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		message := messageFailed
		validationErrors := validator.ValidationErrors{}
		if errors.As(err, &validationErrors) {
			message = messageInvalidPhone
		}
		return Result{Status: StatusPhoneRequired, Message: message}, err
	}
	logger.Info().Msg("saved phone number")

	return o.Checkout(logger.WithContext(c), opener)
}

func (o *Orchestrator) run(c context.Context, opener WindowOpener) (Result, error) {
	c, span := otel.Tracer.Start(c, "CheckoutOrchestrator Checkout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CheckoutOrchestrator Checkout").
		Logger()

	if opener == nil {
		opener = NoopOpener{}
	}
	window := opener.Open()
	closeWindow := func() {
		if window == nil {
			return
		}
		if err := window.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed closing placeholder window")
		}
	}
	fail := func(err error, message string) (Result, error) {
		closeWindow()
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Result{Status: StatusFailed, Message: message}, err
	}
	if window == nil {
		logger.Debug().Msg("no placeholder window")
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "validating inventory").Logger()
	logger.Info().Msg("validating inventory")
	valid, err := o.inventory.ValidateCartInventory(logger.WithContext(c))
	if err != nil {
		return fail(fmt.Errorf("failed validating inventory with error=%w", err), messageStockUnavailable)
	}
	if !valid {
		closeWindow()
		logger.Info().Msg("inventory changed, checkout stopped")
		return Result{
			Status:  StatusInventoryChanged,
			Message: messageInventoryChanged,
			Notices: o.store.Notices(),
		}, nil
	}
	logger.Info().Msg("validated inventory")

	userId, signedIn := internal.UserIdFromContext(c)
	var buyer *commerce.BuyerIdentity
	if signedIn && o.profiles != nil {
		logger = logger.With().
			Str(constants.KEY_USER_ID, userId.String()).
			Str(constants.KEY_PROCESS, "checking phone number").
			Logger()
		logger.Info().Msg("checking phone number")
		phone, err := o.profiles.PhoneNumber(logger.WithContext(c), userId)
		if err != nil {
			return fail(fmt.Errorf("failed checking phone number with error=%w", err), messageFailed)
		}
		if phone == "" {
			closeWindow()
			logger.Info().Msg("phone number required")
			return Result{Status: StatusPhoneRequired, Message: messagePhoneRequired}, nil
		}
		buyer = &commerce.BuyerIdentity{Phone: phone}
		logger.Info().Msg("checked phone number")
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "creating checkout").Logger()
	logger.Info().Msg("creating checkout")
	created, err := o.store.CreateCheckout(logger.WithContext(c), buyer)
	if err != nil {
		message := messageFailed
		userErrors := cart.UserErrors{}
		switch {
		case errors.As(err, &userErrors):
			message = userErrors.Error()
		case errors.Is(err, cart.ErrEmptyCart):
			message = messageEmptyCart
		}
		return fail(fmt.Errorf("failed creating checkout with error=%w", err), message)
	}
	checkoutUrl := created.URL
	logger = logger.With().Str(constants.KEY_CHECKOUT_URL, checkoutUrl).Logger()
	logger.Info().Msg("created checkout")

	if signedIn && o.orders != nil {
		logger = logger.With().Str(constants.KEY_PROCESS, "recording order").Logger()
		logger.Info().Msg("recording order")
		order, err := o.orders.CreateOrder(
			logger.WithContext(c),
			newOrderRequest(userId, created),
		)
		if err != nil {
			validationErrors := validator.ValidationErrors{}
			if errors.As(err, &validationErrors) {
				logger.Error().Err(err).Any(constants.KEY_CART_ITEMS, created.Items).Msg("order payload built from a corrupted cart")
			}
			return fail(fmt.Errorf("failed recording order with error=%w", err), messageFailed)
		}
		logger.Info().Str(constants.KEY_ORDER_ID, order.ID.String()).Msg("recorded order")
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "handing off").Logger()
	if window != nil {
		if err := window.Redirect(c, checkoutUrl); err != nil {
			logger.Warn().Err(err).Msg("failed redirecting placeholder window")
		}
	}
	o.store.ClearCart(logger.WithContext(c))
	if signedIn && o.saved != nil {
		if err := o.saved.DeleteCartItems(logger.WithContext(c), userId); err != nil {
			logger.Warn().Err(err).Msg("failed deleting saved cart")
		}
	}
	logger.Info().Msg("handed off")

	return Result{Status: StatusRedirected, CheckoutURL: checkoutUrl}, nil
}

// newOrderRequest records the lines the checkout was opened for, not the live cart.
func newOrderRequest(userId uuid.UUID, created cart.Checkout) request.CreateOrder {
	orderItems := make([]request.OrderItem, 0, len(created.Items))
	for _, item := range created.Items {
		orderItems = append(orderItems, request.OrderItem{
			ProductId:    item.Product.ID,
			VariantId:    item.VariantID,
			Title:        item.Product.Title,
			VariantTitle: item.VariantTitle,
			Price:        item.UnitPrice.Amount,
			CurrencyCode: item.UnitPrice.CurrencyCode,
			Quantity:     item.Quantity,
		})
	}
	return request.CreateOrder{
		UserId:       userId,
		CheckoutUrl:  created.URL,
		TotalAmount:  created.Subtotal.Amount,
		CurrencyCode: created.Subtotal.CurrencyCode,
		OrderItems:   orderItems,
	}
}
