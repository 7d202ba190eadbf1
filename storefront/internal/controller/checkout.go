package controller

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/checkout"
	"github.com/Alturino/storefront/internal"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/order"
	"github.com/Alturino/storefront/profile"
	"github.com/Alturino/storefront/profile/pkg/request"
	"github.com/Alturino/storefront/storefront/internal/session"
)

type CheckoutController struct {
	sessions *session.Registry
	profiles *profile.ProfileService
	orders   *order.OrderService
}

// AttachCheckoutController registers checkout, phone number and order history routes.
// profiles and orders may be nil when no database is configured.
func AttachCheckoutController(
	mux *mux.Router,
	sessions *session.Registry,
	profiles *profile.ProfileService,
	orders *order.OrderService,
) {
	controller := CheckoutController{sessions: sessions, profiles: profiles, orders: orders}

	mux.HandleFunc("/checkout", controller.Checkout).Methods(http.MethodPost)
	mux.HandleFunc("/profile/phone", controller.SavePhoneNumber).Methods(http.MethodPut)
	mux.HandleFunc("/orders", controller.FindOrders).Methods(http.MethodGet)
}

func checkoutStatusCode(result checkout.Result, err error) int {
	switch result.Status {
	case checkout.StatusRedirected:
		return http.StatusOK
	case checkout.StatusInventoryChanged:
		return http.StatusConflict
	case checkout.StatusPhoneRequired:
		if err != nil {
			return statusFor(err)
		}
		return http.StatusPreconditionRequired
	default:
		if err == nil {
			return http.StatusInternalServerError
		}
		return statusFor(err)
	}
}

func writeCheckoutResult(w http.ResponseWriter, r *http.Request, result checkout.Result, err error) {
	status := "success"
	if result.Status != checkout.StatusRedirected {
		status = "failed"
	}
	message := result.Message
	if message == "" {
		message = string(result.Status)
	}
	inHttp.WriteJsonResponse(r.Context(), w, map[string]string{}, map[string]interface{}{
		"status":     status,
		"statusCode": checkoutStatusCode(result, err),
		"message":    message,
		"data": map[string]interface{}{
			"checkout": result,
		},
	})
}

func (t CheckoutController) Checkout(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController Checkout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CheckoutController Checkout").
		Str(constants.KEY_PROCESS, "resolving session").
		Logger()

	s, err := t.sessions.Resolve(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed resolving session with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "checking out").Logger()
	logger.Info().Msg("checking out")
	result, err := s.Checkout.Checkout(logger.WithContext(c), &checkout.RecordingOpener{})
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	}
	logger.Info().Str("status", string(result.Status)).Msg("checked out")

	writeCheckoutResult(w, r.WithContext(c), result, err)
}

func (t CheckoutController) SavePhoneNumber(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController SavePhoneNumber")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CheckoutController SavePhoneNumber").
		Logger()

	userId, ok := internal.UserIdFromContext(c)
	if !ok || t.profiles == nil {
		err := fmt.Errorf("failed saving phone number with error=%w", inErrors.ErrUnauthenticated)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusUnauthorized, err.Error())
		return
	}
	logger = logger.With().Str(constants.KEY_USER_ID, userId.String()).Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.SavePhoneNumber{}
	if err := decodeRequest(r, &reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Info().Bool("retryCheckout", reqBody.RetryCheckout).Msg("decoded request body")

	if reqBody.RetryCheckout {
		logger = logger.With().Str(constants.KEY_PROCESS, "resolving session").Logger()
		s, err := t.sessions.Resolve(logger.WithContext(c))
		if err != nil {
			err = fmt.Errorf("failed resolving session with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			inHttp.WriteFailed(c, w, statusFor(err), err.Error())
			return
		}

		logger = logger.With().Str(constants.KEY_PROCESS, "saving phone number and retrying").Logger()
		logger.Info().Msg("saving phone number and retrying")
		result, err := s.Checkout.SubmitPhoneAndRetry(
			logger.WithContext(c),
			&checkout.RecordingOpener{},
			reqBody.PhoneNumber,
		)
		if err != nil {
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
		}
		logger.Info().Str("status", string(result.Status)).Msg("saved phone number and retried")
		writeCheckoutResult(w, r.WithContext(c), result, err)
		return
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "saving phone number").Logger()
	logger.Info().Msg("saving phone number")
	if err := t.profiles.SavePhoneNumber(logger.WithContext(c), userId, reqBody.PhoneNumber); err != nil {
		err = fmt.Errorf("failed saving phone number with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	logger.Info().Msg("saved phone number")

	inHttp.WriteSuccess(c, w, "saved phone number", map[string]interface{}{
		"phone_number": reqBody.PhoneNumber,
	})
}

func (t CheckoutController) FindOrders(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController FindOrders")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CheckoutController FindOrders").
		Logger()

	userId, ok := internal.UserIdFromContext(c)
	if !ok || t.orders == nil {
		err := fmt.Errorf("failed finding orders with error=%w", inErrors.ErrUnauthenticated)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusUnauthorized, err.Error())
		return
	}

	logger = logger.With().
		Str(constants.KEY_USER_ID, userId.String()).
		Str(constants.KEY_PROCESS, "finding orders").
		Logger()
	logger.Info().Msg("finding orders")
	orders, err := t.orders.FindOrdersByUserId(logger.WithContext(c), userId)
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	logger.Info().Msgf("found %d orders", len(orders))

	inHttp.WriteSuccess(c, w, "successfully found orders", map[string]interface{}{
		"orders": orders,
	})
}
