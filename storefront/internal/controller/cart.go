package controller

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/cart/pkg/request"
	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/storefront/internal/session"
)

type CartController struct {
	sessions *session.Registry
}

func AttachCartController(mux *mux.Router, sessions *session.Registry) {
	controller := CartController{sessions: sessions}

	router := mux.PathPrefix("/cart").Subrouter()
	router.HandleFunc("", controller.FindCart).Methods(http.MethodGet)
	router.HandleFunc("/items", controller.AddCartItem).Methods(http.MethodPost)
	router.HandleFunc("/items/{variantId}", controller.UpdateCartItem).Methods(http.MethodPut)
	router.HandleFunc("/items/{variantId}", controller.RemoveCartItem).Methods(http.MethodDelete)
	router.HandleFunc("/validate", controller.ValidateCart).Methods(http.MethodPost)
	router.HandleFunc("/sync", controller.SyncCart).Methods(http.MethodPost)
}

func (t CartController) FindCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController FindCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartController FindCart").
		Str(constants.KEY_PROCESS, "resolving session").
		Logger()

	logger.Info().Msg("resolving session")
	s, err := t.sessions.Resolve(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed resolving session with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	logger.Info().Msg("resolved session")

	inHttp.WriteSuccess(c, w, "successfully found cart", map[string]interface{}{
		"cart": response.FromStore(s.Cart),
	})
}

func (t CartController) AddCartItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController AddCartItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartController AddCartItem").
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.AddCartItem{}
	if err := decodeRequest(r, &reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusBadRequest, err.Error())
		return
	}
	logger = logger.With().
		Str(constants.KEY_PRODUCT_ID, reqBody.ProductId).
		Str(constants.KEY_VARIANT_ID, reqBody.VariantId).
		Int(constants.KEY_QUANTITY, reqBody.Quantity).
		Logger()
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(constants.KEY_PROCESS, "resolving session").Logger()
	s, err := t.sessions.Resolve(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed resolving session with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "adding cart item").Logger()
	logger.Info().Msg("adding cart item")
	result, err := s.Inventory.ValidateAndAddVariant(
		logger.WithContext(c),
		reqBody.ProductId,
		reqBody.VariantId,
		reqBody.Quantity,
	)
	if err != nil {
		err = fmt.Errorf("failed adding cart item with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	if !result.Success {
		logger.Info().Str("reason", result.Message).Msg("cart item not added")
		inHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusConflict,
			"message":    result.Message,
			"data": map[string]interface{}{
				"result": result,
				"cart":   response.FromStore(s.Cart),
			},
		})
		return
	}
	logger.Info().Msg("added cart item")

	inHttp.WriteSuccess(c, w, "successfully added cart item", map[string]interface{}{
		"result": result,
		"cart":   response.FromStore(s.Cart),
	})
}

func (t CartController) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController UpdateCartItem")
	defer span.End()

	variantId := mux.Vars(r)["variantId"]
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartController UpdateCartItem").
		Str(constants.KEY_VARIANT_ID, variantId).
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.UpdateCartItem{}
	if err := decodeRequest(r, &reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusBadRequest, err.Error())
		return
	}
	quantity := *reqBody.Quantity
	logger = logger.With().Int(constants.KEY_QUANTITY, quantity).Logger()
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(constants.KEY_PROCESS, "resolving session").Logger()
	s, err := t.sessions.Resolve(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed resolving session with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "updating cart item").Logger()
	logger.Info().Msg("updating cart item")
	result, err := s.Inventory.ValidateAndUpdateQuantity(logger.WithContext(c), variantId, quantity)
	if err != nil {
		err = fmt.Errorf("failed updating variantId=%s with error=%w", variantId, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	logger.Info().Msg("updated cart item")

	inHttp.WriteSuccess(c, w, fmt.Sprintf("updated variantId=%s", variantId), map[string]interface{}{
		"result": result,
		"cart":   response.FromStore(s.Cart),
	})
}

func (t CartController) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController RemoveCartItem")
	defer span.End()

	variantId := mux.Vars(r)["variantId"]
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartController RemoveCartItem").
		Str(constants.KEY_VARIANT_ID, variantId).
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

	logger = logger.With().Str(constants.KEY_PROCESS, "removing cart item").Logger()
	logger.Info().Msg("removing cart item")
	s.Cart.RemoveItem(logger.WithContext(c), variantId)
	logger.Info().Msg("removed cart item")

	inHttp.WriteSuccess(c, w, fmt.Sprintf("removed variantId=%s", variantId), map[string]interface{}{
		"cart": response.FromStore(s.Cart),
	})
}

func (t CartController) ValidateCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController ValidateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartController ValidateCart").
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

	logger = logger.With().Str(constants.KEY_PROCESS, "validating cart inventory").Logger()
	logger.Info().Msg("validating cart inventory")
	valid, err := s.Inventory.ValidateCartInventory(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed validating cart inventory with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	logger.Info().Bool("valid", valid).Msg("validated cart inventory")

	inHttp.WriteSuccess(c, w, "validated cart inventory", map[string]interface{}{
		"valid": valid,
		"cart":  response.FromStore(s.Cart),
	})
}

func (t CartController) SyncCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CartController SyncCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartController SyncCart").
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "getting userId").Logger()
	userId, ok := internal.UserIdFromContext(c)
	if !ok {
		err := fmt.Errorf("failed syncing cart with error=%w", inErrors.ErrUnauthenticated)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusUnauthorized, err.Error())
		return
	}
	logger = logger.With().Str(constants.KEY_USER_ID, userId.String()).Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "resolving session").Logger()
	s, err := t.sessions.Resolve(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed resolving session with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "syncing cart").Logger()
	logger.Info().Msg("syncing cart")
	outcome, err := t.sessions.SignIn(logger.WithContext(c), s, userId)
	if err != nil {
		err = fmt.Errorf("failed syncing cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	logger.Info().Str("outcome", string(outcome)).Msg("synced cart")

	inHttp.WriteSuccess(c, w, "synced cart", map[string]interface{}{
		"outcome": outcome,
		"cart":    response.FromStore(s.Cart),
	})
}
