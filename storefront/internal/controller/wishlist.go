package controller

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/catalog"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/storefront/internal/session"
	"github.com/Alturino/storefront/wishlist"
	"github.com/Alturino/storefront/wishlist/pkg/request"
)

type WishlistController struct {
	sessions *session.Registry
	catalog  *catalog.Cache
}

func AttachWishlistController(mux *mux.Router, sessions *session.Registry, catalog *catalog.Cache) {
	controller := WishlistController{sessions: sessions, catalog: catalog}

	router := mux.PathPrefix("/wishlist").Subrouter()
	router.HandleFunc("", controller.FindWishlist).Methods(http.MethodGet)
	router.HandleFunc("", controller.AddWishlistItem).Methods(http.MethodPost)
	router.HandleFunc("/{productId}", controller.RemoveWishlistItem).Methods(http.MethodDelete)
}

func (t WishlistController) FindWishlist(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "WishlistController FindWishlist")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "WishlistController FindWishlist").
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

	inHttp.WriteSuccess(c, w, "successfully found wishlist", map[string]interface{}{
		"items": s.Wishlist.Items(),
	})
}

func (t WishlistController) AddWishlistItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "WishlistController AddWishlistItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "WishlistController AddWishlistItem").
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	reqBody := request.AddWishlistItem{}
	if err := decodeRequest(r, &reqBody); err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusBadRequest, err.Error())
		return
	}
	logger = logger.With().Str(constants.KEY_PRODUCT_ID, reqBody.ProductId).Logger()
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(constants.KEY_PROCESS, "finding product").Logger()
	logger.Info().Msg("finding product")
	if err := t.catalog.Load(logger.WithContext(c)); err != nil {
		err = fmt.Errorf("failed loading catalog with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	product, ok := t.catalog.ProductByID(reqBody.ProductId)
	if !ok {
		err := fmt.Errorf("failed finding productId=%s with error=%w", reqBody.ProductId, inErrors.ErrProductNotFound)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusNotFound, err.Error())
		return
	}
	logger.Info().Msg("found product")

	logger = logger.With().Str(constants.KEY_PROCESS, "resolving session").Logger()
	s, err := t.sessions.Resolve(logger.WithContext(c))
	if err != nil {
		err = fmt.Errorf("failed resolving session with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "adding wishlist item").Logger()
	added := s.Wishlist.Add(logger.WithContext(c), wishlist.NewItem(product))
	logger.Info().Bool("added", added).Msg("added wishlist item")

	inHttp.WriteSuccess(c, w, "successfully added wishlist item", map[string]interface{}{
		"added": added,
		"items": s.Wishlist.Items(),
	})
}

func (t WishlistController) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "WishlistController RemoveWishlistItem")
	defer span.End()

	productId := mux.Vars(r)["productId"]
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "WishlistController RemoveWishlistItem").
		Str(constants.KEY_PRODUCT_ID, productId).
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

	logger = logger.With().Str(constants.KEY_PROCESS, "removing wishlist item").Logger()
	removed := s.Wishlist.Remove(logger.WithContext(c), productId)
	logger.Info().Bool("removed", removed).Msg("removed wishlist item")

	inHttp.WriteSuccess(c, w, fmt.Sprintf("removed productId=%s", productId), map[string]interface{}{
		"removed": removed,
		"items":   s.Wishlist.Items(),
	})
}
