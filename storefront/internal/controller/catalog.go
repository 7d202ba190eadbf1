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
)

type CatalogController struct {
	catalog *catalog.Cache
}

func AttachCatalogController(mux *mux.Router, catalog *catalog.Cache) {
	controller := CatalogController{catalog: catalog}

	router := mux.PathPrefix("/products").Subrouter()
	router.HandleFunc("", controller.FindProducts).Methods(http.MethodGet)
	router.HandleFunc("/{handle}", controller.FindProductByHandle).Methods(http.MethodGet)
}

func (t CatalogController) FindProducts(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CatalogController FindProducts")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CatalogController FindProducts").
		Str(constants.KEY_PROCESS, "loading catalog").
		Logger()

	logger.Info().Msg("loading catalog")
	if err := t.catalog.Load(logger.WithContext(c)); err != nil {
		err = fmt.Errorf("failed loading catalog with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	products := t.catalog.Products()
	logger.Info().Msgf("loaded %d products", len(products))

	inHttp.WriteSuccess(c, w, "successfully found products", map[string]interface{}{
		"products": products,
	})
}

func (t CatalogController) FindProductByHandle(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CatalogController FindProductByHandle")
	defer span.End()

	handle := mux.Vars(r)["handle"]
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CatalogController FindProductByHandle").
		Str(constants.KEY_PRODUCT_HANDLE, handle).
		Str(constants.KEY_PROCESS, "finding product").
		Logger()

	logger.Info().Msg("finding product")
	if err := t.catalog.Load(logger.WithContext(c)); err != nil {
		err = fmt.Errorf("failed loading catalog with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, statusFor(err), err.Error())
		return
	}
	product, ok := t.catalog.ProductByHandle(handle)
	if !ok {
		err := fmt.Errorf("failed finding handle=%s with error=%w", handle, inErrors.ErrProductNotFound)
		otel.RecordError(err, span)
		logger.Info().Err(err).Msg(err.Error())
		inHttp.WriteFailed(c, w, http.StatusNotFound, inErrors.ErrProductNotFound.Error())
		return
	}
	logger.Info().Msg("found product")

	inHttp.WriteSuccess(c, w, fmt.Sprintf("found product handle=%s", handle), map[string]interface{}{
		"product": product,
	})
}
