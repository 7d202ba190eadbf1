package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/Alturino/storefront/cart"
	"github.com/Alturino/storefront/catalog"
	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/infra"
	"github.com/Alturino/storefront/internal/middleware"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/storage"
	"github.com/Alturino/storefront/order"
	"github.com/Alturino/storefront/profile"
	"github.com/Alturino/storefront/storefront/internal/controller"
	"github.com/Alturino/storefront/storefront/internal/session"
)

const evictionInterval = time.Minute

func RunStorefrontService(c context.Context) {
	c, span := otel.Tracer.Start(c, "RunStorefrontService")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_APP_NAME, constants.APP_STOREFRONT).
		Str(constants.KEY_TAG, "main RunStorefrontService").
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "init config").Logger()
	logger.Info().Msg("initializing config")
	c = logger.WithContext(c)
	cfg := config.Get(c, constants.APP_STOREFRONT)
	logger.Info().Msg("initialized config")

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	otelShutdowns, err := otel.InitOtelSdk(c, constants.APP_STOREFRONT, cfg.Otel)
	if err != nil {
		err = fmt.Errorf("failed initializing otel sdk with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	defer func() {
		logger.Info().Msg("shutting down otel")
		c := logger.WithContext(context.WithoutCancel(c))
		if err := otel.ShutdownOtel(c, otelShutdowns); err != nil {
			err = fmt.Errorf("failed shutting down otel with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("shutdown otel")
	}()
	logger.Info().Msg("initialized otel sdk")

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing database").Logger()
	logger.Info().Msg("initializing database")
	c = logger.WithContext(c)
	db := infra.NewDatabaseClient(c, cfg.Database)
	defer func() {
		logger = logger.With().Str(constants.KEY_PROCESS, "shutting down database").Logger()
		logger.Info().Msg("shutting down database")
		db.Close()
		logger.Info().Msg("shutdown database")
	}()
	logger.Info().Msg("initialized database")

	logger = logger.With().Str(constants.KEY_PROCESS, "migrating database").Logger()
	logger.Info().Msg("migrating database")
	if err := infra.Migrate(logger.WithContext(c), db, cfg.Database); err != nil {
		err = fmt.Errorf("failed migrating database with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("migrated database")

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing cache").Logger()
	logger.Info().Msg("initializing cache")
	c = logger.WithContext(c)
	cache := infra.NewCacheClient(c, cfg.Cache)
	defer func() {
		logger = logger.With().Str(constants.KEY_PROCESS, "shutting down cache").Logger()
		logger.Info().Msg("shutting down cache")
		if err := cache.Close(); err != nil {
			err = fmt.Errorf("failed shutting down cache with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("shutdown cache")
	}()
	logger.Info().Msg("initialized cache")

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing services").Logger()
	logger.Info().Msg("initializing services")
	queries := repository.New(db)
	commerceClient := commerce.NewClient(cfg.Commerce)
	catalogCache := catalog.NewCache(commerceClient, cache, cfg.Commerce)
	profileService := profile.NewProfileService(queries)
	orderService := order.NewOrderService(queries)
	sessions := session.NewRegistry(
		storage.NewRedisStorage(cache, cfg.Cart.StorageTTL),
		commerceClient,
		cart.NewPostgresRemote(db, queries),
		profileService,
		orderService,
		cfg.Cart,
	)
	defer func() {
		logger = logger.With().Str(constants.KEY_PROCESS, "flushing sessions").Logger()
		logger.Info().Msg("flushing sessions")
		c := logger.WithContext(context.WithoutCancel(c))
		if err := sessions.Shutdown(c); err != nil {
			err = fmt.Errorf("failed flushing sessions with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("flushed sessions")
	}()
	logger.Info().Msg("initialized services")

	logger = logger.With().Str(constants.KEY_PROCESS, "loading catalog").Logger()
	logger.Info().Msg("loading catalog")
	if err := catalogCache.Load(logger.WithContext(c)); err != nil {
		logger.Warn().Err(err).Msg("catalog will be loaded on first request")
	} else {
		logger.Info().Msg("loaded catalog")
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing router").Logger()
	logger.Info().Msg("initializing router")
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	api := router.NewRoute().Subrouter()
	api.Use(
		otelmux.Middleware(constants.APP_STOREFRONT),
		middleware.Logging,
		middleware.RecoverPanic,
		middleware.Auth(cfg.Auth),
		middleware.Session,
	)
	controller.AttachCatalogController(api, catalogCache)
	controller.AttachCartController(api, sessions)
	controller.AttachWishlistController(api, sessions, catalogCache)
	controller.AttachCheckoutController(api, sessions, profileService, orderService)
	logger.Info().Msg("initialized router")

	go func() {
		logger := logger.With().Str(constants.KEY_PROCESS, "evicting idle sessions").Logger()
		ticker := time.NewTicker(evictionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				sessions.EvictIdle(logger.WithContext(c), cfg.Cart.SessionIdleTTL)
			}
		}
	}()

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing server").Logger()
	logger.Info().Msg("initializing server")
	httpServer := http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Application.Host, cfg.Application.Port),
		BaseContext:  func(net.Listener) context.Context { return c },
		Handler:      router,
		ReadTimeout:  45 * time.Second,
		WriteTimeout: 45 * time.Second,
	}
	logger.Info().Msg("initialized server")

	go func() {
		logger := logger.With().Str(constants.KEY_PROCESS, "start server").Logger()
		logger.Info().Msgf("start listening request at %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			err = fmt.Errorf("error=%w occured while server is running", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("shutdown server")
	}()

	<-c.Done()
	logger = logger.With().Str(constants.KEY_PROCESS, "shutting down http server").Logger()
	logger.Info().Msg("received interuption signal shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(c), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		err = fmt.Errorf("failed shutting down http server with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("shutdown http server")
}

// RunMigration applies pending migrations and exits.
func RunMigration(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_APP_NAME, constants.APP_STOREFRONT_MIGRATE).
		Str(constants.KEY_TAG, "main RunMigration").
		Logger()

	c = logger.WithContext(c)
	cfg := config.Get(c, constants.APP_STOREFRONT)

	logger = logger.With().Str(constants.KEY_PROCESS, "migrating database").Logger()
	logger.Info().Msg("migrating database")
	db := infra.NewDatabaseClient(c, cfg.Database)
	defer db.Close()
	if err := infra.Migrate(logger.WithContext(c), db, cfg.Database); err != nil {
		err = fmt.Errorf("failed migrating database with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("migrated database")

	return nil
}
