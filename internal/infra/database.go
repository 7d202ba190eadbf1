package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
)

func PostgresUrl(dbConfig config.Database) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable&timezone=%s",
		dbConfig.Username,
		dbConfig.Password,
		dbConfig.Host,
		int(dbConfig.Port),
		dbConfig.Name,
		dbConfig.TimeZone,
	)
}

// RegisterTypes teaches a connection to scan postgres uuid columns into uuid.UUID.
func RegisterTypes(c context.Context, conn *pgx.Conn) error {
	pgxuuid.Register(conn.TypeMap())
	return nil
}

func NewDatabaseClient(c context.Context, dbConfig config.Database) *pgxpool.Pool {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "infra NewDatabaseClient").
		Str(constants.KEY_PROCESS, "connecting to database").
		Logger()

	logger.Info().Msg("connecting to database")

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing pgx config").Logger()
	logger.Info().Msg("initializing pgx config")
	pgxConfig, err := pgxpool.ParseConfig(PostgresUrl(dbConfig))
	if err != nil {
		err = fmt.Errorf("failed creating pgx config with error=%w", err)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	pgxConfig.MaxConns = int32(dbConfig.MaxConnections)
	pgxConfig.MinConns = int32(dbConfig.MinConnections)
	pgxConfig.MaxConnLifetime = 15 * time.Minute
	pgxConfig.MaxConnIdleTime = 5 * time.Minute
	pgxConfig.AfterConnect = RegisterTypes
	logger.Info().Msg("initialized pgx config")

	logger = logger.With().Str(constants.KEY_PROCESS, "attaching otel tracer to pgx").Logger()
	logger.Info().Msg("attaching otel tracer to pgx")
	pgxConfig.ConnConfig.Tracer = otelpgx.NewTracer(
		otelpgx.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	logger.Info().Msg("attached otel tracer to pgx")

	logger = logger.With().Str(constants.KEY_PROCESS, "creating connection pool").Logger()
	logger.Info().Msg("creating connection pool")
	pool, err := pgxpool.NewWithConfig(c, pgxConfig)
	if err != nil {
		err = fmt.Errorf("failed creating connection pool with error=%w", err)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("created connection pool")

	logger = logger.With().Str(constants.KEY_PROCESS, "ping db").Logger()
	logger.Info().Msg("ping db")
	err = pool.Ping(c)
	if err != nil {
		err = fmt.Errorf("failed ping db with error=%w", err)
		logger.Fatal().Err(err).Msg(err.Error())
	}
	logger.Info().Msg("successed ping db")

	return pool
}

// Migrate applies every pending migration found at dbConfig.MigrationPath.
func Migrate(c context.Context, pool *pgxpool.Pool, dbConfig config.Database) error {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "infra Migrate").
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing db driver").Logger()
	logger.Info().Msg("initializing db driver")
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		err = fmt.Errorf("failed creating postgres driver to do migration with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("initialized db driver")

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing migration").Logger()
	logger.Info().Msg("initializing migration")
	migration, err := migrate.NewWithDatabaseInstance(dbConfig.MigrationPath, dbConfig.Name, driver)
	if err != nil {
		err = fmt.Errorf("failed initializing migration with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("initialized migration")

	logger = logger.With().Str(constants.KEY_PROCESS, "migration up").Logger()
	logger.Info().Msg("migration up")
	err = migration.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		err = fmt.Errorf("failed migration up with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("successed migration up")

	return nil
}
