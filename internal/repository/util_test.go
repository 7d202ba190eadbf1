package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"
)

type (
	setupFunc    func(context.Context) (*pgxpool.Pool, *postgres.PostgresContainer, *Queries)
	teardownFunc func(*pgxpool.Pool, *postgres.PostgresContainer)
)

func migrationPath(name string) string {
	return filepath.Join("..", "..", "migrations", name)
}

func setup(t *testing.T) setupFunc {
	return func(c context.Context) (*pgxpool.Pool, *postgres.PostgresContainer, *Queries) {
		testcontainers.SkipIfProviderIsNotHealthy(t)

		pgContainer, err := postgres.Run(
			c,
			"postgres:16.6-alpine3.21",
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			postgres.WithDatabase("postgres"),
			postgres.BasicWaitStrategies(),
			postgres.WithInitScripts(
				migrationPath("20250301090000_create_table_profiles.up.sql"),
				migrationPath("20250301090100_create_table_cart_items.up.sql"),
				migrationPath("20250301090200_create_table_orders.up.sql"),
			),
		)
		if err != nil {
			t.Fatalf("failed running postgres container with error: %s", err)
		}

		pgConnStr, err := pgContainer.ConnectionString(c, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed getting postgres connection string with error: %s", err)
		}

		pgConfig, err := pgxpool.ParseConfig(pgConnStr)
		if err != nil {
			t.Fatalf("failed parsing postgres config with error: %s", err)
		}
		pgConfig.AfterConnect = func(c context.Context, conn *pgx.Conn) error {
			pgxuuid.Register(conn.TypeMap())
			return nil
		}

		pool, err := pgxpool.NewWithConfig(c, pgConfig)
		if err != nil {
			t.Fatalf("failed connecting to postgres with error: %s", err)
		}

		return pool, pgContainer, New(pool)
	}
}

func teardown(t *testing.T) teardownFunc {
	return func(pool *pgxpool.Pool, pgContainer *postgres.PostgresContainer) {
		pool.Close()
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Errorf("failed terminating postgres container with error: %s", err)
		}
	}
}
