package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/repository"
)

// PostgresRemote keeps saved carts in the cart_items table, one row per line.
type PostgresRemote struct {
	pool    *pgxpool.Pool
	queries *repository.Queries
}

func NewPostgresRemote(pool *pgxpool.Pool, queries *repository.Queries) *PostgresRemote {
	return &PostgresRemote{pool: pool, queries: queries}
}

func (r *PostgresRemote) ReplaceCartItems(
	c context.Context,
	userID uuid.UUID,
	items []LineItem,
) error {
	c, span := otel.Tracer.Start(c, "PostgresRemote ReplaceCartItems")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "PostgresRemote ReplaceCartItems").
		Str(constants.KEY_USER_ID, userID.String()).
		Int(constants.KEY_CART_ITEMS, len(items)).
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "mapping cart items").Logger()
	args := make([]repository.InsertCartItemsParams, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			err = fmt.Errorf("failed mapping variantId=%s with error=%w", item.VariantID, err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return err
		}
		args = append(args, repository.InsertCartItemsParams{
			UserID:      userID,
			VariantID:   item.VariantID,
			ProductID:   item.Product.ID,
			Quantity:    int32(item.Quantity),
			ProductData: data,
		})
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing transaction").Logger()
	logger.Trace().Msg("initializing transaction")
	tx, err := r.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		err = fmt.Errorf("failed initializing transaction with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("initialized transaction")
	defer func() {
		if rbErr := tx.Rollback(c); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error().Err(rbErr).Msg("failed rolling back transaction")
		}
	}()

	logger = logger.With().Str(constants.KEY_PROCESS, "deleting saved cart items").Logger()
	logger.Trace().Msg("deleting saved cart items")
	deleted, err := r.queries.WithTx(tx).DeleteCartItemsByUserId(c, userID)
	if err != nil {
		err = fmt.Errorf("failed deleting saved cart items with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Int64("deleted", deleted).Msg("deleted saved cart items")

	if len(args) > 0 {
		logger = logger.With().Str(constants.KEY_PROCESS, "inserting saved cart items").Logger()
		logger.Trace().Msg("inserting saved cart items")
		inserted, err := r.queries.WithTx(tx).InsertCartItems(c, args)
		if err != nil {
			err = fmt.Errorf("failed inserting saved cart items with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return err
		}
		logger.Trace().Int64("inserted", inserted).Msg("inserted saved cart items")
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "committing transaction").Logger()
	if err := tx.Commit(c); err != nil {
		err = fmt.Errorf("failed committing transaction with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("replaced saved cart")

	return nil
}

func (r *PostgresRemote) FindCartItems(c context.Context, userID uuid.UUID) ([]LineItem, error) {
	c, span := otel.Tracer.Start(c, "PostgresRemote FindCartItems")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "PostgresRemote FindCartItems").
		Str(constants.KEY_USER_ID, userID.String()).
		Str(constants.KEY_PROCESS, "finding saved cart items").
		Logger()

	logger.Trace().Msg("finding saved cart items")
	rows, err := r.queries.FindCartItemsByUserId(c, userID)
	if err != nil {
		err = fmt.Errorf("failed finding saved cart items with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	items := make([]LineItem, 0, len(rows))
	for _, row := range rows {
		item := LineItem{}
		if err := json.Unmarshal(row.ProductData, &item); err != nil {
			logger.Warn().Err(err).Str(constants.KEY_VARIANT_ID, row.VariantID).Msg("skipping unreadable saved line")
			continue
		}
		item.VariantID = row.VariantID
		item.Product.ID = row.ProductID
		item.Quantity = int(row.Quantity)
		items = append(items, item)
	}
	logger.Trace().Int(constants.KEY_CART_ITEMS, len(items)).Msg("found saved cart items")

	return items, nil
}

func (r *PostgresRemote) DeleteCartItems(c context.Context, userID uuid.UUID) error {
	c, span := otel.Tracer.Start(c, "PostgresRemote DeleteCartItems")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "PostgresRemote DeleteCartItems").
		Str(constants.KEY_USER_ID, userID.String()).
		Str(constants.KEY_PROCESS, "deleting saved cart items").
		Logger()

	logger.Trace().Msg("deleting saved cart items")
	deleted, err := r.queries.DeleteCartItemsByUserId(c, userID)
	if err != nil {
		err = fmt.Errorf("failed deleting saved cart items with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Int64("deleted", deleted).Msg("deleted saved cart items")

	return nil
}
