// Package inventory reconciles cart quantities against live stock.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/Alturino/storefront/cart"
	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/otel"
)

const fetchConcurrency = 4

var reconciledLines, _ = otel.Meter.Int64Counter(
	"storefront.inventory.reconciled_lines",
	metric.WithDescription("Cart lines removed or clamped against live stock."),
)

type ProductFetcher interface {
	GetProductByID(c context.Context, id string) (commerce.Product, error)
}

type Validator struct {
	store   *cart.Store
	fetcher ProductFetcher
}

func NewValidator(store *cart.Store, fetcher ProductFetcher) *Validator {
	return &Validator{store: store, fetcher: fetcher}
}

// ValidateCartInventory removes unavailable lines and clamps lines above live stock.
// It returns true only when every line was already satisfiable. On a fetch failure the
// cart is left untouched.
func (v *Validator) ValidateCartInventory(c context.Context) (bool, error) {
	c, span := otel.Tracer.Start(c, "InventoryValidator ValidateCartInventory")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "InventoryValidator ValidateCartInventory").
		Logger()

	items := v.store.Items()
	if len(items) == 0 {
		return true, nil
	}

	productIDs := []string{}
	seen := map[string]struct{}{}
	for _, item := range items {
		if _, ok := seen[item.Product.ID]; ok {
			continue
		}
		seen[item.Product.ID] = struct{}{}
		productIDs = append(productIDs, item.Product.ID)
	}

	logger = logger.With().
		Str(constants.KEY_PROCESS, "fetching live stock").
		Strs("productIds", productIDs).
		Logger()
	logger.Info().Msg("fetching live stock")
	snapshot, err := v.fetch(logger.WithContext(c), productIDs)
	if err != nil {
		err = fmt.Errorf("failed fetching live stock with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return false, err
	}
	logger.Info().Int("variants", len(snapshot)).Msg("fetched live stock")

	logger = logger.With().Str(constants.KEY_PROCESS, "reconciling cart").Logger()
	valid := true
	for _, item := range items {
		lg := logger.With().
			Str(constants.KEY_VARIANT_ID, item.VariantID).
			Int(constants.KEY_QUANTITY, item.Quantity).
			Logger()

		live, ok := snapshot[item.VariantID]
		if !ok || !live.Purchasable() {
			valid = false
			if v.store.CompareAndRemove(c, item.VariantID, item.Quantity) {
				result := noLongerAvailable(item.Product.Title)
				v.store.AddNotice(item.VariantID, result.Type, result.Message)
				reconciledLines.Add(c, 1, metric.WithAttributes(attribute.String("action", "removed")))
				lg.Info().Msg("removed unavailable line")
			}
			continue
		}
		if available, over := exceeded(live, item.Quantity); over {
			valid = false
			if v.store.CompareAndSetQuantity(c, item.VariantID, item.Quantity, available) {
				result := onlyLeft(available)
				v.store.AddNotice(item.VariantID, result.Type, result.Message)
				reconciledLines.Add(c, 1, metric.WithAttributes(attribute.String("action", "clamped")))
				lg.Info().Int("available", available).Msg("clamped line to live stock")
			}
		}
	}
	logger.Info().Bool("valid", valid).Msg("reconciled cart")

	return valid, nil
}

func (v *Validator) fetch(c context.Context, productIDs []string) (Snapshot, error) {
	mu := sync.Mutex{}
	products := make([]commerce.Product, 0, len(productIDs))

	g, gc := errgroup.WithContext(c)
	g.SetLimit(fetchConcurrency)
	for _, id := range productIDs {
		g.Go(func() error {
			product, err := v.liveProduct(gc, id)
			if err != nil {
				return err
			}
			mu.Lock()
			products = append(products, product)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewSnapshot(products...), nil
}

// liveProduct fetches a product for reconciliation. A product deleted on the platform
// comes back without variants so its lines read as no longer available.
func (v *Validator) liveProduct(c context.Context, id string) (commerce.Product, error) {
	product, err := v.fetcher.GetProductByID(c, id)
	if errors.Is(err, inErrors.ErrProductNotFound) {
		zerolog.Ctx(c).Info().Str(constants.KEY_PRODUCT_ID, id).Msg("product no longer exists")
		return commerce.Product{ID: id}, nil
	}
	return product, err
}

// ValidateAndUpdateQuantity applies a quantity edit to one line after checking live stock.
// Only one edit per variant may be outstanding; a concurrent one gets cart.ErrEditInFlight.
func (v *Validator) ValidateAndUpdateQuantity(
	c context.Context,
	variantID string,
	requested int,
) (Result, error) {
	c, span := otel.Tracer.Start(c, "InventoryValidator ValidateAndUpdateQuantity")
	defer span.End()
	span.SetAttributes(
		attribute.String(constants.KEY_VARIANT_ID, variantID),
		attribute.Int(constants.KEY_QUANTITY, requested),
	)

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "InventoryValidator ValidateAndUpdateQuantity").
		Str(constants.KEY_VARIANT_ID, variantID).
		Int(constants.KEY_QUANTITY, requested).
		Logger()

	release, ok := v.store.BeginEdit(variantID)
	if !ok {
		err := fmt.Errorf("failed updating variantId=%s with error=%w", variantID, cart.ErrEditInFlight)
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return Result{}, err
	}
	defer release()

	item, ok := v.store.Item(variantID)
	if !ok {
		err := fmt.Errorf("failed updating variantId=%s with error=%w", variantID, inErrors.ErrVariantNotFound)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Result{}, err
	}

	if requested <= 0 {
		v.store.CompareAndRemove(c, variantID, item.Quantity)
		logger.Info().Msg("removed line")
		return Result{}, nil
	}

	logger = logger.With().
		Str(constants.KEY_PROCESS, "fetching live stock").
		Str(constants.KEY_PRODUCT_ID, item.Product.ID).
		Logger()
	logger.Info().Msg("fetching live stock")
	product, err := v.liveProduct(logger.WithContext(c), item.Product.ID)
	if err != nil {
		err = fmt.Errorf("failed fetching live stock with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Result{}, err
	}
	logger.Info().Msg("fetched live stock")

	live, ok := product.VariantByID(variantID)
	if !ok || !live.Purchasable() {
		result := noLongerAvailable(item.Product.Title)
		v.store.AddNotice(variantID, result.Type, result.Message)
		logger.Info().Msg("variant no longer available")
		return result, nil
	}

	quantity, result := requested, Result{}
	if available, over := exceeded(live, requested); over {
		quantity, result = available, onlyLeft(available)
		v.store.AddNotice(variantID, result.Type, result.Message)
	}
	if !v.store.CompareAndSetQuantity(c, variantID, item.Quantity, quantity) {
		logger.Debug().Msg("line unchanged")
	}
	logger.Info().Int("applied", quantity).Msg("updated quantity")

	return result, nil
}

// ValidateAndAddItem adds item using live stock as the ceiling. A request larger than the
// remaining stock adds what is left and warns; nothing left fails the add.
func (v *Validator) ValidateAndAddItem(c context.Context, item cart.LineItem) (AddResult, error) {
	c, span := otel.Tracer.Start(c, "InventoryValidator ValidateAndAddItem")
	defer span.End()
	span.SetAttributes(
		attribute.String(constants.KEY_VARIANT_ID, item.VariantID),
		attribute.Int(constants.KEY_QUANTITY, item.Quantity),
	)

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "InventoryValidator ValidateAndAddItem").
		Str(constants.KEY_PRODUCT_ID, item.Product.ID).
		Str(constants.KEY_VARIANT_ID, item.VariantID).
		Int(constants.KEY_QUANTITY, item.Quantity).
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "fetching live stock").Logger()
	logger.Info().Msg("fetching live stock")
	product, err := v.liveProduct(logger.WithContext(c), item.Product.ID)
	if err != nil {
		err = fmt.Errorf("failed fetching live stock with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return AddResult{}, err
	}
	logger.Info().Msg("fetched live stock")

	return v.add(logger.WithContext(c), product, item), nil
}

// ValidateAndAddVariant builds the line from live product data and adds it like
// ValidateAndAddItem.
func (v *Validator) ValidateAndAddVariant(
	c context.Context,
	productID string,
	variantID string,
	quantity int,
) (AddResult, error) {
	c, span := otel.Tracer.Start(c, "InventoryValidator ValidateAndAddVariant")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "InventoryValidator ValidateAndAddVariant").
		Str(constants.KEY_PRODUCT_ID, productID).
		Str(constants.KEY_VARIANT_ID, variantID).
		Int(constants.KEY_QUANTITY, quantity).
		Str(constants.KEY_PROCESS, "fetching live stock").
		Logger()

	logger.Info().Msg("fetching live stock")
	product, err := v.fetcher.GetProductByID(logger.WithContext(c), productID)
	if err != nil {
		err = fmt.Errorf("failed fetching live stock with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return AddResult{}, err
	}
	variant, ok := product.VariantByID(variantID)
	if !ok {
		logger.Info().Msg("variant not found on product")
		return AddResult{Result: outOfStock(product.Title)}, nil
	}
	logger.Info().Msg("fetched live stock")

	return v.add(logger.WithContext(c), product, cart.NewLineItem(product, variant, quantity)), nil
}

func (v *Validator) add(c context.Context, product commerce.Product, item cart.LineItem) AddResult {
	logger := zerolog.Ctx(c).With().Str(constants.KEY_PROCESS, "adding item").Logger()

	title := item.Product.Title
	if title == "" {
		title = product.Title
	}
	live, ok := product.VariantByID(item.VariantID)
	if !ok || !live.Purchasable() {
		logger.Info().Msg("variant out of stock")
		return AddResult{Result: outOfStock(title)}
	}
	available, tracked := live.Stock()
	if !tracked {
		if !v.store.AddItem(c, item) {
			return AddResult{Result: outOfStock(title)}
		}
		logger.Info().Msg("added item")
		return AddResult{Success: true}
	}

	existing := 0
	if line, ok := v.store.Item(item.VariantID); ok {
		existing = line.Quantity
	}
	remaining := available - existing
	if remaining <= 0 {
		logger.Info().Int("available", available).Msg("no stock left beyond cart quantity")
		return AddResult{Result: outOfStock(title)}
	}

	result := Result{}
	if item.Quantity > remaining {
		item.Quantity = remaining
		result = onlyLeft(available)
	}
	if !v.store.AddItemUpTo(c, item, available) {
		logger.Info().Int("available", available).Msg("rejected item")
		return AddResult{Result: outOfStock(title)}
	}
	if !result.Empty() {
		v.store.AddNotice(item.VariantID, result.Type, result.Message)
	}
	logger.Info().Int(constants.KEY_QUANTITY, item.Quantity).Msg("added item")

	return AddResult{Success: true, Result: result}
}
