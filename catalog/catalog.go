// Package catalog holds the read-only product catalog loaded once per process.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
)

type ProductLister interface {
	GetProducts(c context.Context, count int) ([]commerce.Product, error)
}

type Cache struct {
	client ProductLister
	cache  *redis.Client
	count  int
	ttl    time.Duration
	group  singleflight.Group

	mu       sync.RWMutex
	loaded   bool
	products []commerce.Product
	byHandle map[string]int
	byID     map[string]int
}

// NewCache builds an empty catalog. cache may be nil, in which case no snapshot is shared
// between processes.
func NewCache(client ProductLister, cache *redis.Client, cfg config.Commerce) *Cache {
	return &Cache{
		client:   client,
		cache:    cache,
		count:    cfg.ProductCount,
		ttl:      cfg.CatalogTTL,
		byHandle: map[string]int{},
		byID:     map[string]int{},
	}
}

// Load fills the catalog on first use. Concurrent callers share one fetch.
func (cat *Cache) Load(c context.Context) error {
	cat.mu.RLock()
	loaded := cat.loaded
	cat.mu.RUnlock()
	if loaded {
		return nil
	}
	return cat.load(c, false)
}

// Refresh refetches the catalog from the commerce platform, ignoring any snapshot.
func (cat *Cache) Refresh(c context.Context) error {
	return cat.load(c, true)
}

func (cat *Cache) load(c context.Context, force bool) error {
	c, span := otel.Tracer.Start(c, "CatalogCache Load")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CatalogCache Load").
		Bool("force", force).
		Logger()

	key := "load"
	if force {
		key = "refresh"
	}
	_, err, shared := cat.group.Do(key, func() (interface{}, error) {
		c := logger.WithContext(c)
		if !force {
			if products, ok := cat.snapshot(c); ok {
				cat.set(products)
				return nil, nil
			}
		}

		logger := logger.With().Str(constants.KEY_PROCESS, "fetching products").Logger()
		logger.Info().Msg("fetching products")
		products, err := cat.client.GetProducts(c, cat.count)
		if err != nil {
			return nil, err
		}
		logger.Info().Msgf("fetched %d products", len(products))

		cat.set(products)
		cat.saveSnapshot(c, products)
		return nil, nil
	})
	if err != nil {
		err = fmt.Errorf("failed loading catalog with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Debug().Bool("shared", shared).Msg("loaded catalog")

	return nil
}

func (cat *Cache) snapshot(c context.Context) ([]commerce.Product, bool) {
	if cat.cache == nil {
		return nil, false
	}
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_PROCESS, "getting catalog snapshot").
		Str(constants.KEY_CACHE_KEY, constants.CACHE_KEY_CATALOG).
		Logger()

	logger.Trace().Msg("getting catalog snapshot")
	data, err := cat.cache.Get(c, constants.CACHE_KEY_CATALOG).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.Trace().Msg("catalog snapshot not found")
		return nil, false
	}
	if err != nil {
		logger.Warn().Err(err).Msg("failed getting catalog snapshot")
		return nil, false
	}
	products := []commerce.Product{}
	if err := json.Unmarshal(data, &products); err != nil {
		logger.Warn().Err(err).Msg("failed decoding catalog snapshot")
		return nil, false
	}
	logger.Info().Msgf("got catalog snapshot with %d products", len(products))
	return products, true
}

func (cat *Cache) saveSnapshot(c context.Context, products []commerce.Product) {
	if cat.cache == nil {
		return
	}
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_PROCESS, "setting catalog snapshot").
		Str(constants.KEY_CACHE_KEY, constants.CACHE_KEY_CATALOG).
		Logger()

	data, err := json.Marshal(products)
	if err != nil {
		logger.Warn().Err(err).Msg("failed encoding catalog snapshot")
		return
	}
	if err := cat.cache.Set(c, constants.CACHE_KEY_CATALOG, data, cat.ttl).Err(); err != nil {
		logger.Warn().Err(err).Msg("failed setting catalog snapshot")
		return
	}
	logger.Trace().Msg("set catalog snapshot")
}

func (cat *Cache) set(products []commerce.Product) {
	byHandle := make(map[string]int, len(products))
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byHandle[p.Handle] = i
		byID[p.ID] = i
	}

	cat.mu.Lock()
	defer cat.mu.Unlock()
	cat.products = products
	cat.byHandle = byHandle
	cat.byID = byID
	cat.loaded = true
}

func (cat *Cache) ProductByHandle(handle string) (commerce.Product, bool) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	i, ok := cat.byHandle[handle]
	if !ok {
		return commerce.Product{}, false
	}
	return cat.products[i], true
}

func (cat *Cache) ProductByID(id string) (commerce.Product, bool) {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	i, ok := cat.byID[id]
	if !ok {
		return commerce.Product{}, false
	}
	return cat.products[i], true
}

func (cat *Cache) Products() []commerce.Product {
	cat.mu.RLock()
	defer cat.mu.RUnlock()
	products := make([]commerce.Product, len(cat.products))
	copy(products, cat.products)
	return products
}
