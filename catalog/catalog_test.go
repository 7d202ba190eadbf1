package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
)

type fakeLister struct {
	calls    atomic.Int32
	products []commerce.Product
	err      error
	delay    time.Duration
}

func (f *fakeLister) GetProducts(c context.Context, count int) ([]commerce.Product, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

var products = []commerce.Product{
	{ID: "p-1", Handle: "pearl-ring", Title: "Pearl Ring"},
	{ID: "p-2", Handle: "gold-hoops", Title: "Gold Hoops"},
}

func cfg() config.Commerce {
	return config.Commerce{ProductCount: 250, CatalogTTL: time.Minute}
}

func TestLoadCollapsesConcurrentCalls(t *testing.T) {
	lister := &fakeLister{products: products, delay: 50 * time.Millisecond}
	cat := NewCache(lister, nil, cfg())

	wg := sync.WaitGroup{}
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, cat.Load(context.Background()))
		}()
	}
	wg.Wait()
	require.NoError(t, cat.Load(context.Background()))

	assert.EqualValues(t, 1, lister.calls.Load())
	assert.Len(t, cat.Products(), 2)
}

func TestLookups(t *testing.T) {
	cat := NewCache(&fakeLister{products: products}, nil, cfg())
	require.NoError(t, cat.Load(context.Background()))

	p, ok := cat.ProductByHandle("gold-hoops")
	assert.True(t, ok)
	assert.Equal(t, "p-2", p.ID)

	p, ok = cat.ProductByID("p-1")
	assert.True(t, ok)
	assert.Equal(t, "pearl-ring", p.Handle)

	_, ok = cat.ProductByHandle("missing")
	assert.False(t, ok)
}

func TestLoadFailureLeavesCatalogEmpty(t *testing.T) {
	lister := &fakeLister{err: assert.AnError}
	cat := NewCache(lister, nil, cfg())

	assert.ErrorIs(t, cat.Load(context.Background()), assert.AnError)
	assert.Empty(t, cat.Products())

	lister.err = nil
	lister.products = products
	require.NoError(t, cat.Load(context.Background()))
	assert.Len(t, cat.Products(), 2)
}

func TestSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	first := &fakeLister{products: products}
	require.NoError(t, NewCache(first, client, cfg()).Load(context.Background()))
	assert.EqualValues(t, 1, first.calls.Load())
	assert.Equal(t, time.Minute, mr.TTL(constants.CACHE_KEY_CATALOG))

	second := &fakeLister{}
	cat := NewCache(second, client, cfg())
	require.NoError(t, cat.Load(context.Background()))
	assert.EqualValues(t, 0, second.calls.Load())
	_, ok := cat.ProductByHandle("pearl-ring")
	assert.True(t, ok)

	second.products = products[:1]
	require.NoError(t, cat.Refresh(context.Background()))
	assert.EqualValues(t, 1, second.calls.Load())
	assert.Len(t, cat.Products(), 1)

	raw, err := mr.Get(constants.CACHE_KEY_CATALOG)
	require.NoError(t, err)
	stored := []commerce.Product{}
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Len(t, stored, 1)
}
