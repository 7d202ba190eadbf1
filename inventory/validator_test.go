package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/cart"
	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/config"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/storage"
)

var errBackendDown = errors.New("backend down")

type fakeFetcher struct {
	mu       sync.Mutex
	products map[string]commerce.Product
	err      error
	calls    int
	// before runs inside GetProductByID, ahead of returning, for the given product id.
	before map[string]func()
}

func (f *fakeFetcher) GetProductByID(c context.Context, id string) (commerce.Product, error) {
	f.mu.Lock()
	f.calls++
	hook := f.before[id]
	product, ok := f.products[id]
	err := f.err
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return commerce.Product{}, err
	}
	if !ok {
		return commerce.Product{}, inErrors.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func stock(n int) *int {
	return &n
}

func product(id string, variants ...commerce.Variant) commerce.Product {
	return commerce.Product{ID: id, Title: "Title " + id, Handle: id, Variants: variants}
}

func variant(id string, forSale bool, available *int) commerce.Variant {
	return commerce.Variant{
		ID:                id,
		Title:             "Variant " + id,
		Price:             commerce.Money{Amount: decimal.NewFromInt(10), CurrencyCode: "USD"},
		AvailableForSale:  forSale,
		QuantityAvailable: available,
	}
}

func line(productID string, variantID string, quantity int) cart.LineItem {
	return cart.LineItem{
		Product:   cart.ProductRef{ID: productID, Title: "Title " + productID},
		VariantID: variantID,
		UnitPrice: commerce.Money{Amount: decimal.NewFromInt(10), CurrencyCode: "USD"},
		Quantity:  quantity,
	}
}

func newTestValidator(t *testing.T, fetcher *fakeFetcher, lines ...cart.LineItem) (*Validator, *cart.Store) {
	store := cart.NewStore("session", storage.NewMemoryStorage(), nil, config.Cart{NoticeTTL: 4 * time.Second})
	require.NoError(t, store.Initialize(context.Background()))
	for _, l := range lines {
		require.True(t, store.AddItem(context.Background(), l))
	}
	return NewValidator(store, fetcher), store
}

func quantities(store *cart.Store) map[string]int {
	q := map[string]int{}
	for _, item := range store.Items() {
		q[item.VariantID] = item.Quantity
	}
	return q
}

func TestValidateCartInventory(t *testing.T) {
	tests := []struct {
		name               string
		lines              []cart.LineItem
		products           map[string]commerce.Product
		expectedValid      bool
		expectedQuantities map[string]int
		expectedNotices    []string
	}{
		{
			name:  "given satisfiable cart should return true",
			lines: []cart.LineItem{line("P1", "V1", 2), line("P1", "V1b", 1)},
			products: map[string]commerce.Product{
				"P1": product("P1", variant("V1", true, stock(5)), variant("V1b", true, nil)),
			},
			expectedValid:      true,
			expectedQuantities: map[string]int{"V1": 2, "V1b": 1},
			expectedNotices:    []string{},
		},
		{
			name:               "given quantity equal to stock should be allowed",
			lines:              []cart.LineItem{line("P1", "V1", 3)},
			products:           map[string]commerce.Product{"P1": product("P1", variant("V1", true, stock(3)))},
			expectedValid:      true,
			expectedQuantities: map[string]int{"V1": 3},
			expectedNotices:    []string{},
		},
		{
			name:  "given variant no longer for sale should remove it",
			lines: []cart.LineItem{line("P2", "V2", 2), line("P1", "V1", 1)},
			products: map[string]commerce.Product{
				"P1": product("P1", variant("V1", true, stock(5))),
				"P2": product("P2", variant("V2", false, stock(10))),
			},
			expectedValid:      false,
			expectedQuantities: map[string]int{"V1": 1},
			expectedNotices:    []string{"Title P2 is no longer available"},
		},
		{
			name:               "given zero stock should remove rather than clamp",
			lines:              []cart.LineItem{line("P1", "V1", 2)},
			products:           map[string]commerce.Product{"P1": product("P1", variant("V1", true, stock(0)))},
			expectedValid:      false,
			expectedQuantities: map[string]int{},
			expectedNotices:    []string{"Title P1 is no longer available"},
		},
		{
			name:               "given deleted variant should remove it",
			lines:              []cart.LineItem{line("P1", "V9", 1)},
			products:           map[string]commerce.Product{"P1": product("P1", variant("V1", true, stock(1)))},
			expectedValid:      false,
			expectedQuantities: map[string]int{},
			expectedNotices:    []string{"Title P1 is no longer available"},
		},
		{
			name:               "given product deleted on the platform should remove its lines",
			lines:              []cart.LineItem{line("P1", "V1", 1), line("P2", "V2", 1)},
			products:           map[string]commerce.Product{"P2": product("P2", variant("V2", true, stock(3)))},
			expectedValid:      false,
			expectedQuantities: map[string]int{"V2": 1},
			expectedNotices:    []string{"Title P1 is no longer available"},
		},
		{
			name:               "given quantity above stock should clamp",
			lines:              []cart.LineItem{line("P1", "V1", 5)},
			products:           map[string]commerce.Product{"P1": product("P1", variant("V1", true, stock(2)))},
			expectedValid:      false,
			expectedQuantities: map[string]int{"V1": 2},
			expectedNotices:    []string{"Only 2 left in stock"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fetcher := &fakeFetcher{products: test.products}
			validator, store := newTestValidator(t, fetcher, test.lines...)
			before := quantities(store)

			valid, err := validator.ValidateCartInventory(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.expectedValid, valid)
			assert.Equal(t, test.expectedQuantities, quantities(store))

			for variantID, quantity := range quantities(store) {
				assert.LessOrEqual(t, quantity, before[variantID], "no line may grow")
			}

			notices := []string{}
			for _, n := range store.Notices() {
				notices = append(notices, n.Message)
			}
			assert.Equal(t, test.expectedNotices, notices)

			after := quantities(store)
			valid, err = validator.ValidateCartInventory(context.Background())
			require.NoError(t, err)
			assert.True(t, valid, "second pass over reconciled cart is valid")
			assert.Equal(t, after, quantities(store), "second pass does not mutate")
		})
	}
}

func TestValidateCartInventoryFetchesEachProductOnce(t *testing.T) {
	fetcher := &fakeFetcher{products: map[string]commerce.Product{
		"P1": product("P1", variant("V1", true, stock(5)), variant("V2", true, stock(5))),
		"P2": product("P2", variant("V3", true, stock(5))),
	}}
	validator, _ := newTestValidator(t, fetcher, line("P1", "V1", 1), line("P1", "V2", 1), line("P2", "V3", 1))

	valid, err := validator.ValidateCartInventory(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, 2, fetcher.Calls())
}

func TestValidateCartInventoryFetchFailureLeavesCart(t *testing.T) {
	fetcher := &fakeFetcher{err: errBackendDown}
	validator, store := newTestValidator(t, fetcher, line("P1", "V1", 5))

	valid, err := validator.ValidateCartInventory(context.Background())
	assert.ErrorIs(t, err, errBackendDown)
	assert.False(t, valid)
	assert.Equal(t, map[string]int{"V1": 5}, quantities(store))
	assert.Empty(t, store.Notices())
}

func TestValidateCartInventoryEmptyCart(t *testing.T) {
	fetcher := &fakeFetcher{}
	validator, _ := newTestValidator(t, fetcher)

	valid, err := validator.ValidateCartInventory(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Zero(t, fetcher.Calls())
}

func TestValidateCartInventoryIgnoresStaleResponse(t *testing.T) {
	fetcher := &fakeFetcher{products: map[string]commerce.Product{
		"P1": product("P1", variant("V1", true, stock(2))),
	}}
	validator, store := newTestValidator(t, fetcher, line("P1", "V1", 5))
	fetcher.before = map[string]func(){
		"P1": func() { store.UpdateQuantity(context.Background(), "V1", 1) },
	}

	valid, err := validator.ValidateCartInventory(context.Background())
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, map[string]int{"V1": 1}, quantities(store), "newer edit wins over stale clamp")
}

func TestValidateAndUpdateQuantity(t *testing.T) {
	tests := []struct {
		name             string
		quantity         int
		requested        int
		variant          commerce.Variant
		expectedResult   Result
		expectedQuantity int
	}{
		{
			name:             "given request above stock should clamp to stock",
			quantity:         3,
			requested:        5,
			variant:          variant("V1", true, stock(1)),
			expectedResult:   Result{Message: "Only 1 left in stock", Type: cart.NoticeWarning},
			expectedQuantity: 1,
		},
		{
			name:             "given unavailable variant should not change quantity",
			quantity:         3,
			requested:        2,
			variant:          variant("V1", false, stock(5)),
			expectedResult:   Result{Message: "Title P1 is no longer available", Type: cart.NoticeError},
			expectedQuantity: 3,
		},
		{
			name:             "given request within stock should set it",
			quantity:         1,
			requested:        4,
			variant:          variant("V1", true, stock(4)),
			expectedResult:   Result{},
			expectedQuantity: 4,
		},
		{
			name:             "given untracked stock should set it",
			quantity:         1,
			requested:        40,
			variant:          variant("V1", true, nil),
			expectedResult:   Result{},
			expectedQuantity: 40,
		},
		{
			name:             "given zero should remove line",
			quantity:         2,
			requested:        0,
			variant:          variant("V1", true, stock(4)),
			expectedResult:   Result{},
			expectedQuantity: 0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fetcher := &fakeFetcher{products: map[string]commerce.Product{"P1": product("P1", test.variant)}}
			validator, store := newTestValidator(t, fetcher, line("P1", "V1", test.quantity))

			result, err := validator.ValidateAndUpdateQuantity(context.Background(), "V1", test.requested)
			require.NoError(t, err)
			assert.Equal(t, test.expectedResult, result)

			item, ok := store.Item("V1")
			if test.expectedQuantity == 0 {
				assert.False(t, ok)
				return
			}
			assert.Equal(t, test.expectedQuantity, item.Quantity)
			assert.False(t, store.Editing("V1"))
		})
	}
}

func TestValidateAndUpdateQuantityFailures(t *testing.T) {
	fetcher := &fakeFetcher{err: errBackendDown}
	validator, store := newTestValidator(t, fetcher, line("P1", "V1", 2))

	_, err := validator.ValidateAndUpdateQuantity(context.Background(), "V1", 5)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, map[string]int{"V1": 2}, quantities(store))

	_, err = validator.ValidateAndUpdateQuantity(context.Background(), "missing", 5)
	assert.ErrorIs(t, err, inErrors.ErrVariantNotFound)
}

func TestValidateAndUpdateQuantityDeletedProduct(t *testing.T) {
	fetcher := &fakeFetcher{products: map[string]commerce.Product{}}
	validator, store := newTestValidator(t, fetcher, line("P1", "V1", 1))

	result, err := validator.ValidateAndUpdateQuantity(context.Background(), "V1", 2)
	require.NoError(t, err)
	assert.Equal(t, Result{Message: "Title P1 is no longer available", Type: cart.NoticeError}, result)
	assert.Equal(t, map[string]int{"V1": 1}, quantities(store))
	assert.False(t, store.Editing("V1"))
}

func TestValidateAndAddItemDeletedProduct(t *testing.T) {
	fetcher := &fakeFetcher{products: map[string]commerce.Product{}}
	validator, store := newTestValidator(t, fetcher)

	result, err := validator.ValidateAndAddItem(context.Background(), line("P1", "V1", 1))
	require.NoError(t, err)
	assert.Equal(t, AddResult{Result: Result{Message: "Title P1 is out of stock", Type: cart.NoticeError}}, result)
	assert.Empty(t, store.Items())
}

func TestValidateAndUpdateQuantitySerializesSameVariant(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	fetcher := &fakeFetcher{
		products: map[string]commerce.Product{
			"P1": product("P1", variant("V1", true, stock(10))),
			"P2": product("P2", variant("V2", true, stock(10))),
		},
		before: map[string]func(){
			"P1": func() {
				close(entered)
				<-unblock
			},
		},
	}
	validator, store := newTestValidator(t, fetcher, line("P1", "V1", 1), line("P2", "V2", 1))

	done := make(chan error, 1)
	go func() {
		_, err := validator.ValidateAndUpdateQuantity(context.Background(), "V1", 3)
		done <- err
	}()
	<-entered

	_, err := validator.ValidateAndUpdateQuantity(context.Background(), "V1", 4)
	assert.ErrorIs(t, err, cart.ErrEditInFlight)

	_, err = validator.ValidateAndUpdateQuantity(context.Background(), "V2", 6)
	assert.NoError(t, err, "other variants are independent")

	close(unblock)
	require.NoError(t, <-done)
	assert.Equal(t, map[string]int{"V1": 3, "V2": 6}, quantities(store))
}

func TestValidateAndAddItem(t *testing.T) {
	tests := []struct {
		name             string
		existing         int
		adding           int
		variant          commerce.Variant
		expected         AddResult
		expectedQuantity int
	}{
		{
			name:             "given stock should add",
			adding:           2,
			variant:          variant("V1", true, stock(5)),
			expected:         AddResult{Success: true},
			expectedQuantity: 2,
		},
		{
			name:             "given request above remaining stock should add what is left",
			existing:         2,
			adding:           5,
			variant:          variant("V1", true, stock(3)),
			expected:         AddResult{Success: true, Result: Result{Message: "Only 3 left in stock", Type: cart.NoticeWarning}},
			expectedQuantity: 3,
		},
		{
			name:             "given cart already holding all stock should fail",
			existing:         3,
			adding:           1,
			variant:          variant("V1", true, stock(3)),
			expected:         AddResult{Result: Result{Message: "Title P1 is out of stock", Type: cart.NoticeError}},
			expectedQuantity: 3,
		},
		{
			name:             "given unavailable variant should fail",
			adding:           1,
			variant:          variant("V1", false, stock(3)),
			expected:         AddResult{Result: Result{Message: "Title P1 is out of stock", Type: cart.NoticeError}},
			expectedQuantity: 0,
		},
		{
			name:             "given untracked stock should add",
			existing:         1,
			adding:           7,
			variant:          variant("V1", true, nil),
			expected:         AddResult{Success: true},
			expectedQuantity: 8,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fetcher := &fakeFetcher{products: map[string]commerce.Product{"P1": product("P1", test.variant)}}
			lines := []cart.LineItem{}
			if test.existing > 0 {
				lines = append(lines, line("P1", "V1", test.existing))
			}
			validator, store := newTestValidator(t, fetcher, lines...)

			result, err := validator.ValidateAndAddItem(context.Background(), line("P1", "V1", test.adding))
			require.NoError(t, err)
			assert.Equal(t, test.expected, result)

			item, ok := store.Item("V1")
			if test.expectedQuantity == 0 {
				assert.False(t, ok)
				return
			}
			assert.Equal(t, test.expectedQuantity, item.Quantity)
		})
	}
}

func TestValidateAndAddVariant(t *testing.T) {
	fetcher := &fakeFetcher{products: map[string]commerce.Product{
		"P1": product("P1", variant("V1", true, stock(2))),
	}}
	validator, store := newTestValidator(t, fetcher)

	result, err := validator.ValidateAndAddVariant(context.Background(), "P1", "V1", 1)
	require.NoError(t, err)
	assert.True(t, result.Success)

	item, ok := store.Item("V1")
	require.True(t, ok)
	assert.Equal(t, "Title P1", item.Product.Title)
	assert.Equal(t, "Variant V1", item.VariantTitle)

	result, err = validator.ValidateAndAddVariant(context.Background(), "P1", "V404", 1)
	require.NoError(t, err)
	assert.False(t, result.Success)

	_, err = validator.ValidateAndAddVariant(context.Background(), "P404", "V1", 1)
	assert.ErrorIs(t, err, inErrors.ErrProductNotFound)
}
