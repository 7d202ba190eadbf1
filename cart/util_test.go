package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/goleak"

	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/storage"
)

var errRemoteDown = errors.New("remote down")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() config.Cart {
	return config.Cart{
		MirrorDebounce:      20 * time.Millisecond,
		MirrorMaxRetries:    2,
		MirrorRetryInterval: time.Millisecond,
		NoticeTTL:           4 * time.Second,
	}
}

func line(variantID string, quantity int) LineItem {
	return LineItem{
		Product: ProductRef{
			ID:     "product-" + variantID,
			Handle: "handle-" + variantID,
			Title:  "Product " + variantID,
		},
		VariantID:    variantID,
		VariantTitle: "Default",
		UnitPrice: commerce.Money{
			Amount:       decimal.RequireFromString("25.50"),
			CurrencyCode: "USD",
		},
		Quantity:        quantity,
		SelectedOptions: []commerce.SelectedOption{{Name: "Size", Value: "M"}},
	}
}

type fakeCreator struct {
	mu     sync.Mutex
	calls  int
	lines  []commerce.CartLineInput
	result commerce.CartCreateResult
	err    error
}

func (f *fakeCreator) CartCreate(
	c context.Context,
	lines []commerce.CartLineInput,
	buyer *commerce.BuyerIdentity,
) (commerce.CartCreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lines = lines
	return f.result, f.err
}

func (f *fakeCreator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// editingCreator runs during while the remote checkout is being created.
type editingCreator struct {
	result commerce.CartCreateResult
	during func()
}

func (f *editingCreator) CartCreate(
	c context.Context,
	lines []commerce.CartLineInput,
	buyer *commerce.BuyerIdentity,
) (commerce.CartCreateResult, error) {
	f.during()
	return f.result, nil
}

type fakeRemote struct {
	mu       sync.Mutex
	saved    map[uuid.UUID][]LineItem
	writes   [][]LineItem
	failures int
	findErr  error
	written  chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{saved: map[uuid.UUID][]LineItem{}, written: make(chan struct{}, 16)}
}

func (f *fakeRemote) ReplaceCartItems(c context.Context, userID uuid.UUID, items []LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errRemoteDown
	}
	f.saved[userID] = items
	f.writes = append(f.writes, items)
	select {
	case f.written <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeRemote) FindCartItems(c context.Context, userID uuid.UUID) ([]LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.saved[userID], nil
}

func (f *fakeRemote) DeleteCartItems(c context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, userID)
	return nil
}

func (f *fakeRemote) Writes() [][]LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	writes := make([][]LineItem, len(f.writes))
	copy(writes, f.writes)
	return writes
}

func (f *fakeRemote) Saved(userID uuid.UUID) []LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[userID]
}

func newTestStore(t *testing.T, creator CheckoutCreator) (*Store, *storage.MemoryStorage) {
	mem := storage.NewMemoryStorage()
	store := NewStore("session-1", mem, creator, testConfig())
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("failed initializing store with error: %s", err)
	}
	return store, mem
}
