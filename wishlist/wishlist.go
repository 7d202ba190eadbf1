// Package wishlist keeps the products a session has saved for later.
package wishlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/storage"
)

type Item struct {
	ProductID string         `json:"productId"`
	Handle    string         `json:"handle"`
	Title     string         `json:"title"`
	ImageURL  string         `json:"imageUrl,omitempty"`
	Price     commerce.Money `json:"price"`
	AddedAt   time.Time      `json:"addedAt"`
}

func NewItem(product commerce.Product) Item {
	return Item{
		ProductID: product.ID,
		Handle:    product.Handle,
		Title:     product.Title,
		ImageURL:  product.ImageURL(),
		Price:     product.PriceRange.MinVariantPrice,
	}
}

type State struct {
	Items []Item `json:"items"`
}

type Store struct {
	key     string
	storage storage.Storage
	now     func() time.Time

	mu    sync.Mutex
	items []Item
}

func NewStore(sessionId string, storage storage.Storage) *Store {
	return &Store{
		key:     storageKey(sessionId),
		storage: storage,
		now:     time.Now,
	}
}

func storageKey(sessionId string) string {
	return storage.Key(constants.STORAGE_KEY_WISHLIST, sessionId)
}

func (s *Store) Initialize(c context.Context) error {
	c, span := otel.Tracer.Start(c, "WishlistStore Initialize")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "WishlistStore Initialize").
		Str(constants.KEY_STORAGE_KEY, s.key).
		Str(constants.KEY_PROCESS, "rehydrating wishlist").
		Logger()

	logger.Info().Msg("rehydrating wishlist")
	persisted := State{}
	ok, err := s.storage.Load(c, s.key, &persisted)
	if err != nil {
		err = fmt.Errorf("failed rehydrating wishlist with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	seen := map[string]struct{}{}
	items := make([]Item, 0, len(persisted.Items))
	for _, item := range persisted.Items {
		if item.ProductID == "" {
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}
		items = append(items, item)
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	logger.Info().Bool("found", ok).Int("wishlistItems", len(items)).Msg("rehydrated wishlist")

	return nil
}

// Add saves item. It returns false when the product is already saved.
func (s *Store) Add(c context.Context, item Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(item.ProductID) >= 0 || item.ProductID == "" {
		return false
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = s.now()
	}
	s.items = append(s.items, item)
	s.persist(c)
	return true
}

// Remove reports whether productID was saved.
func (s *Store) Remove(c context.Context, productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(productID)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.persist(c)
	return true
}

// Toggle removes item when saved and adds it otherwise. It returns whether the product is
// saved afterwards.
func (s *Store) Toggle(c context.Context, item Item) bool {
	s.mu.Lock()
	saved := s.indexOf(item.ProductID) >= 0
	s.mu.Unlock()
	if saved {
		s.Remove(c, item.ProductID)
		return false
	}
	return s.Add(c, item)
}

func (s *Store) Has(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(productID) >= 0
}

// Items returns the saved products, oldest first.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Item, len(s.items))
	copy(items, s.items)
	return items
}

func (s *Store) Clear(c context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.persist(c)
}

func (s *Store) indexOf(productID string) int {
	for i, item := range s.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) persist(c context.Context) {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "WishlistStore persist").
		Str(constants.KEY_STORAGE_KEY, s.key).
		Logger()
	items := s.items
	if items == nil {
		items = []Item{}
	}
	if err := s.storage.Save(c, s.key, State{Items: items}); err != nil {
		logger.Error().Err(err).Msg("failed persisting wishlist")
	}
}
