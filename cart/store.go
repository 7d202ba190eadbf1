// Package cart holds the per-session cart: line items keyed by variant, their persistence
// to device storage and the debounced mirror to the saved cart of a signed-in user.
package cart

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Alturino/storefront/internal/commerce"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/storage"
)

type CheckoutCreator interface {
	CartCreate(
		c context.Context,
		lines []commerce.CartLineInput,
		buyer *commerce.BuyerIdentity,
	) (commerce.CartCreateResult, error)
}

type Store struct {
	key       string
	storage   storage.Storage
	creator   CheckoutCreator
	noticeTTL time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    State
	notices  []Notice
	inFlight map[string]struct{}
	// ceilings holds the lowest available quantity supplied per line while it exists.
	ceilings map[string]int
	mirror   *Mirror
}

func NewStore(
	sessionId string,
	storage storage.Storage,
	creator CheckoutCreator,
	cfg config.Cart,
) *Store {
	return &Store{
		key:       storageKey(sessionId),
		storage:   storage,
		creator:   creator,
		noticeTTL: cfg.NoticeTTL,
		now:       time.Now,
		state:     State{Items: map[string]LineItem{}},
		inFlight:  map[string]struct{}{},
		ceilings:  map[string]int{},
	}
}

func storageKey(sessionId string) string {
	return storage.Key(constants.STORAGE_KEY_CART, sessionId)
}

// Initialize rehydrates the cart from device storage. A missing or unreadable payload
// leaves the cart empty.
func (s *Store) Initialize(c context.Context) error {
	c, span := otel.Tracer.Start(c, "CartStore Initialize")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartStore Initialize").
		Str(constants.KEY_STORAGE_KEY, s.key).
		Str(constants.KEY_PROCESS, "rehydrating cart").
		Logger()

	logger.Info().Msg("rehydrating cart")
	persisted := State{}
	ok, err := s.storage.Load(c, s.key, &persisted)
	if err != nil {
		err = fmt.Errorf("failed rehydrating cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	items := map[string]LineItem{}
	for variantID, item := range persisted.Items {
		if item.Quantity < 1 || variantID == "" {
			continue
		}
		item.VariantID = variantID
		items[variantID] = item
	}
	persisted.Items = items
	persisted.IsLoading = false

	s.mu.Lock()
	s.state = persisted
	s.mu.Unlock()
	logger.Info().Bool("found", ok).Int(constants.KEY_CART_ITEMS, len(items)).Msg("rehydrated cart")

	return nil
}

// Shutdown flushes any write still waiting in the mirror.
func (s *Store) Shutdown(c context.Context) error {
	s.mu.Lock()
	mirror := s.mirror
	s.mirror = nil
	s.mu.Unlock()
	if mirror == nil {
		return nil
	}
	return mirror.Close(c)
}

// AttachMirror starts mirroring every later mutation through m. A previously attached
// mirror is closed.
func (s *Store) AttachMirror(c context.Context, m *Mirror) {
	s.mu.Lock()
	previous := s.mirror
	s.mirror = m
	s.mu.Unlock()
	if previous != nil && previous != m {
		_ = previous.Close(c)
	}
}

// Bind records userID as the owner of the cart, uuid.Nil unbinds it. The binding is
// persisted with the cart so a rehydrated cart resumes mirroring without another sync.
func (s *Store) Bind(c context.Context, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BoundUserID = ""
	if userID != uuid.Nil {
		s.state.BoundUserID = userID.String()
	}
	s.persist(c)
}

// BoundUser is the user the cart is bound to, uuid.Nil for guests.
func (s *Store) BoundUser() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.BoundUserID == "" {
		return uuid.Nil
	}
	userID, err := uuid.Parse(s.state.BoundUserID)
	if err != nil {
		return uuid.Nil
	}
	return userID
}

func (s *Store) Mirror() *Mirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror
}

// AddItem merges item into the cart. It returns false for a quantity below one or when
// an availability recorded by AddItemUpTo would be exceeded.
func (s *Store) AddItem(c context.Context, item LineItem) bool {
	return s.addItem(c, item, nil)
}

// AddItemUpTo merges item into the cart unless the resulting quantity would exceed
// available, or any lower availability supplied earlier for the same line, in which case
// nothing is added and false is returned.
func (s *Store) AddItemUpTo(c context.Context, item LineItem, available int) bool {
	return s.addItem(c, item, &available)
}

func (s *Store) addItem(c context.Context, item LineItem, available *int) bool {
	c, span := otel.Tracer.Start(c, "CartStore AddItem")
	defer span.End()
	span.SetAttributes(
		attribute.String(constants.KEY_VARIANT_ID, item.VariantID),
		attribute.Int(constants.KEY_QUANTITY, item.Quantity),
	)

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartStore AddItem").
		Str(constants.KEY_VARIANT_ID, item.VariantID).
		Int(constants.KEY_QUANTITY, item.Quantity).
		Str(constants.KEY_PROCESS, "adding item").
		Logger()

	if item.Quantity < 1 || item.VariantID == "" {
		logger.Warn().Msg("rejected item without variant or positive quantity")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quantity := item.Quantity
	if existing, ok := s.state.Items[item.VariantID]; ok {
		quantity += existing.Quantity
		item = existing
	}
	limit, limited := s.ceilings[item.VariantID]
	if available != nil && (!limited || *available < limit) {
		limit, limited = *available, true
		s.ceilings[item.VariantID] = limit
	}
	if limited && quantity > limit {
		logger.Info().Int("available", limit).Msg("rejected item exceeding available stock")
		return false
	}
	item.Quantity = quantity
	s.state.Items[item.VariantID] = item
	s.commit(logger.WithContext(c))
	logger.Info().Int("total", quantity).Msg("added item")

	return true
}

// UpdateQuantity overwrites the quantity of a line without checking stock. A quantity of
// zero or less removes the line.
func (s *Store) UpdateQuantity(c context.Context, variantID string, quantity int) {
	c, span := otel.Tracer.Start(c, "CartStore UpdateQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartStore UpdateQuantity").
		Str(constants.KEY_VARIANT_ID, variantID).
		Int(constants.KEY_QUANTITY, quantity).
		Logger()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setQuantity(variantID, quantity) {
		s.commit(logger.WithContext(c))
		logger.Info().Msg("updated quantity")
	}
}

func (s *Store) RemoveItem(c context.Context, variantID string) {
	c, span := otel.Tracer.Start(c, "CartStore RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartStore RemoveItem").
		Str(constants.KEY_VARIANT_ID, variantID).
		Logger()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Items[variantID]; !ok {
		return
	}
	delete(s.state.Items, variantID)
	delete(s.ceilings, variantID)
	s.commit(logger.WithContext(c))
	logger.Info().Msg("removed item")
}

// CompareAndSetQuantity sets the quantity of a line only if it still holds expected.
// It reports whether the line was changed.
func (s *Store) CompareAndSetQuantity(
	c context.Context,
	variantID string,
	expected int,
	quantity int,
) bool {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartStore CompareAndSetQuantity").
		Str(constants.KEY_VARIANT_ID, variantID).
		Int("expected", expected).
		Int(constants.KEY_QUANTITY, quantity).
		Logger()

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.state.Items[variantID]
	if !ok || existing.Quantity != expected {
		logger.Debug().Msg("line changed since it was read, skipping")
		return false
	}
	if !s.setQuantity(variantID, quantity) {
		return false
	}
	s.commit(logger.WithContext(c))
	return true
}

// CompareAndRemove removes a line only if it still holds expected.
func (s *Store) CompareAndRemove(c context.Context, variantID string, expected int) bool {
	return s.CompareAndSetQuantity(c, variantID, expected, 0)
}

func (s *Store) setQuantity(variantID string, quantity int) bool {
	existing, ok := s.state.Items[variantID]
	if !ok {
		return false
	}
	if quantity <= 0 {
		delete(s.state.Items, variantID)
		delete(s.ceilings, variantID)
		return true
	}
	if existing.Quantity == quantity {
		return false
	}
	existing.Quantity = quantity
	s.state.Items[variantID] = existing
	return true
}

// ClearCart empties the cart and forgets the remote checkout.
func (s *Store) ClearCart(c context.Context) {
	c, span := otel.Tracer.Start(c, "CartStore ClearCart")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(constants.KEY_TAG, "CartStore ClearCart").Logger()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Items: map[string]LineItem{}, BoundUserID: s.state.BoundUserID}
	s.ceilings = map[string]int{}
	s.notices = nil
	s.commit(logger.WithContext(c))
	logger.Info().Msg("cleared cart")
}

func (s *Store) replaceItems(c context.Context, items []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make(map[string]LineItem, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.VariantID == "" {
			continue
		}
		replaced[item.VariantID] = item
	}
	s.state.Items = replaced
	s.ceilings = map[string]int{}
	s.state.RemoteCartID = ""
	s.state.CheckoutURL = ""
	s.commit(c)
}

// CreateCheckout opens a checkout session for the current lines and remembers its url.
// Only variant ids and quantities are sent. The returned Checkout carries the exact lines
// the session was opened for.
func (s *Store) CreateCheckout(c context.Context, buyer *commerce.BuyerIdentity) (Checkout, error) {
	c, span := otel.Tracer.Start(c, "CartStore CreateCheckout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartStore CreateCheckout").
		Logger()

	s.mu.Lock()
	if len(s.state.Items) == 0 {
		s.mu.Unlock()
		err := fmt.Errorf("failed creating checkout with error=%w", ErrEmptyCart)
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return Checkout{}, err
	}
	items := sortedItems(s.state.Items)
	subtotal, err := Subtotal(items)
	if err != nil {
		s.mu.Unlock()
		err = fmt.Errorf("failed creating checkout with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Checkout{}, err
	}
	lines := make([]commerce.CartLineInput, 0, len(items))
	for _, item := range items {
		lines = append(lines, commerce.CartLineInput{
			MerchandiseID: item.VariantID,
			Quantity:      item.Quantity,
		})
	}
	s.state.IsLoading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.state.IsLoading = false
		s.mu.Unlock()
	}()

	logger = logger.With().
		Any(constants.KEY_CART_ITEMS, lines).
		Str(constants.KEY_PROCESS, "creating remote checkout").
		Logger()
	logger.Info().Msg("creating remote checkout")
	result, err := s.creator.CartCreate(logger.WithContext(c), lines, buyer)
	if err != nil {
		err = fmt.Errorf("failed creating remote checkout with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Checkout{}, err
	}
	if len(result.UserErrors) > 0 {
		err = UserErrors(result.UserErrors)
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg("checkout rejected by commerce platform")
		return Checkout{}, err
	}
	if result.CheckoutURL == "" {
		err = fmt.Errorf("failed creating remote checkout with error=%w", ErrNoCheckoutURL)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Checkout{}, err
	}
	logger.Info().
		Str(constants.KEY_CART_ID, result.CartID).
		Str(constants.KEY_CHECKOUT_URL, result.CheckoutURL).
		Msg("created remote checkout")

	s.mu.Lock()
	s.state.RemoteCartID = result.CartID
	s.state.CheckoutURL = result.CheckoutURL
	s.persist(logger.WithContext(c))
	s.mu.Unlock()

	return Checkout{
		CartID:   result.CartID,
		URL:      result.CheckoutURL,
		Items:    items,
		Subtotal: subtotal,
	}, nil
}

// commit persists the state and hands the lines to the mirror. Callers hold s.mu.
func (s *Store) commit(c context.Context) {
	s.persist(c)
	if s.mirror != nil {
		s.mirror.Enqueue(c, sortedItems(s.state.Items))
	}
}

func (s *Store) persist(c context.Context) {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_PROCESS, "persisting cart").
		Str(constants.KEY_STORAGE_KEY, s.key).
		Logger()
	if err := s.storage.Save(c, s.key, s.state); err != nil {
		logger.Error().Err(err).Msg("failed persisting cart")
	}
}

// BeginEdit marks variantID as being edited. ok is false when another edit holds it;
// otherwise release must be called once the edit completes.
func (s *Store) BeginEdit(variantID string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[variantID]; busy {
		return nil, false
	}
	s.inFlight[variantID] = struct{}{}
	once := sync.Once{}
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.inFlight, variantID)
			s.mu.Unlock()
		})
	}, true
}

func (s *Store) Editing(variantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inFlight[variantID]
	return busy
}

func (s *Store) AddNotice(variantID string, noticeType NoticeType, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{
		VariantID: variantID,
		Message:   message,
		Type:      noticeType,
		ExpiresAt: s.now().Add(s.noticeTTL),
	})
}

// Notices returns the notices that have not expired yet.
func (s *Store) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	live := s.notices[:0]
	for _, n := range s.notices {
		if now.Before(n.ExpiresAt) {
			live = append(live, n)
		}
	}
	s.notices = live
	notices := make([]Notice, len(live))
	copy(notices, live)
	return notices
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Item(variantID string) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.state.Items[variantID]
	return item, ok
}

// Items returns the lines ordered by variant id.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedItems(s.state.Items)
}

func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, item := range s.state.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal sums every line. A cart mixing currencies has no subtotal.
func (s *Store) Subtotal() (commerce.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Subtotal(sortedItems(s.state.Items))
}

func sortedItems(items map[string]LineItem) []LineItem {
	sorted := make([]LineItem, 0, len(items))
	for _, item := range items {
		sorted = append(sorted, item)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VariantID < sorted[j].VariantID })
	return sorted
}
