// Package session owns the per-browser-session cart, wishlist and checkout services.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Alturino/storefront/cart"
	"github.com/Alturino/storefront/checkout"
	"github.com/Alturino/storefront/internal"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/storage"
	"github.com/Alturino/storefront/inventory"
	"github.com/Alturino/storefront/wishlist"
)

type Commerce interface {
	cart.CheckoutCreator
	inventory.ProductFetcher
}

type Session struct {
	ID        string
	Cart      *cart.Store
	Wishlist  *wishlist.Store
	Inventory *inventory.Validator
	Checkout  *checkout.Orchestrator

	// binding serializes sign in and sign out of one session.
	binding  sync.Mutex
	mu       sync.Mutex
	lastSeen time.Time
}

// UserID is the user whose saved cart the session mirrors, uuid.Nil for guests. The
// binding is stored with the cart so it survives eviction and restarts.
func (s *Session) UserID() uuid.UUID {
	return s.Cart.BoundUser()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

type Registry struct {
	storage  storage.Storage
	commerce Commerce
	remote   cart.RemoteCart
	profiles checkout.PhoneStore
	orders   checkout.OrderRecorder
	cfg      config.Cart
	now      func() time.Time

	group    singleflight.Group
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds sessions on demand. remote, profiles and orders may be nil, in
// which case signed-in users are treated like guests.
func NewRegistry(
	storage storage.Storage,
	commerce Commerce,
	remote cart.RemoteCart,
	profiles checkout.PhoneStore,
	orders checkout.OrderRecorder,
	cfg config.Cart,
) *Registry {
	return &Registry{
		storage:  storage,
		commerce: commerce,
		remote:   remote,
		profiles: profiles,
		orders:   orders,
		cfg:      cfg,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

// Resolve returns the session of the request, creating and rehydrating it on first use,
// and keeps its saved cart binding in line with the signed-in user of c.
func (r *Registry) Resolve(c context.Context) (*Session, error) {
	c, span := otel.Tracer.Start(c, "SessionRegistry Resolve")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(constants.KEY_TAG, "SessionRegistry Resolve").Logger()

	sessionId := internal.SessionIdFromContext(c)
	if sessionId == "" {
		err := fmt.Errorf("failed resolving session with error=%w", inErrors.ErrInvalidSession)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	s, err := r.get(logger.WithContext(c), sessionId)
	if err != nil {
		err = fmt.Errorf("failed resolving session with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	userId, signedIn := internal.UserIdFromContext(c)
	s.binding.Lock()
	defer s.binding.Unlock()
	current := s.UserID()
	switch {
	case signedIn && userId == current:
		if s.Cart.Mirror() == nil {
			r.resume(logger.WithContext(c), s, userId)
		}
	case signedIn:
		if current != uuid.Nil {
			logger.Info().Str(constants.KEY_USER_ID, current.String()).Msg("session changed user, dropping previous cart")
			r.signOut(logger.WithContext(c), s)
			s.Cart.ClearCart(logger.WithContext(c))
		}
		if _, err := r.signIn(logger.WithContext(c), s, userId); err != nil {
			logger.Warn().Err(err).Msg("continuing with device cart")
		}
	case current != uuid.Nil:
		r.signOut(logger.WithContext(c), s)
	}

	return s, nil
}

// resume re-attaches the mirror of a rehydrated session that is still bound to userID.
// The device cart stays authoritative, so it is queued for the saved cart instead of
// being synced again.
func (r *Registry) resume(c context.Context, s *Session, userID uuid.UUID) {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_SESSION_ID, s.ID).
		Str(constants.KEY_USER_ID, userID.String()).
		Str(constants.KEY_PROCESS, "resuming saved cart mirror").
		Logger()

	if r.remote == nil {
		return
	}
	mirror := cart.NewMirror(logger.WithContext(c), userID, r.remote, r.cfg)
	s.Cart.AttachMirror(logger.WithContext(c), mirror)
	mirror.Enqueue(logger.WithContext(c), s.Cart.Items())
	logger.Info().Msg("resumed saved cart mirror")
}

func (r *Registry) get(c context.Context, sessionId string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionId]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
		return s, nil
	}

	v, err, _ := r.group.Do(sessionId, func() (interface{}, error) {
		r.mu.Lock()
		s, ok := r.sessions[sessionId]
		r.mu.Unlock()
		if ok {
			return s, nil
		}
		s, err := r.create(c, sessionId)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[sessionId] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s = v.(*Session)
	s.touch(r.now())
	return s, nil
}

func (r *Registry) create(c context.Context, sessionId string) (*Session, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_SESSION_ID, sessionId).
		Str(constants.KEY_PROCESS, "creating session").
		Logger()

	logger.Info().Msg("creating session")
	cartStore := cart.NewStore(sessionId, r.storage, r.commerce, r.cfg)
	if err := cartStore.Initialize(logger.WithContext(c)); err != nil {
		return nil, err
	}
	wishlistStore := wishlist.NewStore(sessionId, r.storage)
	if err := wishlistStore.Initialize(logger.WithContext(c)); err != nil {
		return nil, err
	}
	validator := inventory.NewValidator(cartStore, r.commerce)

	var saved checkout.SavedCart
	if r.remote != nil {
		saved = r.remote
	}
	s := &Session{
		ID:        sessionId,
		Cart:      cartStore,
		Wishlist:  wishlistStore,
		Inventory: validator,
		Checkout:  checkout.NewOrchestrator(cartStore, validator, r.profiles, r.orders, saved),
	}
	logger.Info().Msg("created session")

	return s, nil
}

// SignIn reconciles the session's cart with the saved cart of userID and mirrors every
// later change to it. A failed reconciliation leaves the session unbound so the next
// request tries again.
func (r *Registry) SignIn(c context.Context, s *Session, userID uuid.UUID) (cart.SyncOutcome, error) {
	s.binding.Lock()
	defer s.binding.Unlock()
	return r.signIn(c, s, userID)
}

func (r *Registry) signIn(c context.Context, s *Session, userID uuid.UUID) (cart.SyncOutcome, error) {
	c, span := otel.Tracer.Start(c, "SessionRegistry SignIn")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "SessionRegistry SignIn").
		Str(constants.KEY_SESSION_ID, s.ID).
		Str(constants.KEY_USER_ID, userID.String()).
		Logger()

	if r.remote == nil {
		logger.Debug().Msg("no saved cart backend")
		return cart.SyncNothing, nil
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "syncing saved cart").Logger()
	logger.Info().Msg("syncing saved cart")
	outcome, err := s.Cart.SyncOnSignIn(logger.WithContext(c), userID, r.remote)
	if err != nil {
		err = fmt.Errorf("failed syncing saved cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return outcome, err
	}
	logger.Info().Str("outcome", string(outcome)).Msg("synced saved cart")

	if mirror := s.Cart.Mirror(); mirror == nil || mirror.UserID() != userID {
		s.Cart.AttachMirror(logger.WithContext(c), cart.NewMirror(logger.WithContext(c), userID, r.remote, r.cfg))
	}
	s.Cart.Bind(logger.WithContext(c), userID)

	return outcome, nil
}

// SignOut stops mirroring, flushing whatever write is still pending.
func (r *Registry) SignOut(c context.Context, s *Session) {
	s.binding.Lock()
	defer s.binding.Unlock()
	r.signOut(c, s)
}

func (r *Registry) signOut(c context.Context, s *Session) {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "SessionRegistry SignOut").
		Str(constants.KEY_SESSION_ID, s.ID).
		Logger()

	if err := s.Cart.Shutdown(logger.WithContext(c)); err != nil {
		logger.Warn().Err(err).Msg("last saved cart write failed")
	}
	s.Cart.Bind(logger.WithContext(c), uuid.Nil)
	logger.Info().Msg("signed out")
}

// EvictIdle drops sessions unused for longer than idle. Their state stays in storage and
// is rehydrated on the next request.
func (r *Registry) EvictIdle(c context.Context, idle time.Duration) int {
	logger := zerolog.Ctx(c).With().Str(constants.KEY_TAG, "SessionRegistry EvictIdle").Logger()

	now := r.now()
	evicted := []*Session{}
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleSince(now) > idle {
			evicted = append(evicted, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		if err := s.Cart.Shutdown(logger.WithContext(c)); err != nil {
			logger.Warn().Err(err).Str(constants.KEY_SESSION_ID, s.ID).Msg("last saved cart write failed")
		}
	}
	if len(evicted) > 0 {
		logger.Info().Int("evicted", len(evicted)).Msg("evicted idle sessions")
	}
	return len(evicted)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown flushes the saved cart writes of every session.
func (r *Registry) Shutdown(c context.Context) error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = map[string]*Session{}
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Cart.Shutdown(c); err != nil {
			errs = append(errs, fmt.Errorf("failed flushing session=%s with error=%w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}
