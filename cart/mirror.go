package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
)

const (
	resultSuccess    = "success"
	resultFailure    = "failure"
	resultSuperseded = "superseded"
)

var mirrorWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "storefront",
	Subsystem: "cart",
	Name:      "mirror_writes_total",
	Help:      "Saved cart writes by result.",
}, []string{"result"})

var errSuperseded = errors.New("snapshot superseded by a newer one")

// RemoteCart is the saved cart of a signed-in user.
type RemoteCart interface {
	ReplaceCartItems(c context.Context, userID uuid.UUID, items []LineItem) error
	FindCartItems(c context.Context, userID uuid.UUID) ([]LineItem, error)
	DeleteCartItems(c context.Context, userID uuid.UUID) error
}

// Mirror copies the latest cart lines to the user's saved cart. Bursts of mutations within
// the debounce window collapse into one write; a write that keeps failing is retried with
// exponential backoff and then dropped, leaving the error in LastError.
type Mirror struct {
	userID     uuid.UUID
	remote     RemoteCart
	debounce   time.Duration
	maxRetries uint64
	retryAfter time.Duration
	c          context.Context

	mu         sync.Mutex
	timer      *time.Timer
	pending    []LineItem
	hasPending bool
	generation uint64
	lastErr    error
	closed     bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewMirror(c context.Context, userID uuid.UUID, remote RemoteCart, cfg config.Cart) *Mirror {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_APP_NAME, constants.APP_CART_MIRROR).
		Str(constants.KEY_USER_ID, userID.String()).
		Logger()

	m := &Mirror{
		userID:     userID,
		remote:     remote,
		debounce:   cfg.MirrorDebounce,
		maxRetries: cfg.MirrorMaxRetries,
		retryAfter: cfg.MirrorRetryInterval,
		c:          logger.WithContext(context.WithoutCancel(c)),
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mirror) UserID() uuid.UUID {
	return m.userID
}

// Enqueue replaces the pending snapshot with items and restarts the debounce window.
func (m *Mirror) Enqueue(c context.Context, items []LineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.pending = items
	m.hasPending = true
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.signal)
	zerolog.Ctx(c).Trace().Uint64("generation", m.generation).Msg("enqueued cart mirror")
}

func (m *Mirror) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mirror) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Pending reports whether a snapshot is waiting to be written.
func (m *Mirror) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasPending
}

// Close writes any pending snapshot immediately and stops the worker.
func (m *Mirror) Close(c context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()

	close(m.stop)
	select {
	case <-m.done:
		return m.LastError()
	case <-c.Done():
		return c.Err()
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for {
		select {
		case <-m.wake:
			m.drain()
		case <-m.stop:
			m.drain()
			return
		}
	}
}

func (m *Mirror) drain() {
	m.mu.Lock()
	if !m.hasPending {
		m.mu.Unlock()
		return
	}
	items := m.pending
	generation := m.generation
	m.pending = nil
	m.hasPending = false
	m.mu.Unlock()

	err := m.write(items, generation)
	result := resultSuccess
	switch {
	case errors.Is(err, errSuperseded):
		result = resultSuperseded
		err = nil
	case err != nil:
		result = resultFailure
	}
	mirrorWrites.WithLabelValues(result).Inc()

	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Mirror) write(items []LineItem, generation uint64) error {
	c, span := otel.Tracer.Start(m.c, "CartMirror Write")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartMirror Write").
		Int(constants.KEY_CART_ITEMS, len(items)).
		Uint64("generation", generation).
		Str(constants.KEY_PROCESS, "writing saved cart").
		Logger()

	attempt := 0
	operation := func() error {
		attempt++
		m.mu.Lock()
		superseded := m.generation != generation
		m.mu.Unlock()
		if superseded {
			return backoff.Permanent(errSuperseded)
		}
		return m.remote.ReplaceCartItems(c, m.userID, items)
	}
	exponential := backoff.NewExponentialBackOff()
	if m.retryAfter > 0 {
		exponential.InitialInterval = m.retryAfter
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(exponential, m.maxRetries), c)

	logger.Info().Msg("writing saved cart")
	err := backoff.RetryNotify(operation, policy, func(err error, next time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retryIn", next).Msg("retrying saved cart write")
	})
	if errors.Is(err, errSuperseded) {
		logger.Debug().Msg("saved cart write superseded")
		return errSuperseded
	}
	if err != nil {
		err = fmt.Errorf("failed writing saved cart after %d attempts with error=%w", attempt, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Int("attempt", attempt).Msg("wrote saved cart")

	return nil
}
