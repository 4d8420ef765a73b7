// Package session keeps checkout sessions in Redis so any instance can serve
// any step of a payer's checkout.
//
// Key schema:
//   - checkout:session:{id}        -> JSON session (TTL, refreshed on save)
//   - checkout:lock:{id}           -> submit lock token (SETNX)
//   - checkout:ref:{reference}     -> session id, for callbacks
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rohianon/multicurrency-checkout/pkg/cache"
	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/metrics"
)

const (
	keyPrefix  = "checkout:session:"
	lockPrefix = "checkout:lock:"
	refPrefix  = "checkout:ref:"

	DefaultTTL = 30 * time.Minute
	// lockTTL bounds how long a crashed instance can block a session. A live
	// holder keeps extending it, so a slow gateway call never outlives it.
	lockTTL = 2 * time.Minute
)

type Manager struct {
	cache       *cache.RedisCache
	ttl         time.Duration
	lockRefresh time.Duration
}

func NewManager(c *cache.RedisCache, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{cache: c, ttl: ttl, lockRefresh: lockTTL / 3}
}

// Create starts a session, attaching order when it carries a full deep link.
func (m *Manager) Create(ctx context.Context, order checkout.Order) (*checkout.Session, error) {
	s := checkout.NewSession()
	s.AttachOrder(order)
	if err := m.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*checkout.Session, error) {
	var s checkout.Session
	err := m.cache.GetJSON(ctx, keyPrefix+id, &s)
	if errors.Is(err, cache.ErrMiss) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes s and restarts its TTL.
func (m *Manager) Save(ctx context.Context, s *checkout.Session) error {
	return m.cache.SetJSON(ctx, keyPrefix+s.ID, s, m.ttl)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	existed, err := m.cache.Delete(ctx, keyPrefix+id)
	if err != nil {
		return err
	}
	if !existed {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

// Lock takes the cross-instance submit lock for a session. A held lock is
// reported as ErrSubmissionInProgress. The lock is extended in the background
// until unlock is called.
func (m *Manager) Lock(ctx context.Context, id string) (unlock func(), err error) {
	key := lockPrefix + id
	token := uuid.New().String()
	ok, err := m.cache.SetNX(ctx, key, token, lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrSubmissionInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go m.keepLock(key, id, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// The request context may already be done.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if _, err := m.cache.Release(ctx, key, token); err != nil {
				logger.Warn().Err(err).Str("session_id", id).Msg("Failed to release submit lock")
			}
		})
	}, nil
}

func (m *Manager) keepLock(key, id, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.lockRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			held, err := m.cache.Extend(ctx, key, token, lockTTL)
			cancel()
			if err != nil {
				logger.Warn().Err(err).Str("session_id", id).Msg("Failed to extend submit lock")
				continue
			}
			if !held {
				logger.Warn().Str("session_id", id).Msg("Submit lock lost")
				return
			}
		}
	}
}

// BindReference remembers which session started a payment so the callback
// can find it again.
func (m *Manager) BindReference(ctx context.Context, reference, sessionID string) error {
	return m.cache.Set(ctx, refPrefix+reference, []byte(sessionID), m.ttl)
}

// SessionForReference returns the session bound to reference, or
// ErrSessionNotFound.
func (m *Manager) SessionForReference(ctx context.Context, reference string) (*checkout.Session, error) {
	id, err := m.cache.Get(ctx, refPrefix+reference)
	if errors.Is(err, cache.ErrMiss) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, string(id))
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.cache.Count(ctx, keyPrefix+"*")
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.cache.Ping(ctx)
}

// ReportActive publishes the session count to metrics every interval until
// ctx is done.
func (m *Manager) ReportActive(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if n, err := m.Count(ctx); err == nil {
			metrics.SetActiveSessions(n)
		} else if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Failed to count sessions")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
