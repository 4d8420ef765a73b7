package session

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rohianon/multicurrency-checkout/pkg/cache"
	"github.com/Rohianon/multicurrency-checkout/pkg/checkout"
	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
)

func init() {
	logger.Init("test", "error", false)
}

func newManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewManager(cache.NewFromClient(client), 0), mr
}

func TestCreateAndGet(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()

	order := checkout.ParseOrder(url.Values{
		"order_id": {"ORD-1"},
		"amount":   {"2500"},
		"email":    {"payer@example.com"},
		"currency": {"KES"},
	})

	s, err := m.Create(ctx, order)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusIdle, s.Status)
	assert.Equal(t, DefaultTTL, mr.TTL(keyPrefix+s.ID))

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	require.NotNil(t, got.Order)
	assert.Equal(t, "ORD-1", got.Order.OrderID)
	require.NotNil(t, got.Form)
	assert.Equal(t, "2500", got.Form.Amount)
}

func TestGetExpired(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, checkout.Order{})
	require.NoError(t, err)

	mr.FastForward(DefaultTTL + time.Second)
	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestSaveRefreshesTTL(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, checkout.Order{})
	require.NoError(t, err)

	mr.FastForward(20 * time.Minute)
	s.LastEmail = "payer@example.com"
	require.NoError(t, m.Save(ctx, s))
	assert.Equal(t, DefaultTTL, mr.TTL(keyPrefix+s.ID))
}

func TestDelete(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, checkout.Order{})
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, s.ID))
	assert.ErrorIs(t, m.Delete(ctx, s.ID), apperrors.ErrSessionNotFound)
}

func TestLock(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "s1")
	require.NoError(t, err)

	_, err = m.Lock(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrSubmissionInProgress)

	unlock()
	assert.False(t, mr.Exists(lockPrefix+"s1"))

	unlock2, err := m.Lock(ctx, "s1")
	require.NoError(t, err)
	unlock2()
}

func TestLockExpires(t *testing.T) {
	m, mr := newManager(t)
	ctx := context.Background()

	stale, err := m.Lock(ctx, "s1")
	require.NoError(t, err)
	defer stale()

	mr.FastForward(lockTTL)
	unlock, err := m.Lock(ctx, "s1")
	require.NoError(t, err)
	unlock()
}

func TestLockExtendedWhileHeld(t *testing.T) {
	m, mr := newManager(t)
	m.lockRefresh = 10 * time.Millisecond
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "s1")
	require.NoError(t, err)

	mr.FastForward(lockTTL - time.Second)
	require.Eventually(t, func() bool {
		return mr.TTL(lockPrefix+"s1") > lockTTL/2
	}, time.Second, 5*time.Millisecond)

	unlock()
	unlock()
	assert.False(t, mr.Exists(lockPrefix+"s1"))
}

func TestReferenceBinding(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, checkout.Order{})
	require.NoError(t, err)
	require.NoError(t, m.BindReference(ctx, "ref_1", s.ID))

	got, err := m.SessionForReference(ctx, "ref_1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = m.SessionForReference(ctx, "ref_unknown")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestCount(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.Create(ctx, checkout.Order{})
		require.NoError(t, err)
	}
	unlock, err := m.Lock(ctx, "x")
	require.NoError(t, err)
	defer unlock()

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, m.Ping(ctx))
}
