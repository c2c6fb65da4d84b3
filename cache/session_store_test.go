package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wabaconnect/models"
)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	n := int64(0)
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	store := NewSessionStore(rdb)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	session := models.PendingSignupSession{
		SessionID: "abc",
		TenantID:  7,
		CreatedAt: now,
		ExpiresAt: now.Add(models.SIGNUP_SESSION_TTL),
	}
	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, models.SIGNUP_SESSION_TTL, rdb.ttls["waba_signup:abc"])

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.TenantID)
	assert.True(t, got.ExpiresAt.Equal(session.ExpiresAt))

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Close())
	assert.True(t, rdb.closed)
}

func TestSessionStoreExpiredSessionGetsDefaultTTL(t *testing.T) {
	rdb := newFakeRedis()
	store := NewSessionStore(rdb)

	err := store.Save(context.Background(), models.PendingSignupSession{SessionID: "old", ExpiresAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, models.SIGNUP_SESSION_TTL, rdb.ttls["waba_signup:old"])
}

func TestSessionStoreSaveError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.setErr = errors.New("connection refused")
	store := NewSessionStore(rdb)

	err := store.Save(context.Background(), models.PendingSignupSession{SessionID: "x"})
	assert.ErrorContains(t, err, "connection refused")
}
