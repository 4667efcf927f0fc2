package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client)
	store.now = func() time.Time { return fixedNow }
	return store, mr
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	session := &Session{
		ID:      "abc",
		AgentID: 11,
		Data:    map[string]string{"subject": "idp|11"},
		Expires: fixedNow.Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, session))

	assert.True(t, mr.Exists("sess:abc"))
	assert.Equal(t, time.Hour, mr.TTL("sess:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.AgentID)
	assert.Equal(t, "idp|11", got.Data["subject"])
	assert.True(t, session.Expires.Equal(got.Expires))

	n, err := store.Purge(ctx, fixedNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Destroy(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, &Session{ID: "short", Expires: fixedNow.Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_SaveExpiredDeletes(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, &Session{ID: "s", Expires: fixedNow.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, &Session{ID: "s", Expires: fixedNow.Add(-time.Second)}))
	assert.False(t, mr.Exists("sess:s"))
}

func TestRedisStore_ClockPastExpiry(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	require.NoError(t, store.Save(ctx, &Session{ID: "s", Expires: fixedNow.Add(time.Minute)}))
	store.now = func() time.Time { return fixedNow.Add(time.Hour) }

	_, err := store.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
