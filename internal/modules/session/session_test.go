package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isuride/internal/testutil"
	"isuride/internal/types"
)

func newCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, ttl), mr
}

func TestCache_TTLAndFlush(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, Principal{Role: RoleUser, ID: "u1"}, "tok"))
	id, err := c.Get(ctx, RoleUser, "tok")
	require.NoError(t, err)
	assert.Equal(t, types.ID("u1"), id)

	id, err = c.Get(ctx, RoleChair, "tok")
	require.NoError(t, err)
	assert.Empty(t, id, "roles do not share tokens")

	mr.FastForward(2 * time.Minute)
	id, err = c.Get(ctx, RoleUser, "tok")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, c.Set(ctx, Principal{Role: RoleOwner, ID: "o1"}, "a"))
	require.NoError(t, c.Set(ctx, Principal{Role: RoleChair, ID: "c1"}, "b"))
	require.NoError(t, mr.Set("unrelated", "keep"))
	require.NoError(t, c.Flush(ctx))
	assert.False(t, mr.Exists(cacheKey(RoleOwner, "a")))
	assert.False(t, mr.Exists(cacheKey(RoleChair, "b")))
	assert.True(t, mr.Exists("unrelated"))
}

func TestAuthenticate(t *testing.T) {
	db := testutil.NewPool(t)
	cache, mr := newCache(t, time.Minute)
	svc := NewService(NewStore(db), cache, nil)
	ctx := context.Background()

	userID := testutil.InsertUser(t, db, "session-user")
	var token string
	require.NoError(t, db.QueryRow(ctx, `SELECT access_token FROM users WHERE id = $1`, string(userID)).Scan(&token))

	p, err := svc.Authenticate(ctx, RoleUser, token)
	require.NoError(t, err)
	assert.Equal(t, Principal{Role: RoleUser, ID: userID}, *p)
	assert.True(t, mr.Exists(cacheKey(RoleUser, token)))

	_, err = svc.Authenticate(ctx, RoleOwner, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Authenticate(ctx, RoleUser, "")
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	// A cache outage falls back to the database.
	mr.Close()
	p, err = svc.Authenticate(ctx, RoleUser, token)
	require.NoError(t, err)
	assert.Equal(t, userID, p.ID)
}

func TestAuthenticate_ServesFromCache(t *testing.T) {
	db := testutil.NewPool(t)
	cache, _ := newCache(t, time.Minute)
	svc := NewService(NewStore(db), cache, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, Principal{Role: RoleChair, ID: "cached-chair"}, "warm"))
	p, err := svc.Authenticate(ctx, RoleChair, "warm")
	require.NoError(t, err)
	assert.Equal(t, types.ID("cached-chair"), p.ID)

	require.NoError(t, svc.Flush(ctx))
	_, err = svc.Authenticate(ctx, RoleChair, "warm")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
