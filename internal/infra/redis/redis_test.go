package redis

import (
	"context"
	"testing"
	"time"

	"mpg-server/internal/model"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRoundCache(t *testing.T) {
	mr, c := newTestClient(t)
	cache := NewRoundCache(c)
	ctx := context.Background()

	got, err := cache.Get(ctx, "roulette")
	require.NoError(t, err)
	assert.Nil(t, got)

	r := &model.Round{ID: 3, GameType: "roulette", StartTime: 1000, EndTime: 31000}
	require.NoError(t, cache.Set(ctx, r, 1000))
	assert.Equal(t, 30*time.Second, mr.TTL(CurrentRoundKey("roulette")))

	got, err = cache.Get(ctx, "roulette")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, int64(31000), got.EndTime)

	require.NoError(t, cache.Set(ctx, &model.Round{ID: 4, GameType: "dice", EndTime: 10}, 10))
	assert.False(t, mr.Exists(CurrentRoundKey("dice")))

	require.NoError(t, cache.Invalidate(ctx, "roulette"))
	got, err = cache.Get(ctx, "roulette")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTryLock(t *testing.T) {
	mr, c := newTestClient(t)
	ctx := context.Background()
	key := SettleLockKey(7)

	release, ok, err := TryLock(ctx, c, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = TryLock(ctx, c, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists(key))

	_, ok, err = TryLock(ctx, c, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	mr, c := newTestClient(t)
	key := SettleLockKey(8)

	release, ok, err := TryLock(context.Background(), c, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, mr.Set(key, "someone-else"))
	release()
	v, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "mpg:round:current:roulette", CurrentRoundKey("roulette"))
	assert.Equal(t, "mpg:settle:lock:42", SettleLockKey(42))
	assert.Equal(t, "mpg:events:game_played", EventChannel("game_played"))
}
