package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"mpg-server/internal/config"
	"mpg-server/internal/fairness"
	"mpg-server/internal/game"
	"mpg-server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrOpenConcurrentCreatesSingleRound(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	ids := make([]int64, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := h.engine.GetOrOpen(context.Background(), fakeType, 0)
			if assert.NoError(t, err) {
				ids[i] = r.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, h.store.RoundsOf(fakeType), 1)
}

func TestGetOrOpenTimes(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now().UnixMilli()

	r, err := h.engine.GetOrOpen(context.Background(), fakeType, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, now+2000, r.StartTime)
	assert.Equal(t, now+2000+30_000, r.EndTime)
	assert.False(t, r.HasNext())

	// 未开始的回合同样视为当前回合
	again, err := h.engine.GetOrOpen(context.Background(), fakeType, 0)
	require.NoError(t, err)
	assert.Equal(t, r.ID, again.ID)
}

func TestGetOrOpenUnknownGame(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.GetOrOpen(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, game.ErrGameNotRegistered)
	assert.True(t, IsValidation(err))
}

func TestCommitmentPersistedWithRound(t *testing.T) {
	h := newHarness(t)
	r := h.open(t)

	c, err := h.store.GetCommitment(context.Background(), r.CommitmentID)
	require.NoError(t, err)
	assert.NotEmpty(t, c.Secret)
	assert.Equal(t, fairness.Commit(c.ServerSeed, c.Secret), c.SecretHash)
	assert.NoError(t, fairness.Verify(h.game, c))
	assert.Less(t, c.ID, r.ID)
}

func TestGameConfigOverridesDuration(t *testing.T) {
	h := newHarness(t)
	h.engine.gameCfg = func(string) config.GameConfig {
		return config.GameConfig{DurationSec: 10, IntervalSec: 1, OpenDelaySec: 3}
	}
	now := h.clock.Now().UnixMilli()

	r, err := h.engine.Current(context.Background(), fakeType)
	require.NoError(t, err)
	assert.Equal(t, now+3000, r.StartTime)
	assert.Equal(t, now+13_000, r.EndTime)
}

type mapCache struct {
	mu     sync.Mutex
	rounds map[string]*model.Round
	gets   int
	evicts int
}

func (c *mapCache) Get(ctx context.Context, gameType string) (*model.Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.rounds[gameType], nil
}

func (c *mapCache) Set(ctx context.Context, r *model.Round, nowMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rounds[r.GameType] = r.Clone()
	return nil
}

func (c *mapCache) Invalidate(ctx context.Context, gameType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evicts++
	delete(c.rounds, gameType)
	return nil
}

func (c *mapCache) cached(gameType string) *model.Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rounds[gameType]
}

func TestCurrentUsesCache(t *testing.T) {
	h := newHarness(t)
	cache := &mapCache{rounds: map[string]*model.Round{}}
	h.engine.cache = cache

	r, err := h.engine.Current(context.Background(), fakeType)
	require.NoError(t, err)
	require.Contains(t, cache.rounds, fakeType)

	cached := cache.rounds[fakeType]
	cached.StartTime = -1 // 命中缓存时直接返回缓存内容
	got, err := h.engine.Current(context.Background(), fakeType)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, int64(-1), got.StartTime)

	// 缓存中的回合已结束时回源
	h.clock.Advance(31 * time.Second)
	next, err := h.engine.Current(context.Background(), fakeType)
	require.NoError(t, err)
	assert.NotEqual(t, r.ID, next.ID)
}

func TestEnsureOpen(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.EnsureOpen(context.Background()))
	assert.Len(t, h.store.RoundsOf(fakeType), 1)
}
