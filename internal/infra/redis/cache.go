package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mpg-server/internal/model"

	goredis "github.com/redis/go-redis/v9"
)

// RoundCache 当前开放回合缓存，过期时间与回合结束时间对齐
type RoundCache struct {
	rdb *goredis.Client
}

func NewRoundCache(rdb *goredis.Client) *RoundCache { return &RoundCache{rdb: rdb} }

// Get 未命中返回 (nil, nil)
func (c *RoundCache) Get(ctx context.Context, gameType string) (*model.Round, error) {
	b, err := c.rdb.Get(ctx, CurrentRoundKey(gameType)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r model.Round
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Set 写入缓存，nowMs 之后已结束的回合不缓存
func (c *RoundCache) Set(ctx context.Context, r *model.Round, nowMs int64) error {
	ttl := time.Duration(r.EndTime-nowMs) * time.Millisecond
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, CurrentRoundKey(r.GameType), b, ttl).Err()
}

// Invalidate 删除缓存
func (c *RoundCache) Invalidate(ctx context.Context, gameType string) error {
	return c.rdb.Del(ctx, CurrentRoundKey(gameType)).Err()
}
