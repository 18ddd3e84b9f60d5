package event

import (
	"context"
	"time"

	log "mpg-server/common/logger"
	infrds "mpg-server/internal/infra/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// RedisSink 通过 Redis PUBLISH 推送给在线客户端（频道 mpg:events:<name>）
type RedisSink struct {
	rdb *goredis.Client
}

func NewRedisSink(rdb *goredis.Client) *RedisSink { return &RedisSink{rdb: rdb} }

func (s *RedisSink) Publish(ctx context.Context, name string, payload any) {
	if s.rdb == nil {
		return
	}
	body, err := NewEnvelope(ctx, name, payload).Marshal()
	if err != nil {
		log.WarnCtx(ctx, "redis sink marshal failed", zap.String("event", name), zap.Error(err))
		return
	}
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.rdb.Publish(c, infrds.EventChannel(name), body).Err(); err != nil {
		log.WarnCtx(ctx, "redis sink publish failed", zap.String("event", name), zap.Error(err))
	}
}
