package event

import (
	"context"

	log "mpg-server/common/logger"
	"mpg-server/internal/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// OutboxSink 写入 outbox 表，由 worker.OutboxDispatcher 可靠投递到 RocketMQ
type OutboxSink struct {
	db    *sqlx.DB
	topic string
}

func NewOutboxSink(db *sqlx.DB, topic string) *OutboxSink {
	return &OutboxSink{db: db, topic: topic}
}

// BizKeyer 事件载荷可提供业务键用于下游去重
type BizKeyer interface {
	BizKey() string
}

func (s *OutboxSink) Publish(ctx context.Context, name string, payload any) {
	bizKey := ""
	if k, ok := payload.(BizKeyer); ok {
		bizKey = k.BizKey()
	}
	if bizKey == "" {
		bizKey = name + ":" + uuid.NewString()
	}
	env := NewEnvelope(ctx, name, payload)
	if err := model.CreateOutbox(context.WithoutCancel(ctx), s.db, s.topic, name, bizKey, env); err != nil {
		log.ErrorCtx(ctx, "outbox insert failed", zap.String("event", name), zap.String("biz_key", bizKey), zap.Error(err))
	}
}
