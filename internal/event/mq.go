package event

import (
	"context"

	log "mpg-server/common/logger"
	"mpg-server/internal/infra/rocketmq"

	"go.uber.org/zap"
)

// MQSink 直接投递到 RocketMQ（不经 outbox，允许丢失）
type MQSink struct {
	pub   rocketmq.Publisher
	topic string
}

func NewMQSink(pub rocketmq.Publisher, topic string) *MQSink {
	return &MQSink{pub: pub, topic: topic}
}

func (s *MQSink) Publish(ctx context.Context, name string, payload any) {
	body, err := NewEnvelope(ctx, name, payload).Marshal()
	if err != nil {
		log.WarnCtx(ctx, "mq sink marshal failed", zap.String("event", name), zap.Error(err))
		return
	}
	if err := s.pub.Publish(context.WithoutCancel(ctx), s.topic, name, body); err != nil {
		log.WarnCtx(ctx, "mq sink publish failed", zap.String("event", name), zap.String("topic", s.topic), zap.Error(err))
	}
}
