// Package event 回合事件广播；发布在事务提交之后进行，失败只记录日志不影响业务结果
package event

import (
	"context"
	"encoding/json"
	"time"

	log "mpg-server/common/logger"

	"go.uber.org/zap"
)

// 事件名
const (
	MultiplayerGameAction  = "multiplayer_game_action"
	MultiplayerGameSettled = "multiplayer_game_settled"
	GamePlayed             = "game_played"
)

// Sink 事件出口
type Sink interface {
	Publish(ctx context.Context, name string, payload any)
}

// Envelope 统一的事件外层结构
type Envelope struct {
	Name      string `json:"name"`
	TraceID   string `json:"trace_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload"`
}

func NewEnvelope(ctx context.Context, name string, payload any) Envelope {
	return Envelope{
		Name:      name,
		TraceID:   log.GetTraceID(ctx),
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

func (e Envelope) Marshal() ([]byte, error) { return json.Marshal(e) }

// LogSink 仅写日志
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, name string, payload any) {
	log.InfoCtx(ctx, "event published", zap.String("event", name), zap.Any("payload", payload))
}

// Multi 扇出到多个 Sink
type Multi []Sink

func (m Multi) Publish(ctx context.Context, name string, payload any) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, name, payload)
		}
	}
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Publish(context.Context, string, any) {}
