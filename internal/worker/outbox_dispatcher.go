package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"mpg-server/common/logger"
	infmq "mpg-server/internal/infra/rocketmq"
	"mpg-server/internal/metrics"
	"mpg-server/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// OutboxStore outbox 表读写
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]model.OutboxRow, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
}

type sqlOutboxStore struct{ db *sqlx.DB }

// NewSQLOutboxStore 基于 MySQL 的 outbox 存储
func NewSQLOutboxStore(db *sqlx.DB) OutboxStore { return &sqlOutboxStore{db: db} }

func (s *sqlOutboxStore) ListPending(ctx context.Context, limit int) ([]model.OutboxRow, error) {
	return model.ListOutboxPending(ctx, s.db, limit)
}

func (s *sqlOutboxStore) MarkSent(ctx context.Context, id int64) error {
	return model.MarkOutboxSent(ctx, s.db, id)
}

func (s *sqlOutboxStore) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return model.MarkOutboxFailed(ctx, s.db, id, lastError)
}

// OutboxDispatcher 周期扫描 outbox，将事件投递到 RocketMQ
// 事件名作为消息 tag，下游按 biz_key 去重
type OutboxDispatcher struct {
	store OutboxStore
	pub   infmq.Publisher
	tick  time.Duration
	batch int
}

func NewOutboxDispatcher(store OutboxStore, pub infmq.Publisher, tick time.Duration, batch int) *OutboxDispatcher {
	if tick <= 0 {
		tick = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &OutboxDispatcher{store: store, pub: pub, tick: tick, batch: batch}
}

// Start 启动分发循环，支持通过 ctx 优雅退出
func (d *OutboxDispatcher) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(d.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 投递一批待发送记录，返回成功条数
func (d *OutboxDispatcher) RunOnce(ctx context.Context) int {
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	rows, err := d.store.ListPending(c, d.batch)
	cancel()
	if err != nil {
		logger.Warn("outbox: list pending failed", zap.Error(err))
		return 0
	}
	sent := 0
	for _, r := range rows {
		if err := d.pub.Publish(ctx, r.Topic, r.EventName, []byte(r.Payload)); err != nil {
			metrics.RecordOutboxRelay("fail")
			logger.Warn("outbox: publish failed", zap.Int64("id", r.ID), zap.String("biz_key", r.BizKey), zap.Error(err))
			if err := d.store.MarkFailed(ctx, r.ID, truncateErr(err)); err != nil {
				logger.Warn("outbox: mark failed failed", zap.Int64("id", r.ID), zap.Error(err))
			}
			continue
		}
		metrics.RecordOutboxRelay("success")
		if err := d.store.MarkSent(ctx, r.ID); err != nil {
			logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func truncateErr(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}
