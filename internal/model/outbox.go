package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

// Outbox 状态
const (
	OutboxPending int8 = 1
	OutboxSent    int8 = 2
	OutboxFailed  int8 = 3

	outboxMaxRetry = 10
)

// Outbox 对应 outbox 表（事件投递表）
// 引擎在事务提交后写入，由 worker 扫描投递到 RocketMQ
type Outbox struct {
	ID         int64  `db:"id"`
	Topic      string `db:"topic"`
	EventName  string `db:"event_name"`
	BizKey     string `db:"biz_key"`
	Payload    string `db:"payload"`
	Status     int8   `db:"status"`
	RetryCount int    `db:"retry_count"`
	LastError  string `db:"last_error"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

// Insert 插入一条待发送记录
func (o *Outbox) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	o.Status, o.CreatedAt, o.UpdatedAt = OutboxPending, now, now
	res, err := exec.ExecContext(ctx,
		"INSERT INTO outbox (topic, event_name, biz_key, payload, status, retry_count, last_error, created_at, updated_at) VALUES (?, ?, ?, ?, ?, 0, '', ?, ?)",
		o.Topic, o.EventName, o.BizKey, o.Payload, o.Status, now, now)
	if err != nil {
		return err
	}
	o.ID, _ = res.LastInsertId()
	return nil
}

// OutboxRow 调度器扫描用的轻量投影
type OutboxRow struct {
	ID        int64  `db:"id"`
	Topic     string `db:"topic"`
	EventName string `db:"event_name"`
	BizKey    string `db:"biz_key"`
	Payload   string `db:"payload"`
}

// ListOutboxPending 查询待发送记录，超过重试上限的不再返回
func ListOutboxPending(ctx context.Context, exec sqlx.QueryerContext, limit int) ([]OutboxRow, error) {
	var list []OutboxRow
	err := sqlx.SelectContext(ctx, exec, &list,
		"SELECT id, topic, event_name, biz_key, payload FROM outbox WHERE status = ? AND retry_count < ? ORDER BY id ASC LIMIT ?",
		OutboxPending, outboxMaxRetry, limit)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// MarkOutboxSent 标记为已发送
func MarkOutboxSent(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	_, err := exec.ExecContext(ctx, "UPDATE outbox SET status = ?, updated_at = ? WHERE id = ?",
		OutboxSent, time.Now().UnixMilli(), id)
	return err
}

// MarkOutboxFailed 记录失败；最后一次重试失败后置为永久失败
func MarkOutboxFailed(ctx context.Context, exec sqlx.ExtContext, id int64, lastError string) error {
	_, err := exec.ExecContext(ctx,
		"UPDATE outbox SET status = CASE WHEN retry_count >= ? THEN ? ELSE ? END, last_error = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?",
		outboxMaxRetry-1, OutboxFailed, OutboxPending, lastError, time.Now().UnixMilli(), id)
	return err
}

// CreateOutbox 序列化 payload 并写入 outbox
func CreateOutbox(ctx context.Context, exec sqlx.ExtContext, topic, eventName, bizKey string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	o := &Outbox{Topic: topic, EventName: eventName, BizKey: bizKey, Payload: string(b)}
	return o.Insert(ctx, exec)
}
