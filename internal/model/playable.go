package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Playable 对应 playables 表：各游戏自定义的可变状态（JSON），引擎不解析
// is_completed: 结算时置 1，之后拒绝任何玩家动作
type Playable struct {
	ID          int64  `db:"id"`
	GameType    string `db:"game_type"`
	State       []byte `db:"state"`
	IsCompleted bool   `db:"is_completed"`
	UpdatedAt   int64  `db:"updated_at"`
}

// Clone 深拷贝（State 独立）
func (p *Playable) Clone() *Playable {
	c := *p
	c.State = append([]byte(nil), p.State...)
	return &c
}

// InsertPlayable 插入游戏状态并回填自增ID
func InsertPlayable(ctx context.Context, exec sqlx.ExtContext, p *Playable) error {
	p.UpdatedAt = time.Now().UnixMilli()
	res, err := exec.ExecContext(ctx,
		"INSERT INTO playables (game_type, state, is_completed, updated_at) VALUES (?, ?, ?, ?)",
		p.GameType, p.State, p.IsCompleted, p.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// GetPlayableForUpdate 按ID加锁读取游戏状态，需要在事务中调用
func GetPlayableForUpdate(ctx context.Context, exec sqlx.QueryerContext, id int64) (*Playable, error) {
	var p Playable
	sqlStr := "SELECT id, game_type, state, is_completed, updated_at FROM playables WHERE id = ? FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &p, sqlStr, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePlayable 保存游戏状态与完成标记
func UpdatePlayable(ctx context.Context, exec sqlx.ExtContext, p *Playable) error {
	p.UpdatedAt = time.Now().UnixMilli()
	_, err := exec.ExecContext(ctx,
		"UPDATE playables SET state = ?, is_completed = ?, updated_at = ? WHERE id = ?",
		p.State, p.IsCompleted, p.UpdatedAt, p.ID)
	return err
}

// GetPlayable 按ID读取游戏状态（不加锁）
func GetPlayable(ctx context.Context, exec sqlx.QueryerContext, id int64) (*Playable, error) {
	var p Playable
	sqlStr := "SELECT id, game_type, state, is_completed, updated_at FROM playables WHERE id = ?"
	if err := sqlx.GetContext(ctx, exec, &p, sqlStr, id); err != nil {
		return nil, err
	}
	return &p, nil
}
