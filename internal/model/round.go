package model

import (
	"context"
	"database/sql"
	"time"

	"mpg-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

// Round 对应 rounds 表
// 说明：时间统一为毫秒时间戳，区间为 [start_time, end_time)
// next_round_id: 结算后指向同一游戏类型的下一局，只写一次
type Round struct {
	ID           int64         `db:"id" json:"id"`
	GameType     string        `db:"game_type" json:"game_type"`
	CommitmentID int64         `db:"commitment_id" json:"commitment_id"`
	PlayableID   int64         `db:"playable_id" json:"playable_id"`
	StartTime    int64         `db:"start_time" json:"start_time"`
	EndTime      int64         `db:"end_time" json:"end_time"`
	NextRoundID  sql.NullInt64 `db:"next_round_id" json:"-"`
	CreatedAt    int64         `db:"created_at" json:"created_at"`
}

// IsClosedAt 是否已到结束时间
func (r *Round) IsClosedAt(nowMs int64) bool { return nowMs >= r.EndTime }

// HasNext 是否已串联下一局
func (r *Round) HasNext() bool { return r.NextRoundID.Valid && r.NextRoundID.Int64 > 0 }

// StartTimeUnix 秒级开始时间
func (r *Round) StartTimeUnix() int64 { return r.StartTime / 1000 }

// EndTimeUnix 秒级结束时间
func (r *Round) EndTimeUnix() int64 { return r.EndTime / 1000 }

// Clone 返回副本
func (r *Round) Clone() *Round {
	c := *r
	return &c
}

const roundColumns = `id, game_type, commitment_id, playable_id, start_time, end_time, next_round_id, created_at`

// InsertRound 插入新回合并回填自增ID
func InsertRound(ctx context.Context, exec sqlx.ExtContext, r *Round) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	sqlStr := `INSERT INTO rounds (game_type, commitment_id, playable_id, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := exec.ExecContext(ctx, sqlStr, r.GameType, r.CommitmentID, r.PlayableID, r.StartTime, r.EndTime, r.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// GetRound 按ID查询回合（不加锁）
func GetRound(ctx context.Context, exec sqlx.QueryerContext, id int64) (*Round, error) {
	var r Round
	sqlStr := "SELECT " + roundColumns + " FROM rounds WHERE id = ?"
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, id); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoundForUpdate 按ID查询回合并加锁，需要在事务中调用
func GetRoundForUpdate(ctx context.Context, exec sqlx.QueryerContext, id int64) (*Round, error) {
	var r Round
	sqlStr := "SELECT " + roundColumns + " FROM rounds WHERE id = ? FOR UPDATE"
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, id); err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestOpenRound 查询某游戏类型 end_time > now 的最新一局
// forUpdate=true 时为加锁读，保证读到其它事务已提交的最新版本
func LatestOpenRound(ctx context.Context, exec sqlx.QueryerContext, gameType string, nowMs int64, forUpdate bool) (*Round, error) {
	var r Round
	sqlStr := "SELECT " + roundColumns + " FROM rounds WHERE game_type = ? AND end_time > ? ORDER BY id DESC LIMIT 1"
	if forUpdate {
		sqlStr += " FOR UPDATE"
	}
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, gameType, nowMs); err != nil {
		return nil, err
	}
	return &r, nil
}

// SetNextRound 记录下一局ID，仅当尚未设置时生效
// 返回受影响行数，0 表示已被设置过
func SetNextRound(ctx context.Context, exec sqlx.ExtContext, roundID, nextID int64) (int64, error) {
	res, err := common.UpdateCtx(ctx, exec, "rounds",
		g.Record{"next_round_id": nextID},
		g.C("id").Eq(roundID), g.C("next_round_id").IsNull())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListDueRounds 查询已到结束时间但尚未完成结算或尚未串联下一局的回合
func ListDueRounds(ctx context.Context, exec sqlx.QueryerContext, nowMs int64, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 50
	}
	var rounds []Round
	err := common.SelectAllCtx(ctx, exec, &rounds, common.QueryArg{
		Table:  g.T("rounds").As("r"),
		Joins:  []common.JoinArg{{Table: g.T("playables").As("p"), On: g.On(g.I("p.id").Eq(g.I("r.playable_id")))}},
		Fields: common.PrefixFields("r", common.EnumFields(Round{})),
		Ex: []exp.Expression{
			g.I("r.end_time").Lte(nowMs),
			g.Or(g.I("r.next_round_id").IsNull(), g.I("p.is_completed").Eq(0)),
		},
		Order: []exp.OrderedExpression{g.I("r.id").Asc()},
		Limit: uint(limit),
	})
	return rounds, err
}

// EnsureGate 确保游戏类型的开局闸门行存在
func EnsureGate(ctx context.Context, exec sqlx.ExtContext, gameType string) error {
	_, err := exec.ExecContext(ctx, "INSERT IGNORE INTO round_gates (game_type, created_at) VALUES (?, ?)", gameType, time.Now().UnixMilli())
	return err
}

// LockGate 锁定游戏类型的开局闸门行（单写者），需要在事务中调用
func LockGate(ctx context.Context, exec sqlx.QueryerContext, gameType string) error {
	var gt string
	return sqlx.GetContext(ctx, exec, &gt, "SELECT game_type FROM round_gates WHERE game_type = ? FOR UPDATE", gameType)
}
