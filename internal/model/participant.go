package model

import (
	"context"
	"time"

	"mpg-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ParticipantGame 对应 participant_games 表：单个用户在单局中的投注与结果
// 唯一键: (playable_id, account_id)
// bet: 累计投注，开局期间只增不减
// win: 派彩金额，仅在结算时写入一次
// is_in_progress: 首次动作起至结算前为 1
// is_completed: 结算时置 1，不可回退
type ParticipantGame struct {
	ID           int64           `db:"id" json:"id"`
	AccountID    int64           `db:"account_id" json:"account_id"`
	RoundID      int64           `db:"round_id" json:"round_id"`
	PlayableID   int64           `db:"playable_id" json:"-"`
	Bet          decimal.Decimal `db:"bet" json:"bet"`
	Win          decimal.Decimal `db:"win" json:"win"`
	IsInProgress bool            `db:"is_in_progress" json:"is_in_progress"`
	IsCompleted  bool            `db:"is_completed" json:"is_completed"`
	CreatedAt    int64           `db:"created_at" json:"created_at"`
	UpdatedAt    int64           `db:"updated_at" json:"updated_at"`
}

// Clone 返回副本
func (p *ParticipantGame) Clone() *ParticipantGame {
	c := *p
	return &c
}

// InsertParticipant 插入参与记录并回填自增ID（唯一键冲突由调用方处理）
func InsertParticipant(ctx context.Context, exec sqlx.ExtContext, p *ParticipantGame) error {
	now := time.Now().UnixMilli()
	p.CreatedAt, p.UpdatedAt = now, now
	res, err := exec.ExecContext(ctx,
		`INSERT INTO participant_games (account_id, round_id, playable_id, bet, win, is_in_progress, is_completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.AccountID, p.RoundID, p.PlayableID, p.Bet, p.Win, p.IsInProgress, p.IsCompleted, p.CreatedAt, p.UpdatedAt)
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

// GetParticipantForUpdate 按 (playable_id, account_id) 加锁读取，需要在事务中调用
func GetParticipantForUpdate(ctx context.Context, exec sqlx.QueryerContext, playableID, accountID int64) (*ParticipantGame, error) {
	var p ParticipantGame
	err := common.SelectOneCtx(ctx, exec, &p, "participant_games", common.EnumFields(ParticipantGame{}), true,
		g.C("playable_id").Eq(playableID), g.C("account_id").Eq(accountID))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListParticipantsForUpdate 加锁读取某局全部参与记录（按ID升序，保证加锁顺序一致）
func ListParticipantsForUpdate(ctx context.Context, exec sqlx.QueryerContext, playableID int64) ([]ParticipantGame, error) {
	var list []ParticipantGame
	err := common.SelectAllCtx(ctx, exec, &list, common.QueryArg{
		Table:     g.T("participant_games"),
		Fields:    common.EnumFields(ParticipantGame{}),
		Ex:        []exp.Expression{g.C("playable_id").Eq(playableID)},
		Order:     []exp.OrderedExpression{g.C("id").Asc()},
		ForUpdate: true,
	})
	return list, err
}

// UpdateParticipant 保存投注累计、派彩与状态
func UpdateParticipant(ctx context.Context, exec sqlx.ExtContext, p *ParticipantGame) error {
	p.UpdatedAt = time.Now().UnixMilli()
	_, err := common.UpdateCtx(ctx, exec, "participant_games", g.Record{
		"bet":            p.Bet.StringFixed(2),
		"win":            p.Win.StringFixed(2),
		"is_in_progress": p.IsInProgress,
		"is_completed":   p.IsCompleted,
		"updated_at":     p.UpdatedAt,
	}, g.C("id").Eq(p.ID))
	return err
}
