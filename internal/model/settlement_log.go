package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SettlementLog 结算日志表，round_id 唯一索引防止重复结算
// settle_case: A=无人参与 B=正常结算
type SettlementLog struct {
	ID           int64           `db:"id"`
	RoundID      int64           `db:"round_id"`
	GameType     string          `db:"game_type"`
	SettleCase   string          `db:"settle_case"`
	Participants int             `db:"participants"`
	TotalBet     decimal.Decimal `db:"total_bet"`
	TotalWin     decimal.Decimal `db:"total_win"`
	NextRoundID  int64           `db:"next_round_id"`
	TraceID      string          `db:"trace_id"`
	CreatedAt    int64           `db:"created_at"`
}

// CreateSettlementLog 写入结算日志；唯一键冲突说明该局已结算
func CreateSettlementLog(ctx context.Context, exec sqlx.ExtContext, l *SettlementLog) error {
	l.CreatedAt = time.Now().UnixMilli()
	res, err := exec.ExecContext(ctx,
		`INSERT INTO settlement_log (round_id, game_type, settle_case, participants, total_bet, total_win, next_round_id, trace_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.RoundID, l.GameType, l.SettleCase, l.Participants, l.TotalBet.StringFixed(2), l.TotalWin.StringFixed(2), l.NextRoundID, l.TraceID, l.CreatedAt)
	if err != nil {
		return err
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// GetSettlementLog 按回合查询结算日志
func GetSettlementLog(ctx context.Context, exec sqlx.QueryerContext, roundID int64) (*SettlementLog, error) {
	var l SettlementLog
	err := sqlx.GetContext(ctx, exec, &l,
		`SELECT id, round_id, game_type, settle_case, participants, total_bet, total_win, next_round_id, trace_id, created_at
		FROM settlement_log WHERE round_id = ? LIMIT 1`, roundID)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
