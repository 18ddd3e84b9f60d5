package model

import (
	"context"
	"time"

	"mpg-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// 账本业务类型
const (
	BizBet    = 1 // 玩家动作扣款
	BizSettle = 2 // 结算派彩
	BizAdjust = 3 // 结算修正（重算后差额为负）
)

var bizTypeNames = map[int]string{
	BizBet:    "bet",
	BizSettle: "settle",
	BizAdjust: "adjust",
}

// BizTypeName 返回业务类型字符串
func BizTypeName(code int) string {
	if s, ok := bizTypeNames[code]; ok {
		return s
	}
	return "unknown"
}

// WalletLedger 对应 wallet_ledger 表（追加式账本）
// amount 为带符号金额：扣款为负，入账为正
type WalletLedger struct {
	ID            int64           `db:"id"`
	AccountID     int64           `db:"account_id"`
	BizType       int             `db:"biz_type"`
	BizTypeStr    string          `db:"biz_type_str"`
	Amount        decimal.Decimal `db:"amount"`
	BeforeAmount  decimal.Decimal `db:"before_amount"`
	AfterAmount   decimal.Decimal `db:"after_amount"`
	RoundID       int64           `db:"round_id"`
	ParticipantID int64           `db:"participant_id"`
	GameType      string          `db:"game_type"`
	Remark        string          `db:"remark"`
	TraceID       string          `db:"trace_id"`
	CreatedAt     int64           `db:"created_at"`
}

// Insert 新增一条账本记录
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	l.CreatedAt = time.Now().UnixMilli()
	if l.BizTypeStr == "" {
		l.BizTypeStr = BizTypeName(l.BizType)
	}
	res, err := common.InsertCtx(ctx, exec, "wallet_ledger", g.Record{
		"account_id":     l.AccountID,
		"biz_type":       l.BizType,
		"biz_type_str":   l.BizTypeStr,
		"amount":         l.Amount.StringFixed(2),
		"before_amount":  l.BeforeAmount.StringFixed(2),
		"after_amount":   l.AfterAmount.StringFixed(2),
		"round_id":       l.RoundID,
		"participant_id": l.ParticipantID,
		"game_type":      l.GameType,
		"remark":         l.Remark,
		"trace_id":       l.TraceID,
		"created_at":     l.CreatedAt,
	})
	if err != nil {
		return err
	}
	l.ID, _ = res.LastInsertId()
	return nil
}
