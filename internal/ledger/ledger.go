package ledger

import (
	"context"
	"errors"

	"mpg-server/internal/store"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountDisabled   = errors.New("account disabled")
	ErrNegativeAmount    = errors.New("amount must be positive")
)

// 资金变动原因
const (
	ReasonBet    = "bet"    // 玩家动作扣款
	ReasonSettle = "settle" // 结算派彩
	ReasonAdjust = "adjust" // 结算重算差额为负
)

// Entry 一次资金变动
type Entry struct {
	Reason        string
	AccountID     int64
	Amount        decimal.Decimal // 恒为正，方向由 Debit/Credit 决定
	RoundID       int64
	ParticipantID int64
	GameType      string
	Remark        string
	TraceID       string
}

// Ledger 账户余额适配器
// 调用方传入当前事务，扣款/入账与回合状态一起提交或回滚
type Ledger interface {
	Debit(ctx context.Context, tx store.Tx, e Entry) error
	Credit(ctx context.Context, tx store.Tx, e Entry) error
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNegativeAmount
	}
	return nil
}
