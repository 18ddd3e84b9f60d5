package ledger

import (
	"context"
	"database/sql"

	"mpg-server/internal/model"
	"mpg-server/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// extTx 暴露底层 sqlx 事务的 store.Tx（MySQL 实现）
type extTx interface {
	Ext() sqlx.ExtContext
}

// Wallet 基于 customers + wallet_ledger 表的账本
// 余额行 FOR UPDATE 加锁后校验、写回并追加流水
type Wallet struct{}

func NewWallet() *Wallet { return &Wallet{} }

func (w *Wallet) Debit(ctx context.Context, tx store.Tx, e Entry) error {
	return w.apply(ctx, tx, e, e.Amount.Neg())
}

func (w *Wallet) Credit(ctx context.Context, tx store.Tx, e Entry) error {
	return w.apply(ctx, tx, e, e.Amount)
}

func bizType(reason string, signed decimal.Decimal) int {
	switch reason {
	case ReasonBet:
		return model.BizBet
	case ReasonSettle:
		return model.BizSettle
	case ReasonAdjust:
		return model.BizAdjust
	}
	if signed.IsNegative() {
		return model.BizBet
	}
	return model.BizSettle
}

func (w *Wallet) apply(ctx context.Context, tx store.Tx, e Entry, signed decimal.Decimal) error {
	if err := checkAmount(e.Amount); err != nil {
		return err
	}
	et, ok := tx.(extTx)
	if !ok {
		return errors.New("wallet ledger requires a mysql transaction")
	}
	exec := et.Ext()

	acc, err := model.GetAccountForUpdate(ctx, exec, e.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return errors.Wrap(err, "lock account")
	}
	if acc.Status != model.AccountEnabled {
		return ErrAccountDisabled
	}

	before := acc.Balance
	after := before.Add(signed).Round(2)
	if after.IsNegative() {
		return ErrInsufficientFunds
	}
	if err := model.UpdateAccountBalance(ctx, exec, acc.ID, after); err != nil {
		return errors.Wrap(err, "update balance")
	}

	l := &model.WalletLedger{
		AccountID:     e.AccountID,
		BizType:       bizType(e.Reason, signed),
		Amount:        signed,
		BeforeAmount:  before,
		AfterAmount:   after,
		RoundID:       e.RoundID,
		ParticipantID: e.ParticipantID,
		GameType:      e.GameType,
		Remark:        e.Remark,
		TraceID:       e.TraceID,
	}
	return errors.Wrap(l.Insert(ctx, exec), "insert wallet ledger")
}
