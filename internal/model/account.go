package model

import (
	"context"
	"time"

	"mpg-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Account 对应 customers 表
// status: 1=启用 2=禁用
type Account struct {
	ID        int64           `db:"id"`
	Username  string          `db:"username"`
	Balance   decimal.Decimal `db:"balance"`
	Status    int8            `db:"status"`
	CreatedAt int64           `db:"created_at"`
	UpdatedAt int64           `db:"updated_at"`
}

const AccountEnabled int8 = 1

// GetAccountForUpdate 按ID加锁查询，需要在事务中调用
func GetAccountForUpdate(ctx context.Context, exec sqlx.QueryerContext, id int64) (*Account, error) {
	var a Account
	err := common.SelectOneCtx(ctx, exec, &a, "customers", common.EnumFields(Account{}), true, g.C("id").Eq(id))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount 按ID查询（不加锁）
func GetAccount(ctx context.Context, exec sqlx.QueryerContext, id int64) (*Account, error) {
	var a Account
	err := common.SelectOneCtx(ctx, exec, &a, "customers", common.EnumFields(Account{}), false, g.C("id").Eq(id))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAccountBalance 写回余额
func UpdateAccountBalance(ctx context.Context, exec sqlx.ExtContext, id int64, balance decimal.Decimal) error {
	_, err := common.UpdateCtx(ctx, exec, "customers", g.Record{
		"balance":    balance.StringFixed(2),
		"updated_at": time.Now().UnixMilli(),
	}, g.C("id").Eq(id))
	return err
}
