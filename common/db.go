package common

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	g "github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

var (
	dialect = g.Dialect("mysql")
)

// Dialect 返回全局 goqu MySQL 方言，供 model 层构造复杂查询
func Dialect() g.DialectWrapper { return dialect }

// QueryArg 通用多行查询参数
type QueryArg struct {
	Table     exp.Expression          // 表（可为 g.T("x").As("y") 或 join 之后的表达式）
	Joins     []JoinArg               // 关联表
	Fields    []interface{}           // 查询字段
	Ex        []exp.Expression        // where 条件
	Order     []exp.OrderedExpression // 排序
	Limit     uint                    // limit
	ForUpdate bool                    // 是否 FOR UPDATE（需要在事务中调用）
}

// JoinArg 内连接参数
type JoinArg struct {
	Table exp.Expression
	On    exp.JoinCondition
}

// EnumFields 按 struct 的 db tag 枚举字段名
func EnumFields(obj interface{}) []interface{} {
	rt := reflect.TypeOf(obj)
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil
	}

	var fields []interface{}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if field := f.Tag.Get("db"); field != "" && field != "-" {
			fields = append(fields, field)
		}
	}

	return fields
}

// PrefixFields 为字段加表别名前缀，用于多表查询
func PrefixFields(alias string, fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		out = append(out, g.I(fmt.Sprintf("%s.%v", alias, f)))
	}
	return out
}

// InsertCtx 在 sqlx.ExtContext 上执行 INSERT，保持 goqu 生成的占位符与 args
func InsertCtx(ctx context.Context, exec sqlx.ExtContext, table string, rows ...interface{}) (sql.Result, error) {
	query, args, err := dialect.Insert(table).Prepared(true).Rows(rows...).ToSQL()
	if err != nil {
		return nil, err
	}
	return exec.ExecContext(ctx, query, args...)
}

// UpdateCtx 在 sqlx.ExtContext 上执行 UPDATE
func UpdateCtx(ctx context.Context, exec sqlx.ExtContext, table string, record g.Record, ex ...exp.Expression) (sql.Result, error) {
	query, args, err := dialect.Update(table).Prepared(true).Set(record).Where(ex...).ToSQL()
	if err != nil {
		return nil, err
	}
	return exec.ExecContext(ctx, query, args...)
}

// SelectOneCtx 查询单条记录，可选 FOR UPDATE
func SelectOneCtx(ctx context.Context, exec sqlx.QueryerContext, data interface{}, table string, fields []interface{}, forUpdate bool, ex ...exp.Expression) error {
	ds := dialect.Select(fields...).From(table).Prepared(true).Where(ex...).Limit(1)
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, exec, data, query, args...)
}

// SelectAllCtx 查询多条记录
func SelectAllCtx(ctx context.Context, exec sqlx.QueryerContext, data interface{}, args QueryArg) error {
	if args.Table == nil {
		return fmt.Errorf("invalid table")
	}
	if len(args.Fields) == 0 {
		return fmt.Errorf("invalid fields")
	}
	ds := dialect.From(args.Table).Prepared(true).Select(args.Fields...)
	for _, j := range args.Joins {
		ds = ds.InnerJoin(j.Table, j.On)
	}
	if len(args.Ex) > 0 {
		ds = ds.Where(args.Ex...)
	}
	if len(args.Order) > 0 {
		ds = ds.Order(args.Order...)
	}
	if args.Limit > 0 {
		ds = ds.Limit(args.Limit)
	}
	if args.ForUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}
	query, qargs, err := ds.ToSQL()
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, exec, data, query, qargs...)
}
