package mysql

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Options 连接池参数
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// 全局 *sqlx.DB 句柄（由 Open 初始化）
var db *sqlx.DB

// Open 建立连接池并探测可用性，成功后设置为全局句柄
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	if opts.DSN == "" {
		return nil, errors.New("empty mysql dsn")
	}
	d, err := sqlx.Open("mysql", opts.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if opts.MaxOpenConns > 0 {
		d.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		d.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		d.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.PingContext(c); err != nil {
		_ = d.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}
	db = d
	return d, nil
}

// SQLX 返回全局句柄（可能为 nil，演示模式不连接数据库）
func SQLX() *sqlx.DB { return db }

// Ping 在给定超时时间内探测连接，未初始化时视为可用
func Ping(ctx context.Context, timeout time.Duration) error {
	if db == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(c)
}

// Close 关闭全局连接池
func Close() {
	if db != nil {
		_ = db.Close()
	}
}
