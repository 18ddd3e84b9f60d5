package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Commitment 对应 commitments 表（可证明公平承诺）
// server_seed/secret 在回合结束前不得对外暴露；secret_hash 可公开
// client_seed: 8 位随机整数 [10000000, 99999999]
type Commitment struct {
	ID         int64  `db:"id" json:"id"`
	GameType   string `db:"game_type" json:"game_type"`
	ServerSeed string `db:"server_seed" json:"-"`
	Secret     string `db:"secret" json:"-"`
	SecretHash string `db:"secret_hash" json:"secret_hash"`
	ClientSeed int64  `db:"client_seed" json:"client_seed"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
}

// InsertCommitment 插入承诺并回填自增ID
func InsertCommitment(ctx context.Context, exec sqlx.ExtContext, c *Commitment) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	sqlStr := `INSERT INTO commitments (game_type, server_seed, secret, secret_hash, client_seed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := exec.ExecContext(ctx, sqlStr, c.GameType, c.ServerSeed, c.Secret, c.SecretHash, c.ClientSeed, c.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// GetCommitment 按ID查询承诺
func GetCommitment(ctx context.Context, exec sqlx.QueryerContext, id int64) (*Commitment, error) {
	var c Commitment
	sqlStr := `SELECT id, game_type, server_seed, secret, secret_hash, client_seed, created_at
		FROM commitments WHERE id = ?`
	if err := sqlx.GetContext(ctx, exec, &c, sqlStr, id); err != nil {
		return nil, err
	}
	return &c, nil
}
