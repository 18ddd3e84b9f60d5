package store

import (
	"context"
	"database/sql"
	"time"

	"mpg-server/internal/model"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// 默认事务超时时间，防止长事务占用行锁（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// MySQL 基于 sqlx + InnoDB 行锁的存储实现
type MySQL struct {
	db        *sqlx.DB
	txTimeout time.Duration
}

func NewMySQL(db *sqlx.DB) *MySQL {
	return &MySQL{db: db, txTimeout: defaultTxTimeout}
}

// DB 返回底层连接，供账本与 outbox 等共享
func (s *MySQL) DB() *sqlx.DB { return s.db }

func (s *MySQL) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &mysqlTx{tx: tx}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func (s *MySQL) GetRound(ctx context.Context, id int64) (*model.Round, error) {
	r, err := model.GetRound(ctx, s.db, id)
	return r, mapErr(err, "get round")
}

func (s *MySQL) LatestOpenRound(ctx context.Context, gameType string, nowMs int64) (*model.Round, error) {
	r, err := model.LatestOpenRound(ctx, s.db, gameType, nowMs, false)
	return r, mapErr(err, "latest open round")
}

func (s *MySQL) GetCommitment(ctx context.Context, id int64) (*model.Commitment, error) {
	c, err := model.GetCommitment(ctx, s.db, id)
	return c, mapErr(err, "get commitment")
}

func (s *MySQL) GetPlayable(ctx context.Context, id int64) (*model.Playable, error) {
	p, err := model.GetPlayable(ctx, s.db, id)
	return p, mapErr(err, "get playable")
}

func (s *MySQL) ListDueRounds(ctx context.Context, nowMs int64, limit int) ([]model.Round, error) {
	list, err := model.ListDueRounds(ctx, s.db, nowMs, limit)
	return list, mapErr(err, "list due rounds")
}

// mysqlTx 事务实现；Ext 暴露给同事务内的账本使用
type mysqlTx struct {
	tx *sqlx.Tx
}

func (t *mysqlTx) Ext() sqlx.ExtContext { return t.tx }

func (t *mysqlTx) LockGate(ctx context.Context, gameType string) error {
	if err := model.EnsureGate(ctx, t.tx, gameType); err != nil {
		return errors.Wrap(err, "ensure gate")
	}
	return mapErr(model.LockGate(ctx, t.tx, gameType), "lock gate")
}

func (t *mysqlTx) LatestOpenRound(ctx context.Context, gameType string, nowMs int64) (*model.Round, error) {
	r, err := model.LatestOpenRound(ctx, t.tx, gameType, nowMs, true)
	return r, mapErr(err, "latest open round")
}

func (t *mysqlTx) InsertCommitment(ctx context.Context, c *model.Commitment) error {
	return mapErr(model.InsertCommitment(ctx, t.tx, c), "insert commitment")
}

func (t *mysqlTx) InsertPlayable(ctx context.Context, p *model.Playable) error {
	return mapErr(model.InsertPlayable(ctx, t.tx, p), "insert playable")
}

func (t *mysqlTx) InsertRound(ctx context.Context, r *model.Round) error {
	return mapErr(model.InsertRound(ctx, t.tx, r), "insert round")
}

func (t *mysqlTx) GetRoundForUpdate(ctx context.Context, id int64) (*model.Round, error) {
	r, err := model.GetRoundForUpdate(ctx, t.tx, id)
	return r, mapErr(err, "get round for update")
}

func (t *mysqlTx) SetNextRound(ctx context.Context, roundID, nextID int64) error {
	n, err := model.SetNextRound(ctx, t.tx, roundID, nextID)
	if err != nil {
		return errors.Wrap(err, "set next round")
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (t *mysqlTx) GetPlayableForUpdate(ctx context.Context, id int64) (*model.Playable, error) {
	p, err := model.GetPlayableForUpdate(ctx, t.tx, id)
	return p, mapErr(err, "get playable for update")
}

func (t *mysqlTx) SavePlayable(ctx context.Context, p *model.Playable) error {
	return mapErr(model.UpdatePlayable(ctx, t.tx, p), "save playable")
}

func (t *mysqlTx) GetParticipantForUpdate(ctx context.Context, playableID, accountID int64) (*model.ParticipantGame, error) {
	p, err := model.GetParticipantForUpdate(ctx, t.tx, playableID, accountID)
	return p, mapErr(err, "get participant for update")
}

func (t *mysqlTx) InsertParticipant(ctx context.Context, p *model.ParticipantGame) error {
	return mapErr(model.InsertParticipant(ctx, t.tx, p), "insert participant")
}

func (t *mysqlTx) SaveParticipant(ctx context.Context, p *model.ParticipantGame) error {
	return mapErr(model.UpdateParticipant(ctx, t.tx, p), "save participant")
}

func (t *mysqlTx) ListParticipantsForUpdate(ctx context.Context, playableID int64) ([]*model.ParticipantGame, error) {
	rows, err := model.ListParticipantsForUpdate(ctx, t.tx, playableID)
	if err != nil {
		return nil, errors.Wrap(err, "list participants")
	}
	out := make([]*model.ParticipantGame, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

func (t *mysqlTx) InsertSettlementLog(ctx context.Context, l *model.SettlementLog) error {
	return mapErr(model.CreateSettlementLog(ctx, t.tx, l), "insert settlement log")
}

// mapErr 将驱动错误映射为存储层哨兵错误，其余错误附带上下文
func mapErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isDuplicateKey(err):
		return ErrDuplicate
	default:
		return errors.Wrap(err, msg)
	}
}

// isDuplicateKey 判断是否为 MySQL 唯一键冲突错误（1062）
func isDuplicateKey(err error) bool {
	var me *mysqlerr.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
