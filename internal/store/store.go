package store

import (
	"context"
	"errors"

	"mpg-server/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict 条件更新未命中（例如 next_round_id 已被设置）
	ErrConflict = errors.New("conditional update conflict")
)

// Store 回合存储
// 读方法不加锁，仅用于事务外的预检查与查询接口；所有写入都必须经由 InTx
type Store interface {
	// InTx 在单个事务中执行 fn；fn 返回错误则整体回滚
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetRound(ctx context.Context, id int64) (*model.Round, error)
	LatestOpenRound(ctx context.Context, gameType string, nowMs int64) (*model.Round, error)
	GetCommitment(ctx context.Context, id int64) (*model.Commitment, error)
	GetPlayable(ctx context.Context, id int64) (*model.Playable, error)
	// ListDueRounds 已到结束时间且尚未完成结算或尚未串联下一局的回合
	ListDueRounds(ctx context.Context, nowMs int64, limit int) ([]model.Round, error)
}

// Tx 事务内操作；ForUpdate 方法在提交或回滚前持有行锁
// 加锁顺序：round gate -> playable -> round -> participants -> account
type Tx interface {
	LockGate(ctx context.Context, gameType string) error
	LatestOpenRound(ctx context.Context, gameType string, nowMs int64) (*model.Round, error)

	InsertCommitment(ctx context.Context, c *model.Commitment) error
	InsertPlayable(ctx context.Context, p *model.Playable) error
	InsertRound(ctx context.Context, r *model.Round) error

	GetRoundForUpdate(ctx context.Context, id int64) (*model.Round, error)
	// SetNextRound 仅当 next_round_id 为空时写入，否则返回 ErrConflict
	SetNextRound(ctx context.Context, roundID, nextID int64) error

	GetPlayableForUpdate(ctx context.Context, id int64) (*model.Playable, error)
	SavePlayable(ctx context.Context, p *model.Playable) error

	GetParticipantForUpdate(ctx context.Context, playableID, accountID int64) (*model.ParticipantGame, error)
	// InsertParticipant 唯一键 (playable_id, account_id) 冲突时返回 ErrDuplicate
	InsertParticipant(ctx context.Context, p *model.ParticipantGame) error
	SaveParticipant(ctx context.Context, p *model.ParticipantGame) error
	ListParticipantsForUpdate(ctx context.Context, playableID int64) ([]*model.ParticipantGame, error)

	// InsertSettlementLog 同一回合重复写入返回 ErrDuplicate
	InsertSettlementLog(ctx context.Context, l *model.SettlementLog) error
}
