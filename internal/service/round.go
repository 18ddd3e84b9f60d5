package service

import (
	"context"
	"time"

	log "mpg-server/common/logger"
	"mpg-server/internal/game"
	"mpg-server/internal/metrics"
	"mpg-server/internal/model"
	"mpg-server/internal/store"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (e *Engine) GetOrOpen(ctx context.Context, gameType string, delay time.Duration) (*model.Round, error) {
	g, err := e.games.Lookup(gameType)
	if err != nil {
		return nil, err
	}
	if delay < 0 {
		delay = 0
	}

	var (
		r       *model.Round
		created bool
	)
	err = e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		r, created, err = e.openInTx(ctx, tx, g, delay)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get or open round game_type=%s", gameType)
	}
	if created {
		metrics.RecordRoundOpened(gameType, "request")
		log.InfoCtx(ctx, "round opened", zap.String("game_type", gameType), zap.Int64("round_id", r.ID),
			zap.Int64("start_time", r.StartTime), zap.Int64("end_time", r.EndTime))
	}
	e.cacheRound(ctx, r)
	return r, nil
}

// openInTx 持有游戏类型闸门的情况下查找或创建回合
// 承诺与共享状态先于回合写入，回合可见时承诺必然已存在
func (e *Engine) openInTx(ctx context.Context, tx store.Tx, g game.Game, delay time.Duration) (*model.Round, bool, error) {
	if err := tx.LockGate(ctx, g.Type()); err != nil {
		return nil, false, err
	}
	now := e.nowMs()
	existing, err := tx.LatestOpenRound(ctx, g.Type(), now)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	c, err := e.committer.Create(ctx, tx, g)
	if err != nil {
		return nil, false, err
	}
	initial, err := g.CreatePlayable()
	if err != nil {
		return nil, false, errors.Wrap(err, "create playable")
	}
	p := &model.Playable{GameType: g.Type(), State: initial}
	if err := tx.InsertPlayable(ctx, p); err != nil {
		return nil, false, err
	}

	start := now + delay.Milliseconds()
	r := &model.Round{
		GameType:     g.Type(),
		CommitmentID: c.ID,
		PlayableID:   p.ID,
		StartTime:    start,
		EndTime:      start + e.duration(g).Milliseconds(),
	}
	if err := tx.InsertRound(ctx, r); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// ChainNext 结算事务的最后一步；失败时整个结算回滚
func (e *Engine) ChainNext(ctx context.Context, tx store.Tx, round *model.Round) (*model.Round, error) {
	if round.HasNext() {
		return tx.GetRoundForUpdate(ctx, round.NextRoundID.Int64)
	}
	g, err := e.games.Lookup(round.GameType)
	if err != nil {
		return nil, err
	}
	next, _, err := e.openInTx(ctx, tx, g, e.interval(g))
	if err != nil {
		return nil, errors.Wrap(err, "open next round")
	}
	if err := tx.SetNextRound(ctx, round.ID, next.ID); err != nil {
		return nil, errors.Wrap(err, "link next round")
	}
	round.NextRoundID.Int64, round.NextRoundID.Valid = next.ID, true
	return next, nil
}

func (e *Engine) Current(ctx context.Context, gameType string) (*model.Round, error) {
	g, err := e.games.Lookup(gameType)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		r, err := e.cache.Get(ctx, gameType)
		if err != nil {
			log.WarnCtx(ctx, "round cache get failed", zap.String("game_type", gameType), zap.Error(err))
		} else if r != nil && r.EndTime > e.nowMs() {
			return r, nil
		}
	}
	return e.GetOrOpen(ctx, gameType, e.openDelay(g))
}

// EnsureOpen 启动时为所有已注册游戏开启回合
func (e *Engine) EnsureOpen(ctx context.Context) error {
	for _, t := range e.games.Types() {
		if _, err := e.Current(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
