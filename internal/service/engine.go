package service

import (
	"context"
	"encoding/json"
	"time"

	log "mpg-server/common/logger"
	"mpg-server/internal/config"
	"mpg-server/internal/event"
	"mpg-server/internal/fairness"
	"mpg-server/internal/game"
	"mpg-server/internal/ledger"
	"mpg-server/internal/model"
	"mpg-server/internal/state"
	"mpg-server/internal/store"

	"go.uber.org/zap"
)

// RoundService 回合生命周期：查找或开启、串联下一局
type RoundService interface {
	// GetOrOpen 返回游戏类型当前未结束的回合，不存在则开启新回合（开始时间 = now + delay）
	GetOrOpen(ctx context.Context, gameType string, delay time.Duration) (*model.Round, error)
	// ChainNext 在调用方事务内开启（或复用）下一局并写入 next_round_id
	ChainNext(ctx context.Context, tx store.Tx, round *model.Round) (*model.Round, error)
	// Current 读路径：优先缓存，未命中时按配置的开局延迟 GetOrOpen
	Current(ctx context.Context, gameType string) (*model.Round, error)
}

// ActionService 玩家动作：原子扣款并更新共享状态
type ActionService interface {
	Apply(ctx context.Context, in ActionInput) (*ActionOutput, error)
}

// SettleService 回合结算，可重复调用
type SettleService interface {
	Settle(ctx context.Context, in SettleInput) (*SettleOutput, error)
}

// RoundCache 当前回合缓存（可选）
type RoundCache interface {
	Get(ctx context.Context, gameType string) (*model.Round, error)
	Set(ctx context.Context, r *model.Round, nowMs int64) error
	Invalidate(ctx context.Context, gameType string) error
}

// Deps 引擎依赖
type Deps struct {
	Store     store.Store
	Ledger    ledger.Ledger
	Games     *game.Registry
	Committer *fairness.Committer
	Sink      event.Sink
	Cache     RoundCache
	// GameConfig 返回游戏的配置覆盖，零值字段使用游戏自身默认值
	GameConfig func(gameType string) config.GameConfig
	Now        func() time.Time
}

// Engine 回合引擎，同时实现 RoundService / ActionService / SettleService 与 game.Player
type Engine struct {
	store     store.Store
	ledger    ledger.Ledger
	games     *game.Registry
	committer *fairness.Committer
	sink      event.Sink
	cache     RoundCache
	gameCfg   func(gameType string) config.GameConfig
	now       func() time.Time
}

var (
	_ RoundService  = (*Engine)(nil)
	_ ActionService = (*Engine)(nil)
	_ SettleService = (*Engine)(nil)
	_ game.Player   = (*Engine)(nil)
)

func NewEngine(d Deps) *Engine {
	e := &Engine{
		store:     d.Store,
		ledger:    d.Ledger,
		games:     d.Games,
		committer: d.Committer,
		sink:      d.Sink,
		cache:     d.Cache,
		gameCfg:   d.GameConfig,
		now:       d.Now,
	}
	if e.committer == nil {
		e.committer = fairness.NewCommitter()
	}
	if e.sink == nil {
		e.sink = event.Nop{}
	}
	if e.gameCfg == nil {
		e.gameCfg = func(string) config.GameConfig { return config.GameConfig{} }
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) nowMs() int64 { return e.now().UnixMilli() }

// allows 按回合当前阶段判断操作是否允许
func (e *Engine) allows(r *model.Round, settled bool, evt string) bool {
	_, err := state.NextPhase(state.PhaseOf(r.StartTime, r.EndTime, settled, e.nowMs()), evt)
	return err == nil
}

func (e *Engine) duration(g game.Game) time.Duration {
	if d := e.gameCfg(g.Type()).Duration(); d > 0 {
		return d
	}
	return g.Duration()
}

func (e *Engine) interval(g game.Game) time.Duration {
	if d := e.gameCfg(g.Type()).Interval(); d > 0 {
		return d
	}
	return g.Interval()
}

func (e *Engine) openDelay(g game.Game) time.Duration {
	return e.gameCfg(g.Type()).OpenDelay()
}

// Act 实现 game.Player，供 CreateRandomGame 驱动
func (e *Engine) Act(ctx context.Context, accountID, roundID int64, action string, payload json.RawMessage) error {
	_, err := e.Apply(ctx, ActionInput{AccountID: accountID, RoundID: roundID, Action: action, Payload: payload})
	return err
}

// CreateRandomGame 以指定账户在当前回合生成一次随机动作（模拟流量入口）
func (e *Engine) CreateRandomGame(ctx context.Context, gameType string, accountID int64) error {
	g, err := e.games.Lookup(gameType)
	if err != nil {
		return err
	}
	r, err := e.Current(ctx, gameType)
	if err != nil {
		return err
	}
	return g.CreateRandomGame(ctx, e, accountID, r)
}

func (e *Engine) publish(ctx context.Context, name string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorCtx(ctx, "event sink panic", zap.String("event", name), zap.Any("panic", r))
		}
	}()
	e.sink.Publish(ctx, name, payload)
}

// evictRound 缓存中仍是已结算回合时删除
func (e *Engine) evictRound(ctx context.Context, r *model.Round) {
	if e.cache == nil {
		return
	}
	cached, err := e.cache.Get(ctx, r.GameType)
	if err != nil || cached == nil || cached.ID != r.ID {
		return
	}
	if err := e.cache.Invalidate(ctx, r.GameType); err != nil {
		log.WarnCtx(ctx, "round cache invalidate failed", zap.Int64("round_id", r.ID), zap.Error(err))
	}
}

func (e *Engine) cacheRound(ctx context.Context, r *model.Round) {
	if e.cache == nil || r == nil {
		return
	}
	if err := e.cache.Set(ctx, r, e.nowMs()); err != nil {
		log.WarnCtx(ctx, "round cache set failed", zap.Int64("round_id", r.ID), zap.Error(err))
	}
}
