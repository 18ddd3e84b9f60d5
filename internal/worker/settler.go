package worker

import (
	"context"
	"sync"
	"time"

	"mpg-server/common/logger"
	infrds "mpg-server/internal/infra/redis"
	"mpg-server/internal/model"
	"mpg-server/internal/service"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DueRounds 查询到期未结算（或未串联）的回合
type DueRounds interface {
	ListDueRounds(ctx context.Context, nowMs int64, limit int) ([]model.Round, error)
}

// Settler 自动结算：扫描到期回合并调用结算
// 多实例部署时用 Redis 锁减少重复结算；锁只是优化，结算本身可重入
type Settler struct {
	due     DueRounds
	settle  service.SettleService
	rdb     *goredis.Client
	tick    time.Duration
	batch   int
	lockTTL time.Duration
	now     func() time.Time
}

// SettlerOptions rdb 为空时不加锁
type SettlerOptions struct {
	Redis   *goredis.Client
	Tick    time.Duration
	Batch   int
	LockTTL time.Duration
	Now     func() time.Time
}

func NewSettler(due DueRounds, settle service.SettleService, opts SettlerOptions) *Settler {
	s := &Settler{
		due:     due,
		settle:  settle,
		rdb:     opts.Redis,
		tick:    opts.Tick,
		batch:   opts.Batch,
		lockTTL: opts.LockTTL,
		now:     opts.Now,
	}
	if s.tick <= 0 {
		s.tick = 500 * time.Millisecond
	}
	if s.batch <= 0 {
		s.batch = 50
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 10 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Settler) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 结算一批到期回合，返回本实例处理的回合数
func (s *Settler) RunOnce(ctx context.Context) int {
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	rounds, err := s.due.ListDueRounds(c, s.now().UnixMilli(), s.batch)
	cancel()
	if err != nil {
		logger.Warn("settler: list due rounds failed", zap.Error(err))
		return 0
	}
	n := 0
	for _, r := range rounds {
		if ctx.Err() != nil {
			return n
		}
		if s.settleOne(ctx, r.ID) {
			n++
		}
	}
	return n
}

func (s *Settler) settleOne(ctx context.Context, roundID int64) bool {
	if s.rdb != nil {
		release, ok, err := infrds.TryLock(ctx, s.rdb, infrds.SettleLockKey(roundID), s.lockTTL)
		if err != nil {
			// Redis 不可用时退化为直接结算
			logger.Warn("settler: lock failed", zap.Int64("round_id", roundID), zap.Error(err))
		} else if !ok {
			return false
		} else {
			defer release()
		}
	}
	ctx = logger.WithTraceID(ctx, uuid.NewString())
	out, err := s.settle.Settle(ctx, service.SettleInput{RoundID: roundID})
	if err != nil {
		logger.Error("settler: settle failed", zap.Int64("round_id", roundID), zap.Error(err))
		return false
	}
	if !out.Noop {
		logger.Debug("settler: round settled", zap.Int64("round_id", roundID), zap.String("case", out.Case))
	}
	return true
}
