package worker

import (
	"context"
	"sync"
	"time"

	"mpg-server/common/helper"
	"mpg-server/common/logger"

	"go.uber.org/zap"
)

// RandomPlayer 以指定账户在当前回合发起一次随机动作
type RandomPlayer interface {
	CreateRandomGame(ctx context.Context, gameType string, accountID int64) error
}

// Bots 演示模式下的模拟流量：每个 tick 随机挑选账户对每种游戏下注一次
type Bots struct {
	player   RandomPlayer
	types    []string
	accounts []int64
	tick     time.Duration
}

func NewBots(player RandomPlayer, gameTypes []string, accounts []int64, tick time.Duration) *Bots {
	if tick <= 0 {
		tick = 2 * time.Second
	}
	return &Bots{player: player, types: gameTypes, accounts: accounts, tick: tick}
}

func (b *Bots) Start(ctx context.Context, wg *sync.WaitGroup) {
	if len(b.accounts) == 0 || len(b.types) == 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(b.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 返回成功的动作数；回合未开放、余额不足等校验失败属于正常情况
func (b *Bots) RunOnce(ctx context.Context) int {
	if len(b.accounts) == 0 {
		return 0
	}
	n := 0
	for _, t := range b.types {
		accountID := b.accounts[helper.GenerateRandNum(0, len(b.accounts))]
		if err := b.player.CreateRandomGame(ctx, t, accountID); err != nil {
			logger.Debug("bots: random game skipped", zap.String("game_type", t), zap.Int64("account_id", accountID), zap.Error(err))
			continue
		}
		n++
	}
	return n
}
