package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"mpg-server/common/logger"
	"mpg-server/internal/config"
	"mpg-server/internal/controller/api"
	"mpg-server/internal/event"
	"mpg-server/internal/game"
	"mpg-server/internal/game/roulette"
	infmysql "mpg-server/internal/infra/mysql"
	infrds "mpg-server/internal/infra/redis"
	infmq "mpg-server/internal/infra/rocketmq"
	"mpg-server/internal/ledger"
	"mpg-server/internal/service"
	"mpg-server/internal/store"
	"mpg-server/internal/worker"
	"mpg-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	logger.InitLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.SetCurrent(cfg)
	config.ApplyReload(nil, cfg)
	if err := config.StartWatch(config.ApplyReload); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// Redis：缓存、事件广播、结算锁、限流（可选）
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer infrds.Close()

	games := game.NewRegistry()
	games.MustRegister(newRoulette(cfg))

	var (
		st     store.Store
		ldg    ledger.Ledger
		sinks  = event.Multi{event.LogSink{}}
		probes []api.Probe
		wg     sync.WaitGroup
	)

	if cfg.Server.DemoMode {
		mem := ledger.NewMemory()
		balance := decimal.RequireFromString(cfg.Demo.Balance)
		for i := 1; i <= cfg.Demo.Accounts; i++ {
			mem.SetBalance(int64(i), balance)
		}
		st, ldg = store.NewMemory(), mem
		logger.Info("demo mode: in-memory store and ledger", zap.Int("accounts", cfg.Demo.Accounts))
	} else {
		db, err := infmysql.Open(ctx, infmysql.Options{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
		})
		if err != nil {
			logger.Fatalf("mysql open failed", zap.Error(err))
		}
		defer infmysql.Close()
		st, ldg = store.NewMySQL(db), ledger.NewWallet()
		probes = append(probes, api.Probe{Name: "mysql", Check: func(c context.Context) error {
			return infmysql.Ping(c, time.Second)
		}})

		// 事件经 outbox 可靠投递到 RocketMQ
		infmq.Init(infmq.Options{
			Endpoint:  cfg.RocketMQ.Endpoint,
			AccessKey: cfg.RocketMQ.AccessKey,
			SecretKey: cfg.RocketMQ.SecretKey,
			Topics:    []string{cfg.RocketMQ.TopicEvents},
		})
		defer infmq.Shutdown()
		sinks = append(sinks, event.NewOutboxSink(db, cfg.RocketMQ.TopicEvents))
		if infmq.Enabled() {
			worker.NewOutboxDispatcher(worker.NewSQLOutboxStore(db), infmq.PublisherInstance(),
				time.Duration(cfg.Scheduler.OutboxTickMs)*time.Millisecond, cfg.Scheduler.OutboxBatch).Start(ctx, &wg)
		}
	}

	var cache service.RoundCache
	if rdb := infrds.Client(); rdb != nil {
		if err := infrds.Ping(ctx, 2*time.Second); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		}
		cache = infrds.NewRoundCache(rdb)
		sinks = append(sinks, event.NewRedisSink(rdb))
		probes = append(probes, api.Probe{Name: "redis", Check: func(c context.Context) error {
			return infrds.Ping(c, time.Second)
		}})
	}
	// 演示模式未接 outbox，MQ 可用时直接发送
	if cfg.Server.DemoMode {
		infmq.Init(infmq.Options{
			Endpoint:  cfg.RocketMQ.Endpoint,
			AccessKey: cfg.RocketMQ.AccessKey,
			SecretKey: cfg.RocketMQ.SecretKey,
			Topics:    []string{cfg.RocketMQ.TopicEvents},
		})
		defer infmq.Shutdown()
		if infmq.Enabled() {
			sinks = append(sinks, event.NewMQSink(infmq.PublisherInstance(), cfg.RocketMQ.TopicEvents))
		}
	}

	engine := service.NewEngine(service.Deps{
		Store:  st,
		Ledger: ldg,
		Games:  games,
		Sink:   sinks,
		Cache:  cache,
		GameConfig: func(gameType string) config.GameConfig {
			return config.GetCurrent().Game(gameType)
		},
	})
	if err := engine.EnsureOpen(ctx); err != nil {
		logger.Fatalf("open initial rounds failed", zap.Error(err))
	}

	worker.NewSettler(st, engine, worker.SettlerOptions{
		Redis:   infrds.Client(),
		Tick:    time.Duration(cfg.Scheduler.SettleTickMs) * time.Millisecond,
		Batch:   cfg.Scheduler.SettleBatch,
		LockTTL: time.Duration(cfg.Scheduler.SettleLockTTLSec) * time.Second,
	}).Start(ctx, &wg)

	if cfg.Server.DemoMode && cfg.Demo.BotTickMs > 0 {
		accounts := make([]int64, 0, cfg.Demo.Accounts)
		for i := 1; i <= cfg.Demo.Accounts; i++ {
			accounts = append(accounts, int64(i))
		}
		worker.NewBots(engine, games.Types(), accounts, time.Duration(cfg.Demo.BotTickMs)*time.Millisecond).Start(ctx, &wg)
	}

	api.Setup(api.Services{
		Rounds:  engine,
		Actions: engine,
		Settle:  engine,
		Store:   st,
		Games:   games,
		Probes:  probes,
	})
	routers.Init(cfg)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		logger.Info("shutting down", zap.String("signal", s.String()))
		cancel()

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			logger.Warn("workers did not stop in time")
		}
		if err := beego.BeeApp.Server.Shutdown(context.Background()); err != nil {
			logger.Warn("http shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("mpg-server starting", zap.Int("port", cfg.Server.Port), zap.Strings("games", games.Types()),
		zap.Bool("demo_mode", cfg.Server.DemoMode))
	beego.Run(fmt.Sprintf(":%d", cfg.Server.Port))
}

func newRoulette(cfg *config.Config) *roulette.Roulette {
	gc := cfg.Game(roulette.Type)
	opts := roulette.DefaultOptions()
	if d := gc.Duration(); d > 0 {
		opts.Duration = d
	}
	if d := gc.Interval(); d > 0 {
		opts.Interval = d
	}
	if v, err := decimal.NewFromString(strings.TrimSpace(gc.MinBet)); err == nil {
		opts.MinBet = v
	}
	if v, err := decimal.NewFromString(strings.TrimSpace(gc.MaxBet)); err == nil {
		opts.MaxBet = v
	}
	return roulette.New(opts)
}
