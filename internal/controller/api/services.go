package api

import (
	"context"
	"time"

	"mpg-server/internal/game"
	"mpg-server/internal/service"
	"mpg-server/internal/store"
)

// Probe 就绪检查项
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Services 控制器依赖，由 main 在注册路由前注入
type Services struct {
	Rounds  service.RoundService
	Actions service.ActionService
	Settle  service.SettleService
	Store   store.Store
	Games   *game.Registry
	Probes  []Probe
	Now     func() time.Time
}

var svc Services

// Setup 注入控制器依赖
func Setup(s Services) {
	if s.Now == nil {
		s.Now = time.Now
	}
	svc = s
}
