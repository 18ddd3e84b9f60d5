package routers

import (
	"mpg-server/internal/config"
	"mpg-server/internal/controller/api"
	"mpg-server/internal/metrics"
	"mpg-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Init 注册HTTP路由与全局过滤器；调用前需先 api.Setup 注入依赖
func Init(cfg *config.Config) {
	// 限流需要在过滤器中读取请求体
	beego.BConfig.CopyRequestBody = true

	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最外层，捕获所有 panic）
	beego.InsertFilterChain("/*", middleware.Recovery)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（如果启用）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeRouter, middleware.CORSFilter)
	}

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter, beego.WithReturnOnOutput(false))

	// 健康检查与指标（无需限流）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")
	if cfg == nil || cfg.Observability.EnableProm {
		beego.Handler("/metrics", promhttp.Handler())
	}

	// ========== 回合 API ==========
	beego.Router("/api/rounds/:game_type/current", &api.RoundController{}, "get:Current")
	beego.Router("/api/rounds/:round_id/fairness", &api.RoundController{}, "get:Fairness")

	// 玩家动作：限流
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/rounds/:round_id/action", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/rounds/:round_id/action", &api.ActionController{}, "post:Act")

	// 结算：正常由 worker 触发，此接口用于补偿与运维
	beego.Router("/api/rounds/:round_id/settle", &api.SettleController{}, "post:Settle")
}
