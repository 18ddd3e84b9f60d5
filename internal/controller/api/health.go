package api

import (
	"context"
	"time"

	"mpg-server/common/logger"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// HealthController 提供健康检查端点：/healthz 与 /readyz
type HealthController struct{ beego.Controller }

// Healthz 存活探针：仅返回进程存活
func (c *HealthController) Healthz() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ok"))
}

// Readyz 就绪探针：依次检查 MySQL / Redis 等依赖，任一失败返回 503
func (c *HealthController) Readyz() {
	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), 2*time.Second)
	defer cancel()
	for _, p := range svc.Probes {
		if err := p.Check(ctx); err != nil {
			logger.Warn("readyz: dependency not ready", zap.String("dependency", p.Name), zap.Error(err))
			c.Ctx.Output.SetStatus(503)
			_ = c.Ctx.Output.Body([]byte(p.Name + " not ready"))
			return
		}
	}
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ready"))
}
