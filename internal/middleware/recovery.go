package middleware

import (
	"runtime/debug"
	"time"

	"mpg-server/common/logger"
	"mpg-server/internal/common/helper"
	"mpg-server/internal/common/response"

	"github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// Recovery Panic Recovery 过滤器链
// 捕获后续过滤器与控制器中未处理的 panic，防止进程崩溃
func Recovery(next web.FilterFunc) web.FilterFunc {
	return func(ctx *beegocontext.Context) {
		defer func() {
			if err := recover(); err != nil {
				traceID := helper.GetTraceID(ctx)

				logger.Error("panic recovered",
					zap.String("trace_id", traceID),
					zap.String("method", ctx.Request.Method),
					zap.String("path", ctx.Request.URL.Path),
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())))

				ctx.Output.SetStatus(500)
				_ = ctx.Output.JSON(response.APIResponse{
					Code:      response.CodeSystemError,
					Message:   response.ErrorMessages[response.CodeSystemError],
					TraceID:   traceID,
					Timestamp: time.Now().UnixMilli(),
				}, false, false)
			}
		}()
		next(ctx)
	}
}
