package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"mpg-server/common/logger"
	"mpg-server/internal/common/helper"
	"mpg-server/internal/common/response"
	"mpg-server/internal/config"
	infrds "mpg-server/internal/infra/redis"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitFilter 玩家动作限流，按 IP 与账户两个维度
// Redis 不可用时放行
func RateLimitFilter(ctx *beegocontext.Context) {
	cfg := config.GetCurrent()
	if cfg == nil || !cfg.RateLimit.Enabled {
		return
	}

	traceID := helper.GetTraceID(ctx)
	rdb := infrds.Client()
	if rdb == nil {
		logger.Warn("redis not available, skip rate limit", zap.String("trace_id", traceID))
		return
	}
	reqCtx := ctx.Request.Context()

	reject := func() {
		ctx.Output.SetStatus(429)
		_ = ctx.Output.JSON(response.APIResponse{
			Code:      response.CodeRateLimitExceeded,
			Message:   response.ErrorMessages[response.CodeRateLimitExceeded],
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	if r := cfg.RateLimit.ByIP; r.Requests > 0 {
		clientIP := getClientIP(ctx)
		if !checkRateLimit(reqCtx, rdb, "ip", clientIP, r.Requests, r.WindowSeconds) {
			logger.Warn("ip rate limit exceeded", zap.String("trace_id", traceID), zap.String("client_ip", clientIP))
			reject()
			return
		}
	}

	if r := cfg.RateLimit.ByAccount; r.Requests > 0 {
		if accountID := accountFromBody(ctx); accountID > 0 {
			key := strconv.FormatInt(accountID, 10)
			if !checkRateLimit(reqCtx, rdb, "account", key, r.Requests, r.WindowSeconds) {
				logger.Warn("account rate limit exceeded", zap.String("trace_id", traceID), zap.Int64("account_id", accountID))
				reject()
				return
			}
		}
	}
}

// accountFromBody 从已复制的请求体（CopyRequestBody）或表单中读取 account_id
func accountFromBody(ctx *beegocontext.Context) int64 {
	if len(ctx.Input.RequestBody) > 0 && helper.IsJSONContentType(ctx.Input.Header("Content-Type")) {
		var body struct {
			AccountID int64 `json:"account_id"`
		}
		if err := json.Unmarshal(ctx.Input.RequestBody, &body); err == nil {
			return body.AccountID
		}
		return 0
	}
	v, _ := strconv.ParseInt(ctx.Input.Query("account_id"), 10, 64)
	return v
}

// checkRateLimit 滑动窗口限流（Sorted Set）
// 返回 true 表示放行
func checkRateLimit(ctx context.Context, rdb *redis.Client, dimension, key string, limit int, windowSeconds int) bool {
	if rdb == nil {
		return true
	}
	if windowSeconds <= 0 {
		windowSeconds = 1
	}

	redisKey := fmt.Sprintf("mpg:ratelimit:%s:%s", dimension, key)
	now := time.Now()
	windowStart := now.Add(-time.Duration(windowSeconds) * time.Second).UnixMilli()

	pipe := rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCount(ctx, redisKey, strconv.FormatInt(windowStart, 10), "+inf")
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, redisKey, time.Duration(windowSeconds+10)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("rate limit check failed", zap.Error(err))
		return true
	}
	count, err := countCmd.Result()
	if err != nil {
		logger.Warn("rate limit count failed", zap.Error(err))
		return true
	}
	return count < int64(limit)
}

// getClientIP 获取客户端真实IP
func getClientIP(ctx *beegocontext.Context) string {
	if ip := ctx.Input.Header("X-Real-IP"); ip != "" {
		return ip
	}
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		for idx := 0; idx < len(xff); idx++ {
			if xff[idx] == ',' {
				return xff[:idx]
			}
		}
		return xff
	}
	return ctx.Request.RemoteAddr
}
