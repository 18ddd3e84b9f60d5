package response

import (
	"time"

	beego "github.com/beego/beego/v2/server/web"
)

// APIResponse 统一 API 响应结构
// 所有 API 都应该返回这个结构，无论成功还是失败
type APIResponse struct {
	Code      int         `json:"code"`                // 业务错误码：0=成功，非0=失败
	Message   string      `json:"message"`             // 错误消息
	Data      interface{} `json:"data,omitempty"`      // 业务数据（失败时为 null）
	TraceID   string      `json:"trace_id,omitempty"`  // 请求追踪ID
	Timestamp int64       `json:"timestamp,omitempty"` // 响应时间戳（Unix 毫秒）
}

// 错误码定义
const (
	CodeSuccess             = 0    // 成功
	CodeBadRequest          = 1000 // 参数错误
	CodeBusinessError       = 2000 // 业务错误（通用）
	CodeUnknownGame         = 2001 // 游戏类型未注册
	CodeUnknownAction       = 2002 // 未知动作
	CodeInvalidAction       = 2003 // 动作参数不合法
	CodeRoundNotOpen        = 2004 // 回合不在下注窗口
	CodeRoundNotClosed      = 2005 // 回合尚未结束，不能结算
	CodeInvalidAmount       = 2006 // 金额不合法
	CodeInsufficientBalance = 2007 // 余额不足
	CodeAccountNotFound     = 2008 // 账户不存在或已禁用
	CodeNotFound            = 4004 // 资源不存在
	CodeRateLimitExceeded   = 4000 // 请求频率超限
	CodeSystemError         = 5000 // 系统错误
	CodeServiceUnavailable  = 5003 // 依赖暂不可用，可重试
)

// ErrorMessages 错误消息映射
var ErrorMessages = map[int]string{
	CodeSuccess:             "success",
	CodeBadRequest:          "参数错误",
	CodeBusinessError:       "业务处理失败",
	CodeUnknownGame:         "游戏类型不存在",
	CodeUnknownAction:       "不支持的动作",
	CodeInvalidAction:       "动作参数不合法",
	CodeRoundNotOpen:        "当前回合不可下注",
	CodeRoundNotClosed:      "回合尚未结束",
	CodeInvalidAmount:       "金额不合法",
	CodeInsufficientBalance: "余额不足",
	CodeAccountNotFound:     "账户不存在或已禁用",
	CodeNotFound:            "资源不存在",
	CodeRateLimitExceeded:   "请求频率超限，请稍后重试",
	CodeSystemError:         "系统繁忙，请稍后重试",
	CodeServiceUnavailable:  "服务暂不可用，请稍后重试",
}

// Success 成功响应
//
// 示例：
//
//	response.Success(&c.Controller, map[string]interface{}{
//	    "round_id": 1001,
//	    "bet": "100.00",
//	}, traceID)
func Success(c *beego.Controller, data interface{}, traceID string) {
	c.Data["json"] = APIResponse{
		Code:      CodeSuccess,
		Message:   ErrorMessages[CodeSuccess],
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	_ = c.ServeJSON()
}

// Error 错误响应（使用预定义的错误消息）
//
//	response.Error(&c.Controller, 409, response.CodeRoundNotClosed, traceID)
func Error(c *beego.Controller, httpStatus int, code int, traceID string) {
	ErrorWithMessage(c, httpStatus, code, getErrorMessage(code), traceID)
}

// ErrorWithMessage 错误响应（使用自定义错误消息）
func ErrorWithMessage(c *beego.Controller, httpStatus int, code int, message string, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   message,
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	_ = c.ServeJSON()
}

// BadRequest 参数错误响应（HTTP 400）
func BadRequest(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 400, CodeBadRequest, message, traceID)
}

// Conflict 状态冲突响应（HTTP 409）
func Conflict(c *beego.Controller, code int, traceID string) {
	Error(c, 409, code, traceID)
}

// NotFound 资源不存在响应（HTTP 404）
func NotFound(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 404, CodeNotFound, message, traceID)
}

// InternalError 系统错误响应（HTTP 500）
// 详细错误只记录日志，不返回给客户端
func InternalError(c *beego.Controller, traceID string) {
	Error(c, 500, CodeSystemError, traceID)
}

// Unavailable 依赖暂不可用（HTTP 503），建议客户端稍后重试
func Unavailable(c *beego.Controller, traceID string) {
	c.Ctx.Output.Header("Retry-After", "1")
	Error(c, 503, CodeServiceUnavailable, traceID)
}

// getErrorMessage 获取错误消息，如果未定义则返回通用消息
func getErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}
