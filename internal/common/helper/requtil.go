package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second

	maxActionLen = 32
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// ParamInt64 读取路由参数并解析为正整数
func ParamInt64(ctx *beegocontext.Context, key string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(ctx.Input.Param(key)), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseByContentType 按 Content-Type 选择解析函数
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- Action helpers --------

// ActionParsed 玩家动作入参；payload 原样透传给游戏
type ActionParsed struct {
	AccountID int64           `json:"account_id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
}

func ParseActionFromJSON(r io.Reader) (ActionParsed, bool, string) {
	var out ActionParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return ActionParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseActionFromForm 表单模式下 payload 以 JSON 字符串传入
func ParseActionFromForm(ctx *beegocontext.Context) (ActionParsed, bool, string) {
	var out ActionParsed
	aid, err := strconv.ParseInt(strings.TrimSpace(ctx.Input.Query("account_id")), 10, 64)
	if err != nil {
		return ActionParsed{}, false, "account_id must be integer"
	}
	out.AccountID = aid
	out.Action = strings.TrimSpace(ctx.Input.Query("action"))
	if p := strings.TrimSpace(ctx.Input.Query("payload")); p != "" {
		if !json.Valid([]byte(p)) {
			return ActionParsed{}, false, "payload must be json"
		}
		out.Payload = json.RawMessage(p)
	}
	return out, true, ""
}

func ValidateAction(in *ActionParsed) (bool, string) {
	if in.AccountID <= 0 {
		return false, "account_id required"
	}
	if in.Action == "" || len(in.Action) > maxActionLen {
		return false, "invalid action"
	}
	return true, ""
}

// ParseAndValidateAction 按 Content-Type 自动解析并做统一校验
func ParseAndValidateAction(ctx *beegocontext.Context) (ActionParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseActionFromJSON, ParseActionFromForm)
	if !ok {
		return ActionParsed{}, false, msg
	}
	if ok, msg := ValidateAction(&out); !ok {
		return ActionParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Settle helpers --------

// SettleParsed account_id 可选
type SettleParsed struct {
	AccountID int64 `json:"account_id"`
}

func ParseSettleFromJSON(r io.Reader) (SettleParsed, bool, string) {
	var out SettleParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil && err != io.EOF {
		return SettleParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseSettleFromForm(ctx *beegocontext.Context) (SettleParsed, bool, string) {
	var out SettleParsed
	if s := strings.TrimSpace(ctx.Input.Query("account_id")); s != "" {
		aid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return SettleParsed{}, false, "account_id must be integer"
		}
		out.AccountID = aid
	}
	return out, true, ""
}

func ParseAndValidateSettle(ctx *beegocontext.Context) (SettleParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseSettleFromJSON, ParseSettleFromForm)
	if !ok {
		return SettleParsed{}, false, msg
	}
	if out.AccountID < 0 {
		return SettleParsed{}, false, "invalid account_id"
	}
	return out, true, ""
}
