package game

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mpg-server/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrGameNotRegistered = errors.New("game not registered")
	ErrUnknownAction     = errors.New("unknown action")
	ErrInvalidRequest    = errors.New("invalid action request")
)

// Request 玩家动作请求（payload 由具体游戏解析）
type Request struct {
	AccountID int64
	Payload   json.RawMessage
}

// Player 驱动玩家动作的入口，由引擎实现（供机器人流量使用）
type Player interface {
	Act(ctx context.Context, accountID, roundID int64, action string, payload json.RawMessage) error
}

// Game 多人游戏契约
// 引擎只负责回合生命周期、扣款与结算，游戏规则全部由实现方决定
type Game interface {
	// Type 游戏类型标识，同时作为回合的 game_type
	Type() string
	// Duration 单局可下注时长
	Duration() time.Duration
	// Interval 结算后下一局的开始延迟
	Interval() time.Duration

	// MakeSecret 由服务端种子确定性推导秘密值
	MakeSecret(seed []byte) string
	// CreatePlayable 新局的初始共享状态
	CreatePlayable() (json.RawMessage, error)

	// ApplyAction 在共享状态上应用动作，返回新状态与本次投注增量（>= 0）
	ApplyAction(action string, state json.RawMessage, req Request) (json.RawMessage, decimal.Decimal, error)
	// ActionData 动作广播事件的附加数据
	ActionData(action string, state json.RawMessage, req Request) map[string]any

	// BeforeComplete 结算前一次性揭晓结果（例如由承诺计算开奖号码）
	BeforeComplete(state json.RawMessage, c *model.Commitment) (json.RawMessage, error)
	// CalculateResult 计算单个参与者的派彩金额
	CalculateResult(p *model.ParticipantGame, state json.RawMessage) (decimal.Decimal, error)

	// CreateRandomGame 以给定账户在回合内生成随机动作
	CreateRandomGame(ctx context.Context, player Player, accountID int64, round *model.Round) error
}
