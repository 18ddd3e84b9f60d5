package redis

import "strconv"

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixCurrentRound：游戏类型当前开放回合缓存，用于前端倒计时等快速查询
	PrefixCurrentRound = "mpg:round:current:"
	// PrefixSettleLock：结算调度锁，多实例部署时避免同一回合被并发触发结算
	PrefixSettleLock = "mpg:settle:lock:"
	// PrefixEventChannel：事件广播频道
	PrefixEventChannel = "mpg:events:"
)

// CurrentRoundKey 形如：mpg:round:current:{game_type}
func CurrentRoundKey(gameType string) string { return PrefixCurrentRound + gameType }

// SettleLockKey 形如：mpg:settle:lock:{round_id}
func SettleLockKey(roundID int64) string { return PrefixSettleLock + strconv.FormatInt(roundID, 10) }

// EventChannel 形如：mpg:events:{event_name}
func EventChannel(name string) string { return PrefixEventChannel + name }
