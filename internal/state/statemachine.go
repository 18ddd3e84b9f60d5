package state

import "github.com/pkg/errors"

// Phase 回合阶段，由时间与结算标记推导，不单独落库
const (
	PhaseScheduled = "scheduled" // 已创建，未到开始时间
	PhaseOpen      = "open"      // 可下注 [start, end)
	PhaseClosed    = "closed"    // 已到结束时间，等待结算
	PhaseSettled   = "settled"   // 已结算（playable.is_completed）
)

// Event 作用于回合的操作
const (
	EvtAction = "action" // 玩家动作
	EvtSettle = "settle" // 结算
)

var ErrInvalidTransition = errors.New("invalid phase transition")

// PhaseOf 根据回合时间与结算标记计算当前阶段
func PhaseOf(startMs, endMs int64, settled bool, nowMs int64) string {
	switch {
	case settled:
		return PhaseSettled
	case nowMs < startMs:
		return PhaseScheduled
	case nowMs < endMs:
		return PhaseOpen
	default:
		return PhaseClosed
	}
}

// NextPhase 当前阶段执行某操作后的阶段，不允许的操作返回 ErrInvalidTransition
// 已结算的回合允许再次结算（幂等修复）
func NextPhase(cur, evt string) (string, error) {
	switch {
	case cur == PhaseOpen && evt == EvtAction:
		return PhaseOpen, nil
	case cur == PhaseClosed && evt == EvtSettle:
		return PhaseSettled, nil
	case cur == PhaseSettled && evt == EvtSettle:
		return PhaseSettled, nil
	}
	return cur, errors.Wrapf(ErrInvalidTransition, "%s --%s-->", cur, evt)
}
