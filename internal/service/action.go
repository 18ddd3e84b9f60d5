package service

import (
	"context"
	"encoding/json"
	"time"

	log "mpg-server/common/logger"
	"mpg-server/internal/event"
	"mpg-server/internal/game"
	"mpg-server/internal/ledger"
	"mpg-server/internal/metrics"
	"mpg-server/internal/model"
	"mpg-server/internal/state"
	"mpg-server/internal/store"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActionInput 玩家动作输入，账户显式传入
type ActionInput struct {
	AccountID int64
	RoundID   int64
	Action    string
	Payload   json.RawMessage
}

type ActionOutput struct {
	RoundID     int64
	Participant *model.ParticipantGame
	Delta       decimal.Decimal // 本次扣款金额
	Noop        bool            // 参与记录已结束，未做任何变更
}

// ActionEvent multiplayer_game_action 事件载荷
type ActionEvent struct {
	RoundID   int64          `json:"round_id"`
	GameType  string         `json:"game_type"`
	AccountID int64          `json:"account_id"`
	Action    string         `json:"action"`
	Bet       string         `json:"bet"`
	Delta     string         `json:"delta"`
	Data      map[string]any `json:"data,omitempty"`
	At        int64          `json:"at"`
}

// Apply 处理玩家动作：
// 1. 回合必须处于 [start, end) 窗口
// 2. 单事务内锁定共享状态与参与记录，按游戏规则计算新状态与投注增量
// 3. 扣款、累加投注、保存；余额不足整体回滚
// 4. 提交后广播动作事件
func (e *Engine) Apply(ctx context.Context, in ActionInput) (*ActionOutput, error) {
	start := time.Now()
	resultLabel := "fail"
	gameType := ""
	defer func() { metrics.RecordAction(resultLabel, gameType, in.Action, start) }()

	if in.AccountID <= 0 || in.RoundID <= 0 || in.Action == "" {
		resultLabel = "rejected"
		return nil, ErrBadRequest
	}

	round, err := e.store.GetRound(ctx, in.RoundID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resultLabel = "rejected"
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	gameType = round.GameType
	g, err := e.games.Lookup(round.GameType)
	if err != nil {
		return nil, err
	}
	if !e.allows(round, false, state.EvtAction) {
		resultLabel = "rejected"
		log.InfoCtx(ctx, "action rejected: round not open", zap.Int64("round_id", round.ID), zap.Int64("account_id", in.AccountID))
		return nil, ErrRoundNotOpen
	}

	req := game.Request{AccountID: in.AccountID, Payload: in.Payload}
	out := &ActionOutput{RoundID: round.ID}
	var data map[string]any

	err = e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetPlayableForUpdate(ctx, round.PlayableID)
		if err != nil {
			return err
		}
		// 持锁后再次校验：结算可能已经完成，或等锁期间窗口已关闭
		if !e.allows(round, p.IsCompleted, state.EvtAction) {
			return ErrRoundNotOpen
		}

		part, err := e.participantFor(ctx, tx, round, in.AccountID)
		if err != nil {
			return err
		}
		out.Participant = part
		if !part.IsInProgress {
			out.Noop = true
			return nil
		}

		newState, delta, err := g.ApplyAction(in.Action, p.State, req)
		if err != nil {
			return mapGameErr(err)
		}
		if delta.IsNegative() {
			return ErrInvalidAmount
		}
		delta = delta.Round(2)

		if delta.IsPositive() {
			err := e.ledger.Debit(ctx, tx, ledger.Entry{
				Reason:        ledger.ReasonBet,
				AccountID:     in.AccountID,
				Amount:        delta,
				RoundID:       round.ID,
				ParticipantID: part.ID,
				GameType:      round.GameType,
				Remark:        in.Action,
				TraceID:       log.GetTraceID(ctx),
			})
			if err != nil {
				return mapLedgerErr(err)
			}
		}

		part.Bet = part.Bet.Add(delta)
		if err := tx.SaveParticipant(ctx, part); err != nil {
			return err
		}
		p.State = newState
		if err := tx.SavePlayable(ctx, p); err != nil {
			return err
		}
		out.Delta = delta
		data = g.ActionData(in.Action, newState, req)
		return nil
	})
	if err != nil {
		if IsValidation(err) {
			resultLabel = "rejected"
			log.InfoCtx(ctx, "action rejected", zap.Int64("round_id", round.ID), zap.Int64("account_id", in.AccountID),
				zap.String("action", in.Action), zap.Error(err))
			return nil, err
		}
		log.ErrorCtx(ctx, "action failed", zap.Int64("round_id", round.ID), zap.Int64("account_id", in.AccountID), zap.Error(err))
		return nil, err
	}

	if out.Noop {
		resultLabel = "noop"
		return out, nil
	}
	resultLabel = "success"
	e.publish(ctx, event.MultiplayerGameAction, &ActionEvent{
		RoundID:   round.ID,
		GameType:  round.GameType,
		AccountID: in.AccountID,
		Action:    in.Action,
		Bet:       out.Participant.Bet.StringFixed(2),
		Delta:     out.Delta.StringFixed(2),
		Data:      data,
		At:        e.nowMs(),
	})
	return out, nil
}

// participantFor 查找或创建参与记录（加锁）；并发插入冲突时重新读取
func (e *Engine) participantFor(ctx context.Context, tx store.Tx, round *model.Round, accountID int64) (*model.ParticipantGame, error) {
	part, err := tx.GetParticipantForUpdate(ctx, round.PlayableID, accountID)
	if err == nil {
		return part, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	part = &model.ParticipantGame{
		AccountID:    accountID,
		RoundID:      round.ID,
		PlayableID:   round.PlayableID,
		Bet:          decimal.Zero,
		Win:          decimal.Zero,
		IsInProgress: true,
	}
	err = tx.InsertParticipant(ctx, part)
	if errors.Is(err, store.ErrDuplicate) {
		return tx.GetParticipantForUpdate(ctx, round.PlayableID, accountID)
	}
	if err != nil {
		return nil, err
	}
	return part, nil
}

func mapGameErr(err error) error {
	switch {
	case errors.Is(err, game.ErrUnknownAction):
		return errors.Wrap(ErrUnknownAction, err.Error())
	case errors.Is(err, game.ErrInvalidRequest):
		return errors.Wrap(ErrInvalidAction, err.Error())
	}
	return err
}

func mapLedgerErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return ErrInsufficientBalance
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrAccountDisabled):
		return errors.Wrap(ErrAccountNotFound, err.Error())
	}
	return errors.Wrap(err, "ledger")
}
