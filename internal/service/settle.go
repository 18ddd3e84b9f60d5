package service

import (
	"context"
	"fmt"
	"time"

	log "mpg-server/common/logger"
	"mpg-server/internal/event"
	"mpg-server/internal/ledger"
	"mpg-server/internal/metrics"
	"mpg-server/internal/model"
	"mpg-server/internal/state"
	"mpg-server/internal/store"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 结算分支
const (
	CaseNoParticipants = "A" // 无人参与：仅串联下一局
	CaseSettle         = "B" // 存在进行中的参与记录：计算派彩并入账
	CaseAlreadySettled = "C" // 全部已完成：幂等返回，必要时补串联
)

// SettleInput AccountID 可选，用于返回调用方自己的参与记录
type SettleInput struct {
	RoundID   int64
	AccountID int64
}

type SettleOutput struct {
	RoundID     int64
	Case        string
	Participant *model.ParticipantGame
	NextRound   *model.Round
	Settled     int // 本次结算的参与记录数
	TotalBet    decimal.Decimal
	TotalWin    decimal.Decimal
	Noop        bool
}

// SettledEvent multiplayer_game_settled 事件载荷
type SettledEvent struct {
	RoundID      int64  `json:"round_id"`
	GameType     string `json:"game_type"`
	Case         string `json:"case"`
	Participants int    `json:"participants"`
	TotalBet     string `json:"total_bet"`
	TotalWin     string `json:"total_win"`
	NextRoundID  int64  `json:"next_round_id"`
	At           int64  `json:"at"`
}

func (e *SettledEvent) BizKey() string { return fmt.Sprintf("settled:%d", e.RoundID) }

// PlayedEvent game_played 事件载荷（每个参与者一条）
type PlayedEvent struct {
	RoundID       int64  `json:"round_id"`
	GameType      string `json:"game_type"`
	ParticipantID int64  `json:"participant_id"`
	AccountID     int64  `json:"account_id"`
	Bet           string `json:"bet"`
	Win           string `json:"win"`
}

func (e *PlayedEvent) BizKey() string { return fmt.Sprintf("played:%d:%d", e.RoundID, e.AccountID) }

// Settle 结算回合，可重复或并发调用：
// 锁顺序 gate -> playable -> round -> participants -> account，与开局、动作一致
// 串联下一局是事务的最后一步，失败则整个结算回滚
func (e *Engine) Settle(ctx context.Context, in SettleInput) (*SettleOutput, error) {
	start := time.Now()
	resultLabel := "fail"
	gameType, settleCase := "", ""
	defer func() { metrics.RecordSettle(resultLabel, gameType, settleCase, start) }()

	if in.RoundID <= 0 {
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
	if !e.allows(round, false, state.EvtSettle) {
		resultLabel = "rejected"
		return nil, ErrRoundNotClosed
	}
	commitment, err := e.store.GetCommitment(ctx, round.CommitmentID)
	if err != nil {
		return nil, errors.Wrapf(err, "load commitment round_id=%d", round.ID)
	}

	out := &SettleOutput{RoundID: round.ID, TotalBet: decimal.Zero, TotalWin: decimal.Zero}
	var (
		played  []*model.ParticipantGame
		chained bool
	)

	err = e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockGate(ctx, round.GameType); err != nil {
			return err
		}
		p, err := tx.GetPlayableForUpdate(ctx, round.PlayableID)
		if err != nil {
			return err
		}
		r, err := tx.GetRoundForUpdate(ctx, round.ID)
		if err != nil {
			return err
		}
		parts, err := tx.ListParticipantsForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		linked, firstSettle := r.HasNext(), !p.IsCompleted

		inProgress := false
		for _, pg := range parts {
			if pg.IsInProgress {
				inProgress = true
				break
			}
		}

		switch {
		case len(parts) == 0:
			out.Case = CaseNoParticipants
			if p.IsCompleted && linked {
				out.Noop = true
				break
			}
			if !p.IsCompleted {
				p.IsCompleted = true
				if err := tx.SavePlayable(ctx, p); err != nil {
					return err
				}
			}

		case inProgress:
			out.Case = CaseSettle
			final, err := g.BeforeComplete(p.State, commitment)
			if err != nil {
				return errors.Wrap(err, "before complete")
			}
			for _, pg := range parts {
				prevWin := pg.Win
				win, err := g.CalculateResult(pg, final)
				if err != nil {
					return errors.Wrapf(err, "calculate result participant_id=%d", pg.ID)
				}
				pg.Win = win.Round(2)
				pg.IsCompleted = true
				pg.IsInProgress = false
				if err := e.applyWinDelta(ctx, tx, r, pg, pg.Win.Sub(prevWin)); err != nil {
					return err
				}
				if err := tx.SaveParticipant(ctx, pg); err != nil {
					return err
				}
				out.TotalBet = out.TotalBet.Add(pg.Bet)
				out.TotalWin = out.TotalWin.Add(pg.Win)
			}
			out.Settled = len(parts)
			played = parts
			p.State = final
			p.IsCompleted = true
			if err := tx.SavePlayable(ctx, p); err != nil {
				return err
			}

		default:
			out.Case = CaseAlreadySettled
			if p.IsCompleted && linked {
				out.Noop = true
				break
			}
			// 已结算但缺少串联或完成标记：补齐
			if !p.IsCompleted {
				p.IsCompleted = true
				if err := tx.SavePlayable(ctx, p); err != nil {
					return err
				}
			}
		}

		if in.AccountID > 0 {
			for _, pg := range parts {
				if pg.AccountID == in.AccountID {
					out.Participant = pg
				}
			}
		}

		next, err := e.ChainNext(ctx, tx, r)
		if err != nil {
			return err
		}
		out.NextRound, chained = next, !linked
		if out.Noop || !firstSettle || out.Case == CaseAlreadySettled {
			return nil
		}
		return tx.InsertSettlementLog(ctx, &model.SettlementLog{
			RoundID:      r.ID,
			GameType:     r.GameType,
			SettleCase:   out.Case,
			Participants: out.Settled,
			TotalBet:     out.TotalBet,
			TotalWin:     out.TotalWin,
			NextRoundID:  next.ID,
			TraceID:      log.GetTraceID(ctx),
		})
	})
	settleCase = out.Case
	if err != nil {
		log.ErrorCtx(ctx, "settle failed", zap.Int64("round_id", round.ID), zap.String("case", out.Case), zap.Error(err))
		return nil, err
	}

	if out.Noop {
		resultLabel = "noop"
		return out, nil
	}
	resultLabel = "success"
	e.evictRound(ctx, round)
	if chained {
		metrics.RecordRoundOpened(round.GameType, "chain")
		e.cacheRound(ctx, out.NextRound)
	}
	log.InfoCtx(ctx, "round settled", zap.Int64("round_id", round.ID), zap.String("case", out.Case),
		zap.Int("participants", out.Settled), zap.String("total_win", out.TotalWin.StringFixed(2)),
		zap.Int64("next_round_id", out.NextRound.ID))

	if out.Case == CaseAlreadySettled {
		return out, nil
	}
	for _, pg := range played {
		e.publish(ctx, event.GamePlayed, &PlayedEvent{
			RoundID:       round.ID,
			GameType:      round.GameType,
			ParticipantID: pg.ID,
			AccountID:     pg.AccountID,
			Bet:           pg.Bet.StringFixed(2),
			Win:           pg.Win.StringFixed(2),
		})
	}
	e.publish(ctx, event.MultiplayerGameSettled, &SettledEvent{
		RoundID:      round.ID,
		GameType:     round.GameType,
		Case:         out.Case,
		Participants: out.Settled,
		TotalBet:     out.TotalBet.StringFixed(2),
		TotalWin:     out.TotalWin.StringFixed(2),
		NextRoundID:  out.NextRound.ID,
		At:           e.nowMs(),
	})
	return out, nil
}

// applyWinDelta 派彩差额入账；重算导致差额为负时扣回
func (e *Engine) applyWinDelta(ctx context.Context, tx store.Tx, r *model.Round, pg *model.ParticipantGame, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	entry := ledger.Entry{
		Reason:        ledger.ReasonSettle,
		AccountID:     pg.AccountID,
		Amount:        delta.Abs(),
		RoundID:       r.ID,
		ParticipantID: pg.ID,
		GameType:      r.GameType,
		TraceID:       log.GetTraceID(ctx),
	}
	if delta.IsPositive() {
		return errors.Wrapf(e.ledger.Credit(ctx, tx, entry), "credit account_id=%d", pg.AccountID)
	}
	entry.Reason = ledger.ReasonAdjust
	return errors.Wrapf(e.ledger.Debit(ctx, tx, entry), "adjust account_id=%d", pg.AccountID)
}
