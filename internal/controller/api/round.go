package api

import (
	"context"

	"mpg-server/common/logger"
	"mpg-server/internal/common/helper"
	"mpg-server/internal/common/response"
	"mpg-server/internal/fairness"
	"mpg-server/internal/model"
	"mpg-server/internal/state"
	"mpg-server/internal/store"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RoundController 回合查询
// GET /api/rounds/:game_type/current  当前回合（不存在则开启）
// GET /api/rounds/:round_id/fairness  公平性承诺；回合结束后公开种子并校验
type RoundController struct{ beego.Controller }

// roundView 回合对外视图，另附秒级时间供前端倒计时
type roundView struct {
	*model.Round
	StartTimeUnix int64  `json:"start_time_unix"`
	EndTimeUnix   int64  `json:"end_time_unix"`
	Phase         string `json:"phase"`
	NextRoundID   int64  `json:"next_round_id,omitempty"`
}

// newRoundView settled 取自 playable.is_completed
func newRoundView(r *model.Round, settled bool, nowMs int64) roundView {
	v := roundView{
		Round:         r,
		StartTimeUnix: r.StartTimeUnix(),
		EndTimeUnix:   r.EndTimeUnix(),
		Phase:         state.PhaseOf(r.StartTime, r.EndTime, settled, nowMs),
	}
	if r.HasNext() {
		v.NextRoundID = r.NextRoundID.Int64
	}
	return v
}

func loadRoundView(ctx context.Context, r *model.Round, nowMs int64) (roundView, error) {
	p, err := svc.Store.GetPlayable(ctx, r.PlayableID)
	if err != nil {
		return roundView{}, errors.Wrap(err, "load playable")
	}
	return newRoundView(r, p.IsCompleted, nowMs), nil
}

func (c *RoundController) Current() {
	traceID := helper.GetTraceID(c.Ctx)
	ctx := c.Ctx.Request.Context()
	gameType := c.Ctx.Input.Param(":game_type")
	if gameType == "" {
		response.BadRequest(&c.Controller, "game_type is required", traceID)
		return
	}

	r, err := svc.Rounds.Current(ctx, gameType)
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	cm, err := svc.Store.GetCommitment(ctx, r.CommitmentID)
	if err != nil {
		writeError(&c.Controller, errors.Wrap(err, "load commitment"), traceID)
		return
	}
	nowMs := svc.Now().UnixMilli()
	view, err := loadRoundView(ctx, r, nowMs)
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{
		"round":    view,
		"fairness": fairness.Reveal(cm, r, nowMs),
	}, traceID)
}

func (c *RoundController) Fairness() {
	traceID := helper.GetTraceID(c.Ctx)
	ctx := c.Ctx.Request.Context()
	roundID, ok := helper.ParamInt64(c.Ctx, ":round_id")
	if !ok {
		response.BadRequest(&c.Controller, "invalid round_id", traceID)
		return
	}

	r, err := svc.Store.GetRound(ctx, roundID)
	if errors.Is(err, store.ErrNotFound) {
		response.NotFound(&c.Controller, "round not found", traceID)
		return
	}
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	cm, err := svc.Store.GetCommitment(ctx, r.CommitmentID)
	if err != nil {
		writeError(&c.Controller, errors.Wrap(err, "load commitment"), traceID)
		return
	}

	nowMs := svc.Now().UnixMilli()
	rv, err := loadRoundView(ctx, r, nowMs)
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}
	view := fairness.Reveal(cm, r, nowMs)
	data := map[string]interface{}{
		"round":    rv,
		"fairness": view,
	}
	if view.Revealed {
		g, err := svc.Games.Lookup(r.GameType)
		if err != nil {
			writeError(&c.Controller, err, traceID)
			return
		}
		verr := fairness.Verify(g, cm)
		if verr != nil {
			logger.ErrorCtx(ctx, "commitment verify failed", zap.Int64("round_id", r.ID), zap.Error(verr))
		}
		data["verified"] = verr == nil
	}
	response.Success(&c.Controller, data, traceID)
}

// writeError 统一错误输出；非校验类错误记录日志
func writeError(c *beego.Controller, err error, traceID string) {
	status, code := errorStatus(err)
	if status >= 500 {
		logger.ErrorCtx(c.Ctx.Request.Context(), "request failed",
			zap.String("path", c.Ctx.Request.URL.Path), zap.Error(err))
		response.Unavailable(c, traceID)
		return
	}
	response.Error(c, status, code, traceID)
}
