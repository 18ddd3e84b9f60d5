package api

import (
	"mpg-server/internal/common/helper"
	"mpg-server/internal/common/response"
	"mpg-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// SettleController 手动结算：POST /api/rounds/:round_id/settle
// 可重复调用；未到结束时间返回 409
type SettleController struct{ beego.Controller }

func (c *SettleController) Settle() {
	traceID := helper.GetTraceID(c.Ctx)
	roundID, ok := helper.ParamInt64(c.Ctx, ":round_id")
	if !ok {
		response.BadRequest(&c.Controller, "invalid round_id", traceID)
		return
	}
	in, ok, msg := helper.ParseAndValidateSettle(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	out, err := svc.Settle.Settle(c.Ctx.Request.Context(), service.SettleInput{RoundID: roundID, AccountID: in.AccountID})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}

	data := map[string]interface{}{
		"round_id":    out.RoundID,
		"case":        out.Case,
		"noop":        out.Noop,
		"settled":     out.Settled,
		"total_bet":   out.TotalBet.StringFixed(2),
		"total_win":   out.TotalWin.StringFixed(2),
		"participant": out.Participant,
	}
	if out.NextRound != nil {
		data["next_round"] = newRoundView(out.NextRound, false, svc.Now().UnixMilli())
	}
	response.Success(&c.Controller, data, traceID)
}
