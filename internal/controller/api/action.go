package api

import (
	"mpg-server/internal/common/helper"
	"mpg-server/internal/common/response"
	"mpg-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// ActionController 玩家动作：POST /api/rounds/:round_id/action
type ActionController struct{ beego.Controller }

func (c *ActionController) Act() {
	traceID := helper.GetTraceID(c.Ctx)
	roundID, ok := helper.ParamInt64(c.Ctx, ":round_id")
	if !ok {
		response.BadRequest(&c.Controller, "invalid round_id", traceID)
		return
	}
	// 这里必须对入参严格校验，金额等游戏相关字段由游戏自己校验
	in, ok, msg := helper.ParseAndValidateAction(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	out, err := svc.Actions.Apply(c.Ctx.Request.Context(), service.ActionInput{
		AccountID: in.AccountID,
		RoundID:   roundID,
		Action:    in.Action,
		Payload:   in.Payload,
	})
	if err != nil {
		writeError(&c.Controller, err, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"round_id":    out.RoundID,
		"participant": out.Participant,
		"delta":       out.Delta.StringFixed(2),
		"noop":        out.Noop,
	}, traceID)
}
