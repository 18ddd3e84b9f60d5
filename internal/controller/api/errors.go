package api

import (
	"errors"

	"mpg-server/internal/common/response"
	"mpg-server/internal/game"
	"mpg-server/internal/service"
)

// errorStatus 业务错误映射为 HTTP 状态码与业务码
// 校验类错误 4xx；其余视为暂时性错误 503，可重试
func errorStatus(err error) (int, int) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		return 400, response.CodeBadRequest
	case errors.Is(err, game.ErrGameNotRegistered):
		return 404, response.CodeUnknownGame
	case errors.Is(err, service.ErrRoundNotFound):
		return 404, response.CodeNotFound
	case errors.Is(err, service.ErrAccountNotFound):
		return 404, response.CodeAccountNotFound
	case errors.Is(err, service.ErrRoundNotOpen):
		return 409, response.CodeRoundNotOpen
	case errors.Is(err, service.ErrRoundNotClosed):
		return 409, response.CodeRoundNotClosed
	case errors.Is(err, service.ErrInsufficientBalance):
		return 400, response.CodeInsufficientBalance
	case errors.Is(err, service.ErrUnknownAction):
		return 400, response.CodeUnknownAction
	case errors.Is(err, service.ErrInvalidAction):
		return 400, response.CodeInvalidAction
	case errors.Is(err, service.ErrInvalidAmount):
		return 400, response.CodeInvalidAmount
	}
	return 503, response.CodeServiceUnavailable
}
