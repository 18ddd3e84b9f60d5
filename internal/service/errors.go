package service

import (
	"errors"

	"mpg-server/internal/game"
)

// 校验类错误：返回给调用方，不产生任何状态变更，不按系统错误记录
var (
	ErrBadRequest          = errors.New("bad request")
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundNotOpen        = errors.New("round not open")
	ErrRoundNotClosed      = errors.New("round not closed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrUnknownAction       = errors.New("unknown action")
	ErrInvalidAction       = errors.New("invalid action request")
	ErrInvalidAmount       = errors.New("invalid bet amount")
)

var validationErrors = []error{
	ErrBadRequest,
	ErrRoundNotFound,
	ErrRoundNotOpen,
	ErrRoundNotClosed,
	ErrInsufficientBalance,
	ErrAccountNotFound,
	ErrUnknownAction,
	ErrInvalidAction,
	ErrInvalidAmount,
	game.ErrGameNotRegistered,
}

// IsValidation 是否为校验类错误（HTTP 4xx）
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
