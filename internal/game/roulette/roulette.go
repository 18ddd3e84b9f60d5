// Package roulette 欧式轮盘（37 个号码）多人游戏
package roulette

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"time"

	"mpg-server/common/helper"
	"mpg-server/internal/game"
	"mpg-server/internal/model"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	Type      = "roulette"
	ActionBet = "bet"

	Pockets = 37
)

// 投注类型
const (
	BetStraight = "straight"
	BetRed      = "red"
	BetBlack    = "black"
	BetOdd      = "odd"
	BetEven     = "even"
	BetLow      = "low"  // 1-18
	BetHigh     = "high" // 19-36
	BetDozen    = "dozen"
)

// 含本金的赔付倍数
var payouts = map[string]int64{
	BetStraight: 36,
	BetRed:      2,
	BetBlack:    2,
	BetOdd:      2,
	BetEven:     2,
	BetLow:      2,
	BetHigh:     2,
	BetDozen:    3,
}

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

var betTypes = []string{BetStraight, BetRed, BetBlack, BetOdd, BetEven, BetLow, BetHigh, BetDozen}

// Bet 单笔投注
type Bet struct {
	AccountID int64           `json:"account_id"`
	Type      string          `json:"type"`
	Number    int             `json:"number,omitempty"` // straight: 0-36, dozen: 1-3
	Amount    decimal.Decimal `json:"amount"`
}

// State 共享状态，number 在结算前揭晓
type State struct {
	Bets   []Bet `json:"bets"`
	Number *int  `json:"number,omitempty"`
}

// BetPayload bet 动作请求体
type BetPayload struct {
	Type   string          `json:"type"`
	Number int             `json:"number"`
	Amount decimal.Decimal `json:"amount"`
}

// Options 游戏参数
type Options struct {
	Duration time.Duration
	Interval time.Duration
	MinBet   decimal.Decimal
	MaxBet   decimal.Decimal
}

// DefaultOptions 默认参数：30 秒下注，5 秒间隔
func DefaultOptions() Options {
	return Options{
		Duration: 30 * time.Second,
		Interval: 5 * time.Second,
		MinBet:   decimal.NewFromInt(1),
		MaxBet:   decimal.NewFromInt(10000),
	}
}

type Roulette struct {
	opts Options
}

func New(opts Options) *Roulette {
	def := DefaultOptions()
	if opts.Duration <= 0 {
		opts.Duration = def.Duration
	}
	if opts.Interval < 0 {
		opts.Interval = def.Interval
	}
	if !opts.MinBet.IsPositive() {
		opts.MinBet = def.MinBet
	}
	if !opts.MaxBet.IsPositive() {
		opts.MaxBet = def.MaxBet
	}
	return &Roulette{opts: opts}
}

var _ game.Game = (*Roulette)(nil)

func (r *Roulette) Type() string            { return Type }
func (r *Roulette) Duration() time.Duration { return r.opts.Duration }
func (r *Roulette) Interval() time.Duration { return r.opts.Interval }

// MakeSecret HMAC-SHA256(seed, "roulette") 取前 8 字节对 37 取模
func (r *Roulette) MakeSecret(seed []byte) string {
	mac := hmac.New(sha256.New, seed)
	mac.Write([]byte(Type))
	sum := mac.Sum(nil)
	return strconv.FormatUint(binary.BigEndian.Uint64(sum[:8])%Pockets, 10)
}

func (r *Roulette) CreatePlayable() (json.RawMessage, error) {
	return json.Marshal(State{Bets: []Bet{}})
}

func (r *Roulette) ApplyAction(action string, raw json.RawMessage, req game.Request) (json.RawMessage, decimal.Decimal, error) {
	if action != ActionBet {
		return nil, decimal.Zero, game.ErrUnknownAction
	}
	st, err := decodeState(raw)
	if err != nil {
		return nil, decimal.Zero, err
	}
	var p BetPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return nil, decimal.Zero, errors.Wrap(game.ErrInvalidRequest, err.Error())
	}
	if err := r.validate(p); err != nil {
		return nil, decimal.Zero, err
	}
	if st.Number != nil {
		return nil, decimal.Zero, errors.Wrap(game.ErrInvalidRequest, "number already drawn")
	}

	st.Bets = append(st.Bets, Bet{AccountID: req.AccountID, Type: p.Type, Number: p.Number, Amount: p.Amount})
	out, err := json.Marshal(st)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return out, p.Amount, nil
}

func (r *Roulette) validate(p BetPayload) error {
	if _, ok := payouts[p.Type]; !ok {
		return errors.Wrapf(game.ErrInvalidRequest, "bet type %q", p.Type)
	}
	if !p.Amount.Equal(p.Amount.Round(helper.MoneyPlaces)) {
		return errors.Wrap(game.ErrInvalidRequest, "amount precision")
	}
	if p.Amount.LessThan(r.opts.MinBet) || p.Amount.GreaterThan(r.opts.MaxBet) {
		return errors.Wrapf(game.ErrInvalidRequest, "amount %s out of range", p.Amount)
	}
	switch p.Type {
	case BetStraight:
		if p.Number < 0 || p.Number >= Pockets {
			return errors.Wrapf(game.ErrInvalidRequest, "straight number %d", p.Number)
		}
	case BetDozen:
		if p.Number < 1 || p.Number > 3 {
			return errors.Wrapf(game.ErrInvalidRequest, "dozen %d", p.Number)
		}
	}
	return nil
}

func (r *Roulette) ActionData(action string, raw json.RawMessage, req game.Request) map[string]any {
	data := map[string]any{"action": action, "account_id": req.AccountID}
	var p BetPayload
	if err := json.Unmarshal(req.Payload, &p); err == nil {
		data["type"] = p.Type
		data["amount"] = helper.TrimDecimal(p.Amount)
		if p.Type == BetStraight || p.Type == BetDozen {
			data["number"] = p.Number
		}
	}
	if st, err := decodeState(raw); err == nil {
		data["bets"] = len(st.Bets)
	}
	return data
}

// BeforeComplete 揭晓开奖号码 (secret + client_seed) mod 37，重复调用结果不变
func (r *Roulette) BeforeComplete(raw json.RawMessage, c *model.Commitment) (json.RawMessage, error) {
	st, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	n, err := WinningNumber(c)
	if err != nil {
		return nil, err
	}
	st.Number = &n
	return json.Marshal(st)
}

// WinningNumber 由承诺推导开奖号码
func WinningNumber(c *model.Commitment) (int, error) {
	if c == nil {
		return 0, errors.New("nil commitment")
	}
	secret, err := strconv.ParseInt(c.Secret, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse secret")
	}
	return int((secret + c.ClientSeed) % Pockets), nil
}

func (r *Roulette) CalculateResult(p *model.ParticipantGame, raw json.RawMessage) (decimal.Decimal, error) {
	st, err := decodeState(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if st.Number == nil {
		return decimal.Zero, errors.New("roulette number not drawn")
	}
	win := decimal.Zero
	for _, b := range st.Bets {
		if b.AccountID != p.AccountID || !Wins(b, *st.Number) {
			continue
		}
		win = win.Add(b.Amount.Mul(decimal.NewFromInt(payouts[b.Type])))
	}
	return helper.RoundMoney(win), nil
}

// Wins 判断投注是否命中；0 只对 straight 0 命中
func Wins(b Bet, n int) bool {
	if b.Type == BetStraight {
		return b.Number == n
	}
	if n == 0 {
		return false
	}
	switch b.Type {
	case BetRed:
		return redNumbers[n]
	case BetBlack:
		return !redNumbers[n]
	case BetOdd:
		return n%2 == 1
	case BetEven:
		return n%2 == 0
	case BetLow:
		return n <= 18
	case BetHigh:
		return n >= 19
	case BetDozen:
		return (n-1)/12+1 == b.Number
	}
	return false
}

// CreateRandomGame 以随机投注参与回合
func (r *Roulette) CreateRandomGame(ctx context.Context, player game.Player, accountID int64, round *model.Round) error {
	lo := int(r.opts.MinBet.Ceil().IntPart())
	p := BetPayload{
		Type:   helper.PickString(betTypes),
		Amount: decimal.NewFromInt(int64(helper.GenerateRandNum(lo, lo+100))),
	}
	switch p.Type {
	case BetStraight:
		p.Number = helper.GenerateRandNum(0, Pockets)
	case BetDozen:
		p.Number = helper.GenerateRandNum(1, 4)
	}
	if p.Amount.GreaterThan(r.opts.MaxBet) {
		p.Amount = r.opts.MaxBet
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return player.Act(ctx, accountID, round.ID, ActionBet, payload)
}

func decodeState(raw json.RawMessage) (*State, error) {
	st := &State{}
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, errors.Wrap(err, "decode roulette state")
	}
	return st, nil
}
