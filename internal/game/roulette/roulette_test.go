package roulette

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"mpg-server/internal/game"
	"mpg-server/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeBet(t *testing.T, r *Roulette, state json.RawMessage, account int64, payload string) json.RawMessage {
	t.Helper()
	out, delta, err := r.ApplyAction(ActionBet, state, game.Request{AccountID: account, Payload: json.RawMessage(payload)})
	require.NoError(t, err)
	require.True(t, delta.IsPositive())
	return out
}

func TestMakeSecretDeterministic(t *testing.T) {
	r := New(Options{})
	seed := []byte("0123456789abcdef0123456789abcdef")
	a, b := r.MakeSecret(seed), r.MakeSecret(seed)
	assert.Equal(t, a, b)

	n, err := WinningNumber(&model.Commitment{Secret: a, ClientSeed: 0})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
	assert.Less(t, n, Pockets)
}

func TestWinningNumber(t *testing.T) {
	n, err := WinningNumber(&model.Commitment{Secret: "36", ClientSeed: 10000001})
	require.NoError(t, err)
	assert.Equal(t, (36+10000001)%37, n)

	_, err = WinningNumber(&model.Commitment{Secret: "x"})
	assert.Error(t, err)
}

func TestApplyActionAccumulatesBets(t *testing.T) {
	r := New(Options{})
	st, err := r.CreatePlayable()
	require.NoError(t, err)

	st = placeBet(t, r, st, 1, `{"type":"red","amount":"10"}`)
	st = placeBet(t, r, st, 2, `{"type":"straight","number":17,"amount":5.5}`)

	var decoded State
	require.NoError(t, json.Unmarshal(st, &decoded))
	require.Len(t, decoded.Bets, 2)
	assert.Equal(t, int64(2), decoded.Bets[1].AccountID)
	assert.True(t, decoded.Bets[1].Amount.Equal(decimal.RequireFromString("5.5")))
}

func TestApplyActionRejects(t *testing.T) {
	r := New(Options{})
	st, _ := r.CreatePlayable()

	_, _, err := r.ApplyAction("fold", st, game.Request{AccountID: 1})
	assert.True(t, errors.Is(err, game.ErrUnknownAction))

	cases := []string{
		`{"type":"corner","amount":"1"}`,
		`{"type":"red","amount":"0"}`,
		`{"type":"red","amount":"1.234"}`,
		`{"type":"red","amount":"100000"}`,
		`{"type":"straight","number":37,"amount":"1"}`,
		`{"type":"dozen","number":0,"amount":"1"}`,
		`not json`,
	}
	for _, c := range cases {
		_, _, err := r.ApplyAction(ActionBet, st, game.Request{AccountID: 1, Payload: json.RawMessage(c)})
		assert.True(t, errors.Is(err, game.ErrInvalidRequest), c)
	}
}

func TestCalculateResult(t *testing.T) {
	r := New(Options{})
	st, _ := r.CreatePlayable()
	st = placeBet(t, r, st, 1, `{"type":"straight","number":7,"amount":"2"}`)
	st = placeBet(t, r, st, 1, `{"type":"red","amount":"10"}`)
	st = placeBet(t, r, st, 1, `{"type":"dozen","number":1,"amount":"3"}`)
	st = placeBet(t, r, st, 2, `{"type":"black","amount":"10"}`)

	// secret 7, client seed 0 -> 7 (red, odd, low, first dozen)
	st, err := r.BeforeComplete(st, &model.Commitment{Secret: "7", ClientSeed: 0})
	require.NoError(t, err)

	win, err := r.CalculateResult(&model.ParticipantGame{AccountID: 1}, st)
	require.NoError(t, err)
	assert.True(t, win.Equal(decimal.NewFromInt(2*36+10*2+3*3)), win.String())

	win, err = r.CalculateResult(&model.ParticipantGame{AccountID: 2}, st)
	require.NoError(t, err)
	assert.True(t, win.IsZero())
}

func TestCalculateResultRequiresDraw(t *testing.T) {
	r := New(Options{})
	st, _ := r.CreatePlayable()
	_, err := r.CalculateResult(&model.ParticipantGame{AccountID: 1}, st)
	assert.Error(t, err)
}

func TestZeroOnlyPaysStraight(t *testing.T) {
	for _, typ := range []string{BetRed, BetBlack, BetOdd, BetEven, BetLow, BetHigh} {
		assert.False(t, Wins(Bet{Type: typ}, 0), typ)
	}
	assert.True(t, Wins(Bet{Type: BetStraight, Number: 0}, 0))
	assert.True(t, Wins(Bet{Type: BetDozen, Number: 3}, 36))
	assert.True(t, Wins(Bet{Type: BetBlack}, 2))
}

type recordingPlayer struct {
	action  string
	roundID int64
	payload json.RawMessage
}

func (p *recordingPlayer) Act(ctx context.Context, accountID, roundID int64, action string, payload json.RawMessage) error {
	p.action, p.roundID, p.payload = action, roundID, payload
	return nil
}

func TestCreateRandomGame(t *testing.T) {
	r := New(Options{})
	p := &recordingPlayer{}
	require.NoError(t, r.CreateRandomGame(context.Background(), p, 5, &model.Round{ID: 11}))
	assert.Equal(t, ActionBet, p.action)
	assert.Equal(t, int64(11), p.roundID)

	st, _ := r.CreatePlayable()
	_, delta, err := r.ApplyAction(ActionBet, st, game.Request{AccountID: 5, Payload: p.payload})
	require.NoError(t, err)
	assert.True(t, delta.IsPositive())
}
