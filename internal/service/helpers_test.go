package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"mpg-server/internal/event"
	"mpg-server/internal/game"
	"mpg-server/internal/ledger"
	"mpg-server/internal/model"
	"mpg-server/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const fakeType = "fake"

// fakeGame 状态为每个账户的累计投注；派彩 = 投注 * multiplier
type fakeGame struct {
	duration   time.Duration
	interval   time.Duration
	multiplier decimal.Decimal
}

type fakeState struct {
	Bets     map[int64]decimal.Decimal `json:"bets"`
	Revealed string                    `json:"revealed,omitempty"`
}

type fakePayload struct {
	Amount decimal.Decimal `json:"amount"`
}

func newFakeGame() *fakeGame {
	return &fakeGame{duration: 30 * time.Second, interval: 5 * time.Second, multiplier: decimal.RequireFromString("2.5")}
}

func (g *fakeGame) Type() string                 { return fakeType }
func (g *fakeGame) Duration() time.Duration      { return g.duration }
func (g *fakeGame) Interval() time.Duration      { return g.interval }
func (g *fakeGame) MakeSecret(seed []byte) string { return "secret-" + string(seed[:8]) }

func (g *fakeGame) CreatePlayable() (json.RawMessage, error) {
	return json.Marshal(fakeState{Bets: map[int64]decimal.Decimal{}})
}

func (g *fakeGame) decode(raw json.RawMessage) fakeState {
	st := fakeState{}
	_ = json.Unmarshal(raw, &st)
	if st.Bets == nil {
		st.Bets = map[int64]decimal.Decimal{}
	}
	return st
}

func (g *fakeGame) ApplyAction(action string, raw json.RawMessage, req game.Request) (json.RawMessage, decimal.Decimal, error) {
	var p fakePayload
	switch action {
	case "bet", "refund":
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, decimal.Zero, game.ErrInvalidRequest
		}
	case "look":
	default:
		return nil, decimal.Zero, game.ErrUnknownAction
	}
	st := g.decode(raw)
	if action == "refund" {
		return raw, p.Amount.Neg(), nil
	}
	st.Bets[req.AccountID] = st.Bets[req.AccountID].Add(p.Amount)
	out, err := json.Marshal(st)
	return out, p.Amount, err
}

func (g *fakeGame) ActionData(action string, raw json.RawMessage, req game.Request) map[string]any {
	return map[string]any{"action": action}
}

func (g *fakeGame) BeforeComplete(raw json.RawMessage, c *model.Commitment) (json.RawMessage, error) {
	if c == nil || c.Secret == "" {
		return nil, errors.New("secret not set")
	}
	st := g.decode(raw)
	st.Revealed = c.Secret
	return json.Marshal(st)
}

func (g *fakeGame) CalculateResult(p *model.ParticipantGame, raw json.RawMessage) (decimal.Decimal, error) {
	st := g.decode(raw)
	if st.Revealed == "" {
		return decimal.Zero, errors.New("not revealed")
	}
	return st.Bets[p.AccountID].Mul(g.multiplier), nil
}

func (g *fakeGame) CreateRandomGame(ctx context.Context, player game.Player, accountID int64, round *model.Round) error {
	return player.Act(ctx, accountID, round.ID, "bet", json.RawMessage(`{"amount":"1"}`))
}

// clock 可控时钟
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordedEvent struct {
	name    string
	payload any
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) Publish(ctx context.Context, name string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{name: name, payload: payload})
}

func (s *recordingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.name == name {
			n++
		}
	}
	return n
}

type harness struct {
	engine *Engine
	store  *store.Memory
	ledger *ledger.Memory
	sink   *recordingSink
	clock  *clock
	game   *fakeGame
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  store.NewMemory(),
		ledger: ledger.NewMemory(),
		sink:   &recordingSink{},
		clock:  &clock{t: time.UnixMilli(1_700_000_000_000)},
		game:   newFakeGame(),
	}
	reg := game.NewRegistry()
	reg.MustRegister(h.game)
	h.engine = NewEngine(Deps{
		Store:  h.store,
		Ledger: h.ledger,
		Games:  reg,
		Sink:   h.sink,
		Now:    h.clock.Now,
	})
	return h
}

func (h *harness) open(t *testing.T) *model.Round {
	t.Helper()
	r, err := h.engine.GetOrOpen(context.Background(), fakeType, 0)
	require.NoError(t, err)
	return r
}

func (h *harness) bet(accountID, roundID int64, amount string) (*ActionOutput, error) {
	return h.engine.Apply(context.Background(), ActionInput{
		AccountID: accountID,
		RoundID:   roundID,
		Action:    "bet",
		Payload:   json.RawMessage(`{"amount":"` + amount + `"}`),
	})
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var _ event.Sink = (*recordingSink)(nil)
