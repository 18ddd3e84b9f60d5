package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mpg-server/internal/event"
	"mpg-server/internal/model"
	"mpg-server/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleSingleParticipant(t *testing.T) {
	h := newHarness(t)
	t0 := h.clock.Now().UnixMilli()
	h.ledger.SetBalance(1, money("1000"))
	r := h.open(t)

	h.clock.Advance(time.Second)
	_, err := h.bet(1, r.ID, "100")
	require.NoError(t, err)
	assert.True(t, h.ledger.Balance(1).Equal(money("900")))

	h.clock.Advance(29 * time.Second)
	out, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID, AccountID: 1})
	require.NoError(t, err)
	assert.Equal(t, CaseSettle, out.Case)
	assert.False(t, out.Noop)
	assert.Equal(t, 1, out.Settled)
	assert.True(t, out.TotalBet.Equal(money("100")))
	assert.True(t, out.TotalWin.Equal(money("250")))

	require.NotNil(t, out.Participant)
	assert.True(t, out.Participant.Win.Equal(money("250")))
	assert.True(t, out.Participant.IsCompleted)
	assert.False(t, out.Participant.IsInProgress)
	assert.True(t, h.ledger.Balance(1).Equal(money("1150")))

	require.NotNil(t, out.NextRound)
	assert.Equal(t, t0+35_000, out.NextRound.StartTime)
	assert.Equal(t, t0+65_000, out.NextRound.EndTime)

	stored, err := h.store.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasNext())
	assert.Equal(t, out.NextRound.ID, stored.NextRoundID.Int64)

	p, err := h.store.GetPlayable(context.Background(), r.PlayableID)
	require.NoError(t, err)
	assert.True(t, p.IsCompleted)
	assert.Contains(t, string(p.State), "revealed")

	assert.Equal(t, 1, h.sink.count(event.GamePlayed))
	assert.Equal(t, 1, h.sink.count(event.MultiplayerGameSettled))
}

func TestSettleMultipleParticipantsEvent(t *testing.T) {
	h := newHarness(t)
	h.ledger.SetBalance(1, money("1000"))
	h.ledger.SetBalance(2, money("1000"))
	r := h.open(t)

	_, err := h.bet(1, r.ID, "100")
	require.NoError(t, err)
	_, err = h.bet(2, r.ID, "40")
	require.NoError(t, err)

	h.clock.Advance(30 * time.Second)
	out, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	assert.Nil(t, out.Participant)
	assert.Equal(t, 2, out.Settled)
	assert.True(t, h.ledger.Balance(2).Equal(money("1060")))

	var settled *SettledEvent
	for _, e := range h.sink.events {
		if e.name == event.MultiplayerGameSettled {
			settled = e.payload.(*SettledEvent)
		}
	}
	require.NotNil(t, settled)
	assert.Equal(t, r.ID, settled.RoundID)
	assert.Equal(t, "140.00", settled.TotalBet)
	assert.Equal(t, "350.00", settled.TotalWin)
	assert.Equal(t, out.NextRound.ID, settled.NextRoundID)
	assert.Equal(t, 2, h.sink.count(event.GamePlayed))
}

func TestSettleTwiceCreditsOnce(t *testing.T) {
	h := newHarness(t)
	h.ledger.SetBalance(1, money("1000"))
	r := h.open(t)
	_, err := h.bet(1, r.ID, "100")
	require.NoError(t, err)
	h.clock.Advance(30 * time.Second)

	first, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	second, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID, AccountID: 1})
	require.NoError(t, err)

	assert.Equal(t, CaseAlreadySettled, second.Case)
	assert.True(t, second.Noop)
	assert.Equal(t, first.NextRound.ID, second.NextRound.ID)
	require.NotNil(t, second.Participant)
	assert.True(t, second.Participant.Win.Equal(money("250")))

	assert.True(t, h.ledger.Balance(1).Equal(money("1150")))
	assert.Len(t, h.ledger.Entries(), 2)
	assert.Len(t, h.store.RoundsOf(fakeType), 2)
	assert.Equal(t, 1, h.sink.count(event.MultiplayerGameSettled))
}

func TestSettleConcurrent(t *testing.T) {
	h := newHarness(t)
	h.ledger.SetBalance(1, money("1000"))
	r := h.open(t)
	_, err := h.bet(1, r.ID, "100")
	require.NoError(t, err)
	h.clock.Advance(30 * time.Second)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		nexts = map[int64]struct{}{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
			if assert.NoError(t, err) {
				mu.Lock()
				nexts[out.NextRound.ID] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, nexts, 1)
	assert.True(t, h.ledger.Balance(1).Equal(money("1150")))
	assert.Len(t, h.store.RoundsOf(fakeType), 2)
	assert.Equal(t, 1, h.sink.count(event.GamePlayed))
}

func TestSettleNoParticipants(t *testing.T) {
	h := newHarness(t)
	r := h.open(t)
	h.clock.Advance(30 * time.Second)

	out, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, CaseNoParticipants, out.Case)
	assert.False(t, out.Noop)
	require.NotNil(t, out.NextRound)
	assert.Empty(t, h.ledger.Entries())
	assert.Equal(t, 0, h.sink.count(event.GamePlayed))
	assert.Equal(t, 1, h.sink.count(event.MultiplayerGameSettled))

	again, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, CaseNoParticipants, again.Case)
	assert.True(t, again.Noop)
	assert.Equal(t, out.NextRound.ID, again.NextRound.ID)
	assert.Len(t, h.store.RoundsOf(fakeType), 2)
}

func TestSettleBeforeClose(t *testing.T) {
	h := newHarness(t)
	h.ledger.SetBalance(1, money("1000"))
	r := h.open(t)
	_, err := h.bet(1, r.ID, "100")
	require.NoError(t, err)

	h.clock.Advance(29 * time.Second)
	_, err = h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	assert.ErrorIs(t, err, ErrRoundNotClosed)
	assert.True(t, IsValidation(err))
	assert.True(t, h.ledger.Balance(1).Equal(money("900")))

	_, err = h.engine.Settle(context.Background(), SettleInput{RoundID: 12345})
	assert.ErrorIs(t, err, ErrRoundNotFound)
	_, err = h.engine.Settle(context.Background(), SettleInput{})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestSettleRepairsMissingLink(t *testing.T) {
	h := newHarness(t)
	r := h.open(t)
	err := h.store.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertParticipant(ctx, &model.ParticipantGame{
			AccountID: 7, RoundID: r.ID, PlayableID: r.PlayableID,
			Bet: money("5"), Win: money("12.5"), IsCompleted: true,
		})
	})
	require.NoError(t, err)
	h.clock.Advance(30 * time.Second)

	out, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, CaseAlreadySettled, out.Case)
	assert.False(t, out.Noop)
	require.NotNil(t, out.NextRound)

	p, err := h.store.GetPlayable(context.Background(), r.PlayableID)
	require.NoError(t, err)
	assert.True(t, p.IsCompleted)
	assert.Empty(t, h.ledger.Entries())
	assert.Equal(t, 0, h.sink.count(event.MultiplayerGameSettled))

	again, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	assert.True(t, again.Noop)
}

var errLinkFailed = errors.New("link failed")

// failingStore 在 SetNextRound 时注入错误
type failingStore struct {
	*store.Memory
	mu   sync.Mutex
	fail bool
}

func (s *failingStore) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *failingStore) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	return s.Memory.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &failingTx{Tx: tx, fail: fail})
	})
}

type failingTx struct {
	store.Tx
	fail bool
}

func (t *failingTx) SetNextRound(ctx context.Context, roundID, nextID int64) error {
	if t.fail {
		return errLinkFailed
	}
	return t.Tx.SetNextRound(ctx, roundID, nextID)
}

func (t *failingTx) OnRollback(fn func()) {
	t.Tx.(interface{ OnRollback(func()) }).OnRollback(fn)
}

func TestSettleRollsBackWhenChainFails(t *testing.T) {
	h := newHarness(t)
	fs := &failingStore{Memory: h.store}
	h.engine = NewEngine(Deps{Store: fs, Ledger: h.ledger, Games: h.engine.games, Sink: h.sink, Now: h.clock.Now})

	h.ledger.SetBalance(1, money("1000"))
	r := h.open(t)
	_, err := h.bet(1, r.ID, "100")
	require.NoError(t, err)
	h.clock.Advance(30 * time.Second)

	fs.setFail(true)
	_, err = h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	assert.ErrorIs(t, err, errLinkFailed)
	assert.False(t, IsValidation(err))

	assert.True(t, h.ledger.Balance(1).Equal(money("900")))
	parts := h.store.Participants(r.ID)
	require.Len(t, parts, 1)
	assert.True(t, parts[0].IsInProgress)
	assert.True(t, parts[0].Win.IsZero())
	assert.Len(t, h.store.RoundsOf(fakeType), 1)
	assert.Equal(t, 0, h.sink.count(event.MultiplayerGameSettled))

	fs.setFail(false)
	out, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, CaseSettle, out.Case)
	assert.True(t, h.ledger.Balance(1).Equal(money("1150")))
	assert.Len(t, h.store.RoundsOf(fakeType), 2)
}

func TestNextRoundAcceptsActions(t *testing.T) {
	h := newHarness(t)
	h.ledger.SetBalance(1, money("1000"))
	r := h.open(t)
	h.clock.Advance(30 * time.Second)

	out, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)

	_, err = h.bet(1, r.ID, "1")
	assert.ErrorIs(t, err, ErrRoundNotOpen)
	_, err = h.bet(1, out.NextRound.ID, "1")
	assert.ErrorIs(t, err, ErrRoundNotOpen)

	h.clock.Advance(5 * time.Second)
	res, err := h.bet(1, out.NextRound.ID, "1")
	require.NoError(t, err)
	assert.True(t, res.Participant.Bet.Equal(decimal.NewFromInt(1)))

	cur, err := h.engine.Current(context.Background(), fakeType)
	require.NoError(t, err)
	assert.Equal(t, out.NextRound.ID, cur.ID)
}

func TestSettleEvictsCachedRound(t *testing.T) {
	h := newHarness(t)
	cache := &mapCache{rounds: map[string]*model.Round{}}
	h.engine.cache = cache

	r, err := h.engine.Current(context.Background(), fakeType)
	require.NoError(t, err)
	require.Equal(t, r.ID, cache.cached(fakeType).ID)

	h.clock.Advance(30 * time.Second)
	out, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.evicts)
	require.NotNil(t, cache.cached(fakeType))
	assert.Equal(t, out.NextRound.ID, cache.cached(fakeType).ID)

	// 重复结算不再触碰缓存
	again, err := h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	require.NoError(t, err)
	assert.True(t, again.Noop)
	assert.Equal(t, 1, cache.evicts)
}

func TestSettleScheduledRoundRejected(t *testing.T) {
	h := newHarness(t)
	r, err := h.engine.GetOrOpen(context.Background(), fakeType, 5*time.Second)
	require.NoError(t, err)

	_, err = h.engine.Settle(context.Background(), SettleInput{RoundID: r.ID})
	assert.ErrorIs(t, err, ErrRoundNotClosed)

	p, err := h.store.GetPlayable(context.Background(), r.PlayableID)
	require.NoError(t, err)
	assert.False(t, p.IsCompleted)
}
