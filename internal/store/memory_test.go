package store

import (
	"context"
	"errors"
	"testing"

	"mpg-server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRound(t *testing.T, m *Memory, gameType string, start, end int64) *model.Round {
	t.Helper()
	var r *model.Round
	err := m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		p := &model.Playable{GameType: gameType, State: []byte(`{}`)}
		if err := tx.InsertPlayable(ctx, p); err != nil {
			return err
		}
		r = &model.Round{GameType: gameType, PlayableID: p.ID, StartTime: start, EndTime: end}
		return tx.InsertRound(ctx, r)
	})
	require.NoError(t, err)
	return r
}

func TestMemoryRollbackDiscardsWrites(t *testing.T) {
	m := NewMemory()
	boom := errors.New("boom")
	rolledBack := false

	err := m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		tx.(*memTx).OnRollback(func() { rolledBack = true })
		require.NoError(t, tx.InsertRound(ctx, &model.Round{GameType: "roulette", EndTime: 100}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, rolledBack)
	assert.Empty(t, m.RoundsOf("roulette"))
}

func TestMemoryLatestOpenRound(t *testing.T) {
	m := NewMemory()
	openRound(t, m, "roulette", 0, 100)
	second := openRound(t, m, "roulette", 100, 200)
	openRound(t, m, "other", 0, 500)

	r, err := m.LatestOpenRound(context.Background(), "roulette", 50)
	require.NoError(t, err)
	assert.Equal(t, second.ID, r.ID)

	_, err = m.LatestOpenRound(context.Background(), "roulette", 200)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryParticipantUnique(t *testing.T) {
	m := NewMemory()
	r := openRound(t, m, "roulette", 0, 100)

	err := m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertParticipant(ctx, &model.ParticipantGame{AccountID: 1, RoundID: r.ID, PlayableID: r.PlayableID}))
		return tx.InsertParticipant(ctx, &model.ParticipantGame{AccountID: 1, RoundID: r.ID, PlayableID: r.PlayableID})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Empty(t, m.Participants(r.ID))
}

func TestMemorySetNextRoundOnce(t *testing.T) {
	m := NewMemory()
	r := openRound(t, m, "roulette", 0, 100)

	err := m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SetNextRound(ctx, r.ID, 42)
	})
	require.NoError(t, err)

	err = m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SetNextRound(ctx, r.ID, 43)
	})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := m.GetRound(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.NextRoundID.Int64)
}

func TestMemoryListDueRounds(t *testing.T) {
	m := NewMemory()
	due := openRound(t, m, "roulette", 0, 100)
	openRound(t, m, "roulette", 100, 200)

	list, err := m.ListDueRounds(context.Background(), 150, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	err = m.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		p, err := tx.GetPlayableForUpdate(ctx, due.PlayableID)
		if err != nil {
			return err
		}
		p.IsCompleted = true
		if err := tx.SavePlayable(ctx, p); err != nil {
			return err
		}
		return tx.SetNextRound(ctx, due.ID, 99)
	})
	require.NoError(t, err)

	list, err = m.ListDueRounds(context.Background(), 150, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
