package fairness

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"

	"mpg-server/internal/game/roulette"
	"mpg-server/internal/model"
	"mpg-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCommitment(t *testing.T, c *Committer) *model.Commitment {
	t.Helper()
	s := store.NewMemory()
	var cm *model.Commitment
	err := s.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		cm, err = c.Create(ctx, tx, roulette.New(roulette.Options{}))
		return err
	})
	require.NoError(t, err)
	return cm
}

func TestCreateCommitment(t *testing.T) {
	cm := createCommitment(t, NewCommitter())

	assert.NotZero(t, cm.ID)
	assert.Equal(t, roulette.Type, cm.GameType)
	assert.Len(t, cm.ServerSeed, 64)
	assert.Equal(t, Commit(cm.ServerSeed, cm.Secret), cm.SecretHash)
	assert.GreaterOrEqual(t, cm.ClientSeed, int64(ClientSeedMin))
	assert.LessOrEqual(t, cm.ClientSeed, int64(ClientSeedMax))
	assert.NoError(t, Verify(roulette.New(roulette.Options{}), cm))
}

func TestCommitmentsDiffer(t *testing.T) {
	c := NewCommitter()
	a, b := createCommitment(t, c), createCommitment(t, c)
	assert.NotEqual(t, a.ServerSeed, b.ServerSeed)
}

func TestCreateFailsOnShortRandom(t *testing.T) {
	c := NewCommitterWithReader(bytes.NewReader([]byte{1, 2, 3}))
	s := store.NewMemory()
	err := s.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := c.Create(ctx, tx, roulette.New(roulette.Options{}))
		return err
	})
	assert.Error(t, err)
}

func TestVerifyDetectsTampering(t *testing.T) {
	cm := createCommitment(t, NewCommitter())
	cm.Secret = "999"
	assert.ErrorIs(t, Verify(roulette.New(roulette.Options{}), cm), ErrHashMismatch)
}

func TestClientSeedBounds(t *testing.T) {
	low, err := ClientSeed(bytes.NewReader(make([]byte, 16)))
	require.NoError(t, err)
	assert.Equal(t, int64(ClientSeedMin), low)
}

func TestRevealOnlyAfterClose(t *testing.T) {
	cm := &model.Commitment{ID: 1, ServerSeed: "seed", Secret: "7", SecretHash: Commit("seed", "7"), ClientSeed: 12345678}
	r := &model.Round{ID: 2, StartTime: 0, EndTime: 1000}

	open := Reveal(cm, r, 999)
	assert.False(t, open.Revealed)
	assert.Empty(t, open.ServerSeed)
	assert.Empty(t, open.Secret)

	closed := Reveal(cm, r, 1000)
	assert.True(t, closed.Revealed)
	assert.Equal(t, "seed", closed.ServerSeed)
	assert.Equal(t, "7", closed.Secret)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// 结束前公开的哈希与客户端种子不能反推出轮盘结果
func TestOpenViewResistsSecretEnumeration(t *testing.T) {
	c := NewCommitter()
	g := roulette.New(roulette.Options{})
	r := &model.Round{ID: 1, StartTime: 0, EndTime: 1000}

	for n := 0; n < 20; n++ {
		cm := createCommitment(t, c)
		view := Reveal(cm, r, 500)
		require.False(t, view.Revealed)

		for i := 0; i < roulette.Pockets; i++ {
			candidate := strconv.Itoa(i)
			assert.NotEqual(t, sha256Hex(candidate), view.SecretHash)
			assert.NotEqual(t, Commit("", candidate), view.SecretHash)
			assert.NotEqual(t, sha256Hex(strconv.FormatInt(view.ClientSeed, 10)+":"+candidate), view.SecretHash)
		}
		assert.NoError(t, Verify(g, cm))
	}
}

func TestVerifyDetectsWrongServerSeed(t *testing.T) {
	g := roulette.New(roulette.Options{})
	cm := createCommitment(t, NewCommitter())
	forged := *cm
	prefix := "00"
	if cm.ServerSeed[:2] == prefix {
		prefix = "ff"
	}
	forged.ServerSeed = prefix + cm.ServerSeed[2:]
	forged.Secret = g.MakeSecret([]byte(forged.ServerSeed))
	assert.ErrorIs(t, Verify(g, &forged), ErrHashMismatch)
}
