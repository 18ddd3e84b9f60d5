package game_test

import (
	"errors"
	"testing"

	"mpg-server/internal/game"
	"mpg-server/internal/game/roulette"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := game.NewRegistry()
	require.NoError(t, reg.Register(roulette.New(roulette.Options{})))
	assert.Error(t, reg.Register(roulette.New(roulette.Options{})))
	assert.Error(t, reg.Register(nil))

	g, err := reg.Lookup(roulette.Type)
	require.NoError(t, err)
	assert.Equal(t, roulette.Type, g.Type())

	_, err = reg.Lookup("blackjack")
	assert.True(t, errors.Is(err, game.ErrGameNotRegistered))
	assert.Equal(t, []string{roulette.Type}, reg.Types())
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := game.NewRegistry()
	assert.Panics(t, func() {
		reg.MustRegister(roulette.New(roulette.Options{}), roulette.New(roulette.Options{}))
	})
}
