package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoo17/nft-burn-roulette/internal/apperror"
	"github.com/neoo17/nft-burn-roulette/testing/suite"
)

func TestBalanceRepository_Init(t *testing.T) {
	t.Run("Sets the starting stake for a new player", func(t *testing.T) {
		ctx, st := suite.New(t)

		balanceRepo := NewBalanceRepository(st.Redis)

		// When: Init is called for a fresh player
		err := balanceRepo.Init(ctx, "p-1", 1000)
		require.NoError(t, err)

		// Then: the balance equals the starting stake
		balance, err := balanceRepo.Get(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("Keeps an existing balance untouched on reconnect", func(t *testing.T) {
		ctx, st := suite.New(t)

		balanceRepo := NewBalanceRepository(st.Redis)

		require.NoError(t, balanceRepo.Init(ctx, "p-1", 1000))
		require.NoError(t, balanceRepo.Transfer(ctx, "p-1", "p-2", 300))

		// When: Init is called again for the same player
		require.NoError(t, balanceRepo.Init(ctx, "p-1", 1000))

		// Then: the reduced balance survives
		balance, err := balanceRepo.Get(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, int64(700), balance)
	})
}

func TestBalanceRepository_Get(t *testing.T) {
	t.Run("Returns ErrPlayerNotFound for an unknown player", func(t *testing.T) {
		ctx, st := suite.New(t)

		balanceRepo := NewBalanceRepository(st.Redis)

		_, err := balanceRepo.Get(ctx, "missing")

		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrPlayerNotFound)
	})
}

func TestBalanceRepository_Transfer(t *testing.T) {
	ctx, st := suite.New(t)

	balanceRepo := NewBalanceRepository(st.Redis)

	// Given: two players with starting stakes
	require.NoError(t, balanceRepo.Init(ctx, "loser", 1000))
	require.NoError(t, balanceRepo.Init(ctx, "winner", 1000))

	// When: a bet is transferred from the loser to the winner
	err := balanceRepo.Transfer(ctx, "loser", "winner", 100)
	require.NoError(t, err)

	// Then: both balances moved by the same amount
	loserBalance, err := balanceRepo.Get(ctx, "loser")
	require.NoError(t, err)
	assert.Equal(t, int64(900), loserBalance)

	winnerBalance, err := balanceRepo.Get(ctx, "winner")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), winnerBalance)
}
