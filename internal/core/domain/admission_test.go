package domain_test

import (
	"testing"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestAdmission(t *testing.T) {
	t.Run("slots", func(t *testing.T) {
		round := newTestRound(t, testPool)
		require.False(t, round.HasMinMustMixAndFeeReached())
		require.Equal(t, 3, round.AvailableMustMixSlots())
		require.Equal(t, 1, round.AvailableLiquiditySlots())

		mustConfirm(t, round, mustMixInput(0, 500))
		require.False(t, round.HasMinMustMixAndFeeReached())
		require.Zero(t, round.SurgeLevel)
		require.Equal(t, 2, round.AvailableMustMixSlots())
		require.Equal(t, 1, round.AvailableLiquiditySlots())

		mustConfirm(t, round, mustMixInput(1, 1600))
		require.True(t, round.HasMinMustMixAndFeeReached())
		require.Equal(t, uint64(2100), round.MinerFeeAccumulated())
		// 2100 sats pay for both surge slots at 1 sat/vbyte
		require.Equal(t, 2, round.SurgeLevel)
		require.Zero(t, round.AvailableMustMixSlots())
		require.Equal(t, 4, round.AvailableLiquiditySlots())

		err := round.CheckAdmission(mustMixInput(2, 5000))
		require.True(t, domain.IsAdmissionDeferred(err))
		require.NoError(t, round.CheckAdmission(liquidityInput(0)))
	})

	t.Run("surge disabled", func(t *testing.T) {
		round := newTestRound(t, testPool)
		mustConfirm(t, round, mustMixInput(0, 1000))
		mustConfirm(t, round, mustMixInput(1, 1000))
		require.Equal(t, 2, round.SurgeLevel)

		round.DisableSurge(true)
		require.True(t, round.IsSurgeDisabled())
		require.Zero(t, round.SurgeLevel)
		require.Equal(t, 1, round.AvailableMustMixSlots())
		require.Equal(t, 2, round.AvailableLiquiditySlots())
	})

	t.Run("partial surge", func(t *testing.T) {
		pool := testPool
		pool.Fees.MinRelayFeeRate = 4
		round := newTestRound(t, pool)

		size1 := pool.Fees.MinRelayFeeRate * uint64(pool.EstimatedTxSize(1))
		size2 := pool.Fees.MinRelayFeeRate * uint64(pool.EstimatedTxSize(2))
		require.Less(t, size1, size2)

		// the two fees sum up to a value between the cost of 1 and 2 slots
		fee := (size1 + size2) / 2
		mustConfirm(t, round, mustMixInput(0, fee/2))
		mustConfirm(t, round, mustMixInput(1, fee-fee/2))
		require.Equal(t, 1, round.SurgeLevel)
	})

	t.Run("last must-mix slot", func(t *testing.T) {
		pool := testPool
		pool.AnonymitySet = 3
		pool.SurgeCap = 0
		round := newTestRound(t, pool)

		mustConfirm(t, round, mustMixInput(0, 500))
		require.Equal(t, 1, round.AvailableMustMixSlots())

		// 500 + 100 sats would not reach the miner fee target
		_, err := confirm(round, mustMixInput(1, 100))
		require.Error(t, err)
		require.True(t, domain.IsAdmissionDeferred(err))
		require.Equal(t, 1, round.Admitted.Size())

		mustConfirm(t, round, mustMixInput(2, 1600))
		require.True(t, round.HasMinMustMixAndFeeReached())
		require.Zero(t, round.AvailableMustMixSlots())
	})

	t.Run("round full", func(t *testing.T) {
		pool := testPool
		pool.SurgeCap = 0
		round := newTestRound(t, pool)

		mustConfirm(t, round, mustMixInput(0, 1000))
		mustConfirm(t, round, mustMixInput(1, 1000))
		mustConfirm(t, round, mustMixInput(2, 1000))
		mustConfirm(t, round, liquidityInput(0))
		require.True(t, round.IsFull())
		require.True(t, round.IsReady())

		err := round.CheckAdmission(liquidityInput(1))
		require.EqualError(t, err, "admission deferred: round is full")
	})

	t.Run("anti sybil", func(t *testing.T) {
		pool := testPool
		pool.MaxInputsSameHash = 1
		pool.MaxInputsSameUserHash = 1
		round := newTestRound(t, pool)

		first := mustMixInput(0, 1000)
		first.UserHash = "user"
		mustConfirm(t, round, first)

		sameTx := mustMixInput(1, 1000)
		sameTx.Outpoint.Txid = first.Outpoint.Txid
		sameTx.Outpoint.VOut = 1
		err := round.CheckAdmission(sameTx)
		require.True(t, domain.IsAdmissionDeferred(err))

		sameUser := mustMixInput(2, 1000)
		sameUser.UserHash = "user"
		err = round.CheckAdmission(sameUser)
		require.True(t, domain.IsAdmissionDeferred(err))

		require.NoError(t, round.CheckAdmission(mustMixInput(3, 1000)))
	})
}
