package domain_test

import (
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	inmemory "github.com/ark-network/coinjoin/internal/infrastructure/live-store/inmemory"
	"github.com/ark-network/coinjoin/pkg/blindsig"
	"github.com/stretchr/testify/require"
)

const denomination = uint64(1000000)

var testPool = domain.Pool{
	Id:           "0.01btc",
	Denomination: denomination,
	MinMustMix:   2,
	MinLiquidity: 1,
	AnonymitySet: 4,
	SurgeCap:     2,
	Fees: domain.FeePolicy{
		MinerFeeMin:     100,
		MinerFeeCap:     5000,
		MinerFeeMax:     100000,
		MinerFeeMix:     2000,
		MinRelayFeeRate: 1,
		InputWeight:     100,
		SurgeSlotWeight: 100,
	},
}

func newTestRound(t *testing.T, pool domain.Pool) *domain.Round {
	signer, err := blindsig.NewSigner(1024)
	require.NoError(t, err)
	return domain.NewRound(
		pool, signer, inmemory.NewInputRegistry(), inmemory.NewInputRegistry(),
	)
}

func txidOf(i int) string {
	return fmt.Sprintf("%064x", i+1)
}

func mustMixInput(i int, fee uint64) domain.RegisteredInput {
	return domain.RegisteredInput{
		Identity:  fmt.Sprintf("mustmix%d", i),
		PoolId:    testPool.Id,
		Outpoint:  domain.Outpoint{Txid: txidOf(i), VOut: 0},
		Value:     denomination + fee,
		Address:   fmt.Sprintf("bc1qmustmix%d", i),
		CreatedAt: time.Now(),
	}
}

func liquidityInput(i int) domain.RegisteredInput {
	return domain.RegisteredInput{
		Identity:  fmt.Sprintf("liquidity%d", i),
		PoolId:    testPool.Id,
		Outpoint:  domain.Outpoint{Txid: txidOf(100 + i), VOut: 1},
		Value:     denomination,
		Address:   fmt.Sprintf("bc1qliquidity%d", i),
		Liquidity: true,
		CreatedAt: time.Now(),
	}
}

// bordereau is what a client keeps after its input got admitted.
type bordereau struct {
	token     []byte
	signature []byte
}

func confirm(round *domain.Round, input domain.RegisteredInput) (*bordereau, error) {
	if err := round.AddConfirming(input, time.Now()); err != nil {
		return nil, err
	}

	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return nil, err
	}
	blinded, state, err := blindsig.Blind(rand.Reader, round.PublicKey(), token)
	if err != nil {
		return nil, err
	}
	signed, err := round.ConfirmInput(input.Key(), blinded)
	if err != nil {
		return nil, err
	}
	signature, err := state.Unblind(signed)
	if err != nil {
		return nil, err
	}
	return &bordereau{token, signature}, nil
}

func mustConfirm(t *testing.T, round *domain.Round, input domain.RegisteredInput) *bordereau {
	b, err := confirm(round, input)
	require.NoError(t, err)
	return b
}

// fullRound returns a round in REGISTER_OUTPUT with 3 must-mix inputs and 1
// liquidity, together with the bordereaus of the participants.
func fullRound(t *testing.T) (*domain.Round, []domain.RegisteredInput, []*bordereau) {
	pool := testPool
	pool.SurgeCap = 0
	round := newTestRound(t, pool)

	inputs := []domain.RegisteredInput{
		mustMixInput(0, 1000),
		mustMixInput(1, 1000),
		liquidityInput(0),
		mustMixInput(2, 1000),
	}
	bordereaus := make([]*bordereau, 0, len(inputs))
	for _, in := range inputs {
		bordereaus = append(bordereaus, mustConfirm(t, round, in))
	}
	require.True(t, round.IsReady())
	require.NoError(t, round.StartRegisterOutput())
	return round, inputs, bordereaus
}
