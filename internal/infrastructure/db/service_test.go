package db_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/ark-network/coinjoin/internal/infrastructure/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const poolId = "0.01btc"

var ctx = context.Background()

func TestService(t *testing.T) {
	dbDir := t.TempDir()
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				DataStoreType:   "badger",
				DataStoreConfig: []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_sqlite_stores",
			config: db.ServiceConfig{
				DataStoreType:   "sqlite",
				DataStoreConfig: []interface{}{dbDir},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testRoundRepository(t, svc)
			testBlameRepository(t, svc)
		})
	}

	t.Run("invalid data store type", func(t *testing.T) {
		svc, err := db.NewService(db.ServiceConfig{DataStoreType: "postgres"})
		require.EqualError(t, err, "invalid data store type: postgres")
		require.Nil(t, svc)
	})
}

func testRoundRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_round_repository", func(t *testing.T) {
		now := time.Now().Unix()
		inputs := []domain.Outpoint{randomOutpoint(), randomOutpoint(), randomOutpoint()}

		succeeded := domain.RoundOutcome{
			Id:                uuid.New().String(),
			PoolId:            poolId,
			Denomination:      1000000,
			Phase:             domain.SuccessPhase,
			Txid:              randomHex(32),
			Tx:                "0200000000000000000000",
			Inputs:            inputs,
			NumMustMix:        2,
			NumLiquidity:      1,
			MinerFee:          3000,
			SurgeLevel:        1,
			StartingTimestamp: now - 120,
			EndingTimestamp:   now - 60,
		}
		failed := domain.RoundOutcome{
			Id:                uuid.New().String(),
			PoolId:            poolId,
			Denomination:      1000000,
			Phase:             domain.FailPhase,
			FailReason:        domain.FailSigningTimeout,
			FailInfo:          "1 inputs not signed",
			Inputs:            inputs,
			Blamed:            []domain.InputKey{{Outpoint: inputs[1], Identity: "client1"}},
			NumMustMix:        2,
			NumLiquidity:      1,
			MinerFee:          3000,
			StartingTimestamp: now - 50,
			EndingTimestamp:   now,
		}
		other := failed
		other.Id = uuid.New().String()
		other.PoolId = "0.1btc"

		outcome, err := svc.Rounds().GetRoundOutcome(ctx, succeeded.Id)
		require.ErrorIs(t, err, domain.ErrRoundNotFound)
		require.Nil(t, outcome)

		for _, o := range []domain.RoundOutcome{succeeded, failed, other} {
			require.NoError(t, svc.Rounds().AddRoundOutcome(ctx, o))
		}

		outcome, err = svc.Rounds().GetRoundOutcome(ctx, succeeded.Id)
		require.NoError(t, err)
		require.NotNil(t, outcome)
		require.True(t, outcome.IsSucceeded())
		require.Equal(t, succeeded.Txid, outcome.Txid)
		require.Equal(t, succeeded.MinerFee, outcome.MinerFee)
		require.ElementsMatch(t, inputs, outcome.Inputs)
		require.Empty(t, outcome.Blamed)

		outcome, err = svc.Rounds().GetRoundOutcome(ctx, failed.Id)
		require.NoError(t, err)
		require.False(t, outcome.IsSucceeded())
		require.Equal(t, domain.FailSigningTimeout, outcome.FailReason)
		require.Equal(t, failed.Blamed, outcome.Blamed)

		outcomes, err := svc.Rounds().GetRoundOutcomes(ctx, poolId, 0)
		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		// most recent first
		require.Equal(t, failed.Id, outcomes[0].Id)
		require.Equal(t, succeeded.Id, outcomes[1].Id)

		outcomes, err = svc.Rounds().GetRoundOutcomes(ctx, poolId, 1)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		require.Equal(t, failed.Id, outcomes[0].Id)

		outcomes, err = svc.Rounds().GetRoundOutcomes(ctx, "unknown", 0)
		require.NoError(t, err)
		require.Empty(t, outcomes)
	})
}

func testBlameRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_blame_repository", func(t *testing.T) {
		outpoint := randomOutpoint()
		now := time.Now()

		count, err := svc.Blames().CountBlames(ctx, outpoint)
		require.NoError(t, err)
		require.Zero(t, count)

		roundId := uuid.New().String()
		blame := domain.Blame{
			Outpoint:  outpoint,
			Identity:  "client0",
			RoundId:   roundId,
			Reason:    domain.BlameRevealMissing,
			Timestamp: now.Unix(),
		}
		require.NoError(t, svc.Blames().AddBlame(ctx, blame))
		// same round counts once
		require.NoError(t, svc.Blames().AddBlame(ctx, blame))
		blame.RoundId = uuid.New().String()
		require.NoError(t, svc.Blames().AddBlame(ctx, blame))
		require.NoError(t, svc.Blames().AddBlame(ctx, domain.Blame{
			Outpoint:  randomOutpoint(),
			Identity:  "client1",
			RoundId:   roundId,
			Reason:    domain.BlameSigningTimeout,
			Timestamp: now.Unix(),
		}))

		count, err = svc.Blames().CountBlames(ctx, outpoint)
		require.NoError(t, err)
		require.Equal(t, 2, count)

		ban, err := svc.Blames().GetBan(ctx, outpoint, now)
		require.NoError(t, err)
		require.Nil(t, ban)

		require.NoError(t, svc.Blames().AddBan(ctx, domain.Ban{
			Outpoint:  outpoint,
			Reason:    "blamed 2 times",
			CreatedAt: now.Unix(),
			ExpiresAt: now.Add(time.Hour).Unix(),
		}))

		ban, err = svc.Blames().GetBan(ctx, outpoint, now)
		require.NoError(t, err)
		require.NotNil(t, ban)
		require.Equal(t, outpoint, ban.Outpoint)
		require.Equal(t, "blamed 2 times", ban.Reason)

		ban, err = svc.Blames().GetBan(ctx, outpoint, now.Add(2*time.Hour))
		require.NoError(t, err)
		require.Nil(t, ban)
	})
}

func randomOutpoint() domain.Outpoint {
	return domain.Outpoint{Txid: randomHex(32), VOut: 1}
}

func randomHex(len int) string {
	buf := make([]byte, len)
	// nolint
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
