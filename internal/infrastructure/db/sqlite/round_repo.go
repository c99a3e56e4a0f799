package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/infrastructure/db/sqlite/sqlc/queries"
)

type roundRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewRoundRepository(config ...interface{}) (domain.RoundRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open round repository: invalid config, expected db at 0")
	}

	return &roundRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *roundRepository) AddRoundOutcome(ctx context.Context, outcome domain.RoundOutcome) error {
	blamed := make(map[domain.Outpoint]string)
	for _, key := range outcome.Blamed {
		blamed[key.Outpoint] = key.Identity
	}

	txBody := func(querierWithTx *queries.Queries) error {
		if err := querierWithTx.UpsertRoundOutcome(ctx, queries.UpsertRoundOutcomeParams{
			ID:                outcome.Id,
			PoolID:            outcome.PoolId,
			Denomination:      int64(outcome.Denomination),
			Phase:             int64(outcome.Phase),
			Txid:              outcome.Txid,
			Tx:                outcome.Tx,
			FailReason:        outcome.FailReason,
			FailInfo:          outcome.FailInfo,
			NumMustMix:        int64(outcome.NumMustMix),
			NumLiquidity:      int64(outcome.NumLiquidity),
			MinerFee:          int64(outcome.MinerFee),
			SurgeLevel:        int64(outcome.SurgeLevel),
			StartingTimestamp: outcome.StartingTimestamp,
			EndingTimestamp:   outcome.EndingTimestamp,
		}); err != nil {
			return fmt.Errorf("failed to upsert round outcome: %w", err)
		}

		for _, outpoint := range outcome.Inputs {
			if err := querierWithTx.UpsertRoundInput(ctx, queries.UpsertRoundInputParams{
				RoundID:        outcome.Id,
				Txid:           outpoint.Txid,
				Vout:           int64(outpoint.VOut),
				BlamedIdentity: blamed[outpoint],
			}); err != nil {
				return fmt.Errorf("failed to upsert round input: %w", err)
			}
		}
		return nil
	}

	return execTx(ctx, r.db, txBody)
}

func (r *roundRepository) GetRoundOutcome(ctx context.Context, id string) (*domain.RoundOutcome, error) {
	row, err := r.querier.SelectRoundOutcome(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoundNotFound, id)
		}
		return nil, err
	}
	return r.toOutcome(ctx, row)
}

func (r *roundRepository) GetRoundOutcomes(
	ctx context.Context, poolId string, limit int,
) ([]domain.RoundOutcome, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.querier.SelectRoundOutcomesByPool(ctx, queries.SelectRoundOutcomesByPoolParams{
		PoolID: poolId,
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.RoundOutcome, 0, len(rows))
	for _, row := range rows {
		outcome, err := r.toOutcome(ctx, row)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *outcome)
	}
	return outcomes, nil
}

func (r *roundRepository) Close() {
	_ = r.db.Close()
}

func (r *roundRepository) toOutcome(
	ctx context.Context, row queries.RoundOutcome,
) (*domain.RoundOutcome, error) {
	inputs, err := r.querier.SelectRoundInputs(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	outcome := &domain.RoundOutcome{
		Id:                row.ID,
		PoolId:            row.PoolID,
		Denomination:      uint64(row.Denomination),
		Phase:             domain.PhaseCode(row.Phase),
		Txid:              row.Txid,
		Tx:                row.Tx,
		FailReason:        row.FailReason,
		FailInfo:          row.FailInfo,
		Inputs:            make([]domain.Outpoint, 0, len(inputs)),
		NumMustMix:        int(row.NumMustMix),
		NumLiquidity:      int(row.NumLiquidity),
		MinerFee:          uint64(row.MinerFee),
		SurgeLevel:        int(row.SurgeLevel),
		StartingTimestamp: row.StartingTimestamp,
		EndingTimestamp:   row.EndingTimestamp,
	}
	for _, in := range inputs {
		outpoint := domain.Outpoint{Txid: in.Txid, VOut: uint32(in.Vout)}
		outcome.Inputs = append(outcome.Inputs, outpoint)
		if len(in.BlamedIdentity) > 0 {
			outcome.Blamed = append(outcome.Blamed, domain.InputKey{
				Outpoint: outpoint,
				Identity: in.BlamedIdentity,
			})
		}
	}
	return outcome, nil
}
