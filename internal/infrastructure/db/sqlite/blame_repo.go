package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/infrastructure/db/sqlite/sqlc/queries"
)

type blameRepository struct {
	db      *sql.DB
	querier *queries.Queries
}

func NewBlameRepository(config ...interface{}) (domain.BlameRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open blame repository: invalid config, expected db at 0")
	}

	return &blameRepository{
		db:      db,
		querier: queries.New(db),
	}, nil
}

func (r *blameRepository) AddBlame(ctx context.Context, blame domain.Blame) error {
	if err := r.querier.InsertBlame(ctx, queries.InsertBlameParams{
		Txid:      blame.Outpoint.Txid,
		Vout:      int64(blame.Outpoint.VOut),
		Identity:  blame.Identity,
		RoundID:   blame.RoundId,
		Reason:    blame.Reason,
		Timestamp: blame.Timestamp,
	}); err != nil {
		return fmt.Errorf("failed to insert blame: %w", err)
	}
	return nil
}

func (r *blameRepository) CountBlames(ctx context.Context, outpoint domain.Outpoint) (int, error) {
	count, err := r.querier.CountBlames(ctx, queries.CountBlamesParams{
		Txid: outpoint.Txid,
		Vout: int64(outpoint.VOut),
	})
	if err != nil {
		return -1, err
	}
	return int(count), nil
}

func (r *blameRepository) AddBan(ctx context.Context, ban domain.Ban) error {
	if err := r.querier.UpsertBan(ctx, queries.UpsertBanParams{
		Txid:      ban.Outpoint.Txid,
		Vout:      int64(ban.Outpoint.VOut),
		Reason:    ban.Reason,
		CreatedAt: ban.CreatedAt,
		ExpiresAt: ban.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("failed to upsert ban: %w", err)
	}
	return nil
}

func (r *blameRepository) GetBan(
	ctx context.Context, outpoint domain.Outpoint, now time.Time,
) (*domain.Ban, error) {
	row, err := r.querier.SelectBan(ctx, queries.SelectBanParams{
		Txid: outpoint.Txid,
		Vout: int64(outpoint.VOut),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ban: %w", err)
	}

	ban := &domain.Ban{
		Outpoint:  outpoint,
		Reason:    row.Reason,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if !ban.IsActive(now) {
		return nil, nil
	}
	return ban, nil
}

func (r *blameRepository) Close() {
	_ = r.db.Close()
}
