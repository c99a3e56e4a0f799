package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const roundStoreDir = "rounds"

type roundRepository struct {
	store *badgerhold.Store
}

func NewRoundRepository(config ...interface{}) (domain.RoundRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, roundStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open round store: %s", err)
	}

	return &roundRepository{store}, nil
}

func (r *roundRepository) AddRoundOutcome(_ context.Context, outcome domain.RoundOutcome) error {
	return upsert(r.store, outcome.Id, outcome)
}

func (r *roundRepository) GetRoundOutcome(_ context.Context, id string) (*domain.RoundOutcome, error) {
	var outcome domain.RoundOutcome
	if err := r.store.Get(id, &outcome); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoundNotFound, id)
		}
		return nil, err
	}
	return &outcome, nil
}

func (r *roundRepository) GetRoundOutcomes(
	_ context.Context, poolId string, limit int,
) ([]domain.RoundOutcome, error) {
	query := badgerhold.Where("PoolId").Eq(poolId).SortBy("EndingTimestamp").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var outcomes []domain.RoundOutcome
	if err := r.store.Find(&outcomes, query); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (r *roundRepository) Close() {
	r.store.Close()
}
