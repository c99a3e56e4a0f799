package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const fraudStoreDir = "fraud"

type blameDTO struct {
	Outpoint  string
	Txid      string
	VOut      uint32
	Identity  string
	RoundId   string
	Reason    string
	Timestamp int64
}

type banDTO struct {
	Outpoint  string
	Txid      string
	VOut      uint32
	Reason    string
	CreatedAt int64
	ExpiresAt int64
}

type blameRepository struct {
	store *badgerhold.Store
}

func NewBlameRepository(config ...interface{}) (domain.BlameRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, fraudStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open fraud store: %s", err)
	}

	return &blameRepository{store}, nil
}

// AddBlame keeps at most one blame per outpoint and round.
func (r *blameRepository) AddBlame(_ context.Context, blame domain.Blame) error {
	key := fmt.Sprintf("%s:%s", blame.RoundId, blame.Outpoint)
	return upsert(r.store, key, blameDTO{
		Outpoint:  blame.Outpoint.String(),
		Txid:      blame.Outpoint.Txid,
		VOut:      blame.Outpoint.VOut,
		Identity:  blame.Identity,
		RoundId:   blame.RoundId,
		Reason:    blame.Reason,
		Timestamp: blame.Timestamp,
	})
}

func (r *blameRepository) CountBlames(_ context.Context, outpoint domain.Outpoint) (int, error) {
	count, err := r.store.Count(
		&blameDTO{}, badgerhold.Where("Outpoint").Eq(outpoint.String()),
	)
	if err != nil {
		return -1, err
	}
	return int(count), nil
}

func (r *blameRepository) AddBan(_ context.Context, ban domain.Ban) error {
	return upsert(r.store, ban.Outpoint.String(), banDTO{
		Outpoint:  ban.Outpoint.String(),
		Txid:      ban.Outpoint.Txid,
		VOut:      ban.Outpoint.VOut,
		Reason:    ban.Reason,
		CreatedAt: ban.CreatedAt,
		ExpiresAt: ban.ExpiresAt,
	})
}

func (r *blameRepository) GetBan(
	_ context.Context, outpoint domain.Outpoint, now time.Time,
) (*domain.Ban, error) {
	var dto banDTO
	if err := r.store.Get(outpoint.String(), &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ban: %w", err)
	}

	ban := &domain.Ban{
		Outpoint:  outpoint,
		Reason:    dto.Reason,
		CreatedAt: dto.CreatedAt,
		ExpiresAt: dto.ExpiresAt,
	}
	if !ban.IsActive(now) {
		return nil, nil
	}
	return ban, nil
}

func (r *blameRepository) Close() {
	r.store.Close()
}
