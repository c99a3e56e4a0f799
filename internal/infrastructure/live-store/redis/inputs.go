package redislivestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const inputsKeyPrefix = "inputs:"

// inputRegistry stores the inputs as JSON values of a redis hash, one field
// per input key.
type inputRegistry struct {
	rdb          *redis.Client
	key          string
	numOfRetries int
}

func NewInputRegistry(rdb *redis.Client, name string, numOfRetries int) domain.InputRegistry {
	return &inputRegistry{
		rdb:          rdb,
		key:          inputsKeyPrefix + name,
		numOfRetries: numOfRetries,
	}
}

func (r *inputRegistry) Put(input domain.RegisteredInput) error {
	ctx := context.Background()
	buf, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, r.key, input.Key().String(), buf).Err()
}

func (r *inputRegistry) Find(match domain.InputPredicate) (*domain.RegisteredInput, bool) {
	inputs, err := r.getAll(context.Background(), r.rdb)
	if err != nil {
		log.WithError(err).Warnf("failed to read inputs %s", r.key)
		return nil, false
	}
	for _, in := range inputs {
		if match(in) {
			found := in
			return &found, true
		}
	}
	return nil, false
}

func (r *inputRegistry) FindAll(match domain.InputPredicate) []domain.RegisteredInput {
	found := make([]domain.RegisteredInput, 0)
	inputs, err := r.getAll(context.Background(), r.rdb)
	if err != nil {
		log.WithError(err).Warnf("failed to read inputs %s", r.key)
		return found
	}
	for _, in := range inputs {
		if match(in) {
			found = append(found, in)
		}
	}
	return found
}

func (r *inputRegistry) RemoveRandomMatching(
	match domain.InputPredicate,
) (*domain.RegisteredInput, bool) {
	ctx := context.Background()
	var removed *domain.RegisteredInput

	for attempt := 0; attempt < r.numOfRetries; attempt++ {
		removed = nil
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			inputs, err := r.getAll(ctx, tx)
			if err != nil {
				return err
			}
			candidates := make([]domain.RegisteredInput, 0)
			for _, in := range inputs {
				if match(in) {
					candidates = append(candidates, in)
				}
			}
			if len(candidates) <= 0 {
				return nil
			}

			i, err := rand.Int(rand.Reader, big.NewInt(int64(len(candidates))))
			if err != nil {
				return err
			}
			pick := candidates[i.Int64()]

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HDel(ctx, r.key, pick.Key().String())
				return nil
			})
			if err == nil {
				removed = &pick
			}
			return err
		}, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			log.WithError(err).Warnf("failed to remove random input from %s", r.key)
			return nil, false
		}
		break
	}

	return removed, removed != nil
}

func (r *inputRegistry) Remove(key domain.InputKey) (*domain.RegisteredInput, bool) {
	ctx := context.Background()
	var removed *domain.RegisteredInput

	for attempt := 0; attempt < r.numOfRetries; attempt++ {
		removed = nil
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			val, err := tx.HGet(ctx, r.key, key.String()).Result()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			var input domain.RegisteredInput
			if err := json.Unmarshal([]byte(val), &input); err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HDel(ctx, r.key, key.String())
				return nil
			})
			if err == nil {
				removed = &input
			}
			return err
		}, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			log.WithError(err).Warnf("failed to remove input %s from %s", key, r.key)
			return nil, false
		}
		break
	}

	return removed, removed != nil
}

func (r *inputRegistry) Size() int {
	size, err := r.rdb.HLen(context.Background(), r.key).Result()
	if err != nil {
		log.WithError(err).Warnf("failed to get size of %s", r.key)
		return 0
	}
	return int(size)
}

func (r *inputRegistry) SizeMatching(match domain.InputPredicate) int {
	return len(r.FindAll(match))
}

func (r *inputRegistry) DrainAll() []domain.RegisteredInput {
	ctx := context.Background()
	drained := make([]domain.RegisteredInput, 0)

	for attempt := 0; attempt < r.numOfRetries; attempt++ {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			inputs, err := r.getAll(ctx, tx)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, r.key)
				return nil
			})
			if err == nil {
				drained = inputs
			}
			return err
		}, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			log.WithError(err).Warnf("failed to drain %s", r.key)
		}
		break
	}

	return drained
}

func (r *inputRegistry) getAll(
	ctx context.Context, rdb redis.Cmdable,
) ([]domain.RegisteredInput, error) {
	vals, err := rdb.HVals(ctx, r.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	inputs := make([]domain.RegisteredInput, 0, len(vals))
	for _, val := range vals {
		var input domain.RegisteredInput
		if err := json.Unmarshal([]byte(val), &input); err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}
