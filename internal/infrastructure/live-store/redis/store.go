package redislivestore

import (
	"fmt"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

type redisLiveStore struct {
	rdb          *redis.Client
	numOfRetries int
}

func NewLiveStore(rdb *redis.Client, numOfRetries int) ports.LiveStore {
	if numOfRetries <= 0 {
		numOfRetries = 1
	}
	return &redisLiveStore{rdb, numOfRetries}
}

func (s *redisLiveStore) Queue(poolId string, liquidity bool) domain.InputRegistry {
	class := "mustmix"
	if liquidity {
		class = "liquidity"
	}
	return NewInputRegistry(
		s.rdb, fmt.Sprintf("queue:%s:%s", poolId, class), s.numOfRetries,
	)
}

func (s *redisLiveStore) NewRegistry(name string) domain.InputRegistry {
	return NewInputRegistry(s.rdb, fmt.Sprintf("round:%s", name), s.numOfRetries)
}

func (s *redisLiveStore) Close() {
	// nolint:errcheck
	s.rdb.Close()
}
