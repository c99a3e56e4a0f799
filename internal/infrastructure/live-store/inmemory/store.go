package inmemorylivestore

import (
	"fmt"
	"sync"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
)

type inMemoryLiveStore struct {
	lock   sync.Mutex
	queues map[string]domain.InputRegistry
}

func NewLiveStore() ports.LiveStore {
	return &inMemoryLiveStore{
		queues: make(map[string]domain.InputRegistry),
	}
}

func (s *inMemoryLiveStore) Queue(poolId string, liquidity bool) domain.InputRegistry {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := queueKey(poolId, liquidity)
	if queue, ok := s.queues[key]; ok {
		return queue
	}
	queue := NewInputRegistry()
	s.queues[key] = queue
	return queue
}

func (s *inMemoryLiveStore) NewRegistry(_ string) domain.InputRegistry {
	return NewInputRegistry()
}

func (s *inMemoryLiveStore) Close() {}

func queueKey(poolId string, liquidity bool) string {
	if liquidity {
		return fmt.Sprintf("%s:liquidity", poolId)
	}
	return fmt.Sprintf("%s:mustmix", poolId)
}
