package inmemorylivestore

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/ark-network/coinjoin/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

// inputRegistry keeps inputs in a dense slice so that any entry can be
// removed in constant time by swapping it with the last one.
type inputRegistry struct {
	lock    sync.RWMutex
	inputs  []domain.RegisteredInput
	indexes map[domain.InputKey]int
}

func NewInputRegistry() domain.InputRegistry {
	return &inputRegistry{
		inputs:  make([]domain.RegisteredInput, 0),
		indexes: make(map[domain.InputKey]int),
	}
}

func (r *inputRegistry) Put(input domain.RegisteredInput) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := input.Key()
	if i, ok := r.indexes[key]; ok {
		r.inputs[i] = input
		return nil
	}
	r.indexes[key] = len(r.inputs)
	r.inputs = append(r.inputs, input)
	return nil
}

func (r *inputRegistry) Find(match domain.InputPredicate) (*domain.RegisteredInput, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, in := range r.inputs {
		if match(in) {
			found := in
			return &found, true
		}
	}
	return nil, false
}

func (r *inputRegistry) FindAll(match domain.InputPredicate) []domain.RegisteredInput {
	r.lock.RLock()
	defer r.lock.RUnlock()

	found := make([]domain.RegisteredInput, 0)
	for _, in := range r.inputs {
		if match(in) {
			found = append(found, in)
		}
	}
	return found
}

func (r *inputRegistry) RemoveRandomMatching(
	match domain.InputPredicate,
) (*domain.RegisteredInput, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	candidates := make([]int, 0)
	for i, in := range r.inputs {
		if match(in) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) <= 0 {
		return nil, false
	}

	pick, err := randomIndex(len(candidates))
	if err != nil {
		log.WithError(err).Warn("failed to pick random input")
		return nil, false
	}
	removed := r.removeAt(candidates[pick])
	return &removed, true
}

func (r *inputRegistry) Remove(key domain.InputKey) (*domain.RegisteredInput, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	i, ok := r.indexes[key]
	if !ok {
		return nil, false
	}
	removed := r.removeAt(i)
	return &removed, true
}

func (r *inputRegistry) Size() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.inputs)
}

func (r *inputRegistry) SizeMatching(match domain.InputPredicate) int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	count := 0
	for _, in := range r.inputs {
		if match(in) {
			count++
		}
	}
	return count
}

func (r *inputRegistry) DrainAll() []domain.RegisteredInput {
	r.lock.Lock()
	defer r.lock.Unlock()

	drained := r.inputs
	r.inputs = make([]domain.RegisteredInput, 0)
	r.indexes = make(map[domain.InputKey]int)
	return drained
}

func (r *inputRegistry) removeAt(i int) domain.RegisteredInput {
	removed := r.inputs[i]
	last := len(r.inputs) - 1
	if i != last {
		r.inputs[i] = r.inputs[last]
		r.indexes[r.inputs[i].Key()] = i
	}
	r.inputs = r.inputs[:last]
	delete(r.indexes, removed.Key())
	return removed
}

func randomIndex(n int) (int, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return -1, err
	}
	return int(i.Int64()), nil
}
