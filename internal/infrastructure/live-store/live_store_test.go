package livestore_test

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	inmemory "github.com/ark-network/coinjoin/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/ark-network/coinjoin/internal/infrastructure/live-store/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const txid = "0000000000000000000000000000000000000000000000000000000000000001"

func TestLiveStoreImplementations(t *testing.T) {
	stores := []struct {
		name  string
		store ports.LiveStore
	}{
		{"inmemory", inmemory.NewLiveStore()},
	}

	if redisUrl := os.Getenv("REDIS_URL"); len(redisUrl) > 0 {
		redisOpts, err := redis.ParseURL(redisUrl)
		require.NoError(t, err)
		rdb := redis.NewClient(redisOpts)
		stores = append(stores, struct {
			name  string
			store ports.LiveStore
		}{"redis", redislivestore.NewLiveStore(rdb, 5)})
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			runLiveStoreTests(t, tt.store)
		})
	}
}

func runLiveStoreTests(t *testing.T, store ports.LiveStore) {
	t.Run("queues", func(t *testing.T) {
		poolId := uuid.New().String()
		mustMix := store.Queue(poolId, false)
		liquidity := store.Queue(poolId, true)

		require.NoError(t, mustMix.Put(newInput("alice", 0, false)))
		require.NoError(t, liquidity.Put(newInput("bob", 1, true)))

		require.Equal(t, 1, store.Queue(poolId, false).Size())
		require.Equal(t, 1, store.Queue(poolId, true).Size())
		require.Zero(t, store.Queue(uuid.New().String(), false).Size())

		mustMix.DrainAll()
		liquidity.DrainAll()
	})

	t.Run("put", func(t *testing.T) {
		registry := store.NewRegistry(uuid.New().String())

		input := newInput("alice", 0, false)
		require.NoError(t, registry.Put(input))
		require.Equal(t, 1, registry.Size())

		// same key overwrites
		input.Confirmations = 10
		require.NoError(t, registry.Put(input))
		require.Equal(t, 1, registry.Size())

		found, ok := registry.Find(domain.MatchIdentity("alice"))
		require.True(t, ok)
		require.Equal(t, uint32(10), found.Confirmations)

		// same outpoint with another identity is another entry
		require.NoError(t, registry.Put(newInput("bob", 0, false)))
		require.Equal(t, 2, registry.Size())

		registry.DrainAll()
	})

	t.Run("find", func(t *testing.T) {
		registry := store.NewRegistry(uuid.New().String())
		for i := 0; i < 4; i++ {
			require.NoError(t, registry.Put(newInput(fmt.Sprintf("user%d", i), uint32(i), i%2 == 0)))
		}

		require.Len(t, registry.FindAll(domain.MatchLiquidity(true)), 2)
		require.Equal(t, 2, registry.SizeMatching(domain.MatchLiquidity(false)))
		require.Equal(t, 4, registry.SizeMatching(domain.MatchOriginTxid(txid)))

		_, ok := registry.Find(domain.MatchIdentity("nobody"))
		require.False(t, ok)

		registry.DrainAll()
	})

	t.Run("remove", func(t *testing.T) {
		registry := store.NewRegistry(uuid.New().String())
		inputs := []domain.RegisteredInput{
			newInput("alice", 0, false),
			newInput("bob", 1, false),
			newInput("carol", 2, true),
		}
		for _, in := range inputs {
			require.NoError(t, registry.Put(in))
		}

		removed, ok := registry.Remove(inputs[0].Key())
		require.True(t, ok)
		require.Equal(t, "alice", removed.Identity)
		require.Equal(t, 2, registry.Size())

		_, ok = registry.Remove(inputs[0].Key())
		require.False(t, ok)

		removed, ok = registry.RemoveRandomMatching(domain.MatchLiquidity(true))
		require.True(t, ok)
		require.Equal(t, "carol", removed.Identity)

		_, ok = registry.RemoveRandomMatching(domain.MatchLiquidity(true))
		require.False(t, ok)

		drained := registry.DrainAll()
		require.Len(t, drained, 1)
		require.Equal(t, "bob", drained[0].Identity)
		require.Zero(t, registry.Size())
	})

	t.Run("concurrent remove", func(t *testing.T) {
		registry := store.NewRegistry(uuid.New().String())
		numOfInputs := 20
		for i := 0; i < numOfInputs; i++ {
			require.NoError(t, registry.Put(newInput(fmt.Sprintf("user%d", i), uint32(i), false)))
		}

		var lock sync.Mutex
		removed := make(map[string]int)
		wg := sync.WaitGroup{}
		for i := 0; i < numOfInputs*2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				in, ok := registry.RemoveRandomMatching(domain.MatchAll)
				if !ok {
					return
				}
				lock.Lock()
				removed[in.Identity]++
				lock.Unlock()
			}()
		}
		wg.Wait()

		// redis watches may give up under contention, never remove twice
		for identity, count := range removed {
			require.Equal(t, 1, count, identity)
		}
		require.Equal(t, numOfInputs, len(removed)+registry.Size())
		registry.DrainAll()
	})
}

func TestRemoveRandomMatchingIsUniform(t *testing.T) {
	numOfInputs := 5
	numOfRuns := 5000
	counts := make(map[string]int)

	registry := inmemory.NewInputRegistry()
	for run := 0; run < numOfRuns; run++ {
		for i := 0; i < numOfInputs; i++ {
			require.NoError(t, registry.Put(newInput(fmt.Sprintf("user%d", i), uint32(i), false)))
		}
		removed, ok := registry.RemoveRandomMatching(domain.MatchAll)
		require.True(t, ok)
		counts[removed.Identity]++
		registry.DrainAll()
	}

	require.Len(t, counts, numOfInputs)
	expected := numOfRuns / numOfInputs
	for identity, count := range counts {
		require.InDelta(t, expected, count, float64(expected)*0.2, identity)
	}
}

func newInput(identity string, vout uint32, liquidity bool) domain.RegisteredInput {
	return domain.RegisteredInput{
		Identity:  identity,
		PoolId:    "0.01btc",
		Outpoint:  domain.Outpoint{Txid: txid, VOut: vout},
		Value:     1000000,
		Liquidity: liquidity,
		CreatedAt: time.Unix(1700000000, 0),
	}
}
