package ports

import "github.com/ark-network/coinjoin/internal/core/domain"

type LiveStore interface {
	// Queue returns the waiting queue of the given pool for the given class
	// of inputs. Queues outlive rounds.
	Queue(poolId string, liquidity bool) domain.InputRegistry
	// NewRegistry returns an empty registry holding the inputs of a round.
	NewRegistry(name string) domain.InputRegistry
	Close()
}
