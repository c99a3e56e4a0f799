package ports

import (
	"context"

	"github.com/ark-network/coinjoin/internal/core/domain"
)

// FraudService records blames and decides about bans. The coordinator only
// reports misbehaviors, it never bans on its own.
type FraudService interface {
	Blame(ctx context.Context, input domain.RegisteredInput, reason, roundId string) error
	// IsBanned returns the ban reason if the outpoint is banned.
	IsBanned(ctx context.Context, outpoint domain.Outpoint) (bool, string, error)
}
