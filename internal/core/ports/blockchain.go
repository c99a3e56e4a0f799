package ports

import (
	"context"

	"github.com/ark-network/coinjoin/internal/core/domain"
)

type BlockchainService interface {
	GetConfirmations(ctx context.Context, outpoint domain.Outpoint) (uint32, error)
	IsUnspent(ctx context.Context, outpoint domain.Outpoint) (bool, error)
	// FetchTransaction returns the hex encoded tx with the given id.
	FetchTransaction(ctx context.Context, txid string) (string, error)
	Broadcast(ctx context.Context, tx string) (string, error)
}
