package application

import (
	"fmt"

	"github.com/ark-network/coinjoin/internal/core/domain"
)

type errPoolStopped struct {
	id string
}

func (e errPoolStopped) Error() string {
	return fmt.Sprintf("pool %s is stopped", e.id)
}

type errRoundMismatch struct {
	expected, got string
}

func (e errRoundMismatch) Error() string {
	return fmt.Sprintf("round %s is not the active round (%s)", e.got, e.expected)
}

func (e errRoundMismatch) Unwrap() error {
	return domain.ErrRoundNotFound
}
