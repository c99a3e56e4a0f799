package ports

import "github.com/ark-network/coinjoin/internal/core/domain"

type RepoManager interface {
	Rounds() domain.RoundRepository
	Blames() domain.BlameRepository
	Close()
}
