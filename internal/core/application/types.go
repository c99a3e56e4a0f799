package application

import (
	"context"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
)

type Service interface {
	Start() error
	Stop()
	RegisterInput(ctx context.Context, req RegisterInputRequest) error
	UnregisterInput(ctx context.Context, poolId, identity string, outpoint domain.Outpoint) error
	ConfirmInput(
		ctx context.Context, roundId, identity string,
		outpoint domain.Outpoint, blindedBordereau []byte,
	) ([]byte, error)
	RegisterOutput(
		ctx context.Context, roundId, address string, bordereau, signature []byte,
	) error
	RevealOutput(ctx context.Context, roundId, identity, address string) error
	SignInput(ctx context.Context, roundId, identity string, witness [][]byte) (int, error)
	Disconnect(ctx context.Context, identity string)
	GetPools(ctx context.Context) ([]PoolStatus, error)
	GetRoundOutcomes(ctx context.Context, poolId string, limit int) ([]domain.RoundOutcome, error)
}

type RegisterInputRequest struct {
	PoolId string `json:"poolId"`
	// Identity acts as a bearer secret for every later call of the client.
	Identity  string          `json:"identity"`
	Outpoint  domain.Outpoint `json:"outpoint"`
	Signature string          `json:"signature"`
	Liquidity bool            `json:"liquidity"`
	UserHash  string          `json:"userHash,omitempty"`
}

type PoolStatus struct {
	PoolId             string
	Denomination       uint64
	MustMixBalanceMin  uint64
	MustMixBalanceCap  uint64
	MustMixBalanceMax  uint64
	MinMustMix         int
	MinLiquidity       int
	AnonymitySet       int
	NumMustMixQueued   int
	NumLiquidityQueued int
	Round              *RoundStatus
}

type RoundStatus struct {
	Id             string
	Phase          string
	PhaseStartedAt time.Time
	NumAdmitted    int
	NumConfirming  int
	NumMustMix     int
	NumLiquidity   int
	MinerFee       uint64
	SurgeLevel     int
}

// Messages delivered to clients through the transport.

type BlindPublicKey struct {
	Modulus  string `json:"modulus"`
	Exponent int    `json:"exponent"`
}

type ConfirmInputInvite struct {
	Outpoint     string         `json:"outpoint"`
	Denomination uint64         `json:"denomination"`
	PublicKey    BlindPublicKey `json:"publicKey"`
	Deadline     int64          `json:"deadline"`
}

type RegisterOutputStart struct {
	Inputs   int   `json:"inputs"`
	Deadline int64 `json:"deadline"`
}

type RevealOutputRequest struct {
	Deadline int64 `json:"deadline"`
}

type SigningRequest struct {
	Tx         string `json:"tx"`
	InputIndex int    `json:"inputIndex"`
	Deadline   int64  `json:"deadline"`
}

type RoundResult struct {
	Success bool   `json:"success"`
	Txid    string `json:"txid,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Info    string `json:"info,omitempty"`
	Blamed  bool   `json:"blamed,omitempty"`
}

type InputRequeued struct {
	Outpoint    string `json:"outpoint"`
	Reason      string `json:"reason"`
	Quarantined bool   `json:"quarantined,omitempty"`
}

type InputRejected struct {
	Outpoint string `json:"outpoint"`
	Reason   string `json:"reason"`
}
