package domain

import (
	"context"
	"time"
)

type RoundRepository interface {
	AddRoundOutcome(ctx context.Context, outcome RoundOutcome) error
	GetRoundOutcome(ctx context.Context, id string) (*RoundOutcome, error)
	GetRoundOutcomes(ctx context.Context, poolId string, limit int) ([]RoundOutcome, error)
	Close()
}

type BlameRepository interface {
	AddBlame(ctx context.Context, blame Blame) error
	CountBlames(ctx context.Context, outpoint Outpoint) (int, error)
	AddBan(ctx context.Context, ban Ban) error
	// GetBan returns nil if the outpoint has no active ban at the given time.
	GetBan(ctx context.Context, outpoint Outpoint, now time.Time) (*Ban, error)
	Close()
}

// RoundOutcome is what is kept of a terminated round.
type RoundOutcome struct {
	Id                string
	PoolId            string
	Denomination      uint64
	Phase             PhaseCode
	Txid              string
	Tx                string
	FailReason        string
	FailInfo          string
	Inputs            []Outpoint
	Blamed            []InputKey
	NumMustMix        int
	NumLiquidity      int
	MinerFee          uint64
	SurgeLevel        int
	StartingTimestamp int64
	EndingTimestamp   int64
}

func (o RoundOutcome) IsSucceeded() bool {
	return o.Phase == SuccessPhase
}

// Outcome summarizes a terminated round. It returns nil while the round is
// still running.
func (r *Round) Outcome() *RoundOutcome {
	if !r.IsTerminal() {
		return nil
	}
	st := r.admissionState()
	inputs := r.SortedInputs()
	outpoints := make([]Outpoint, 0, len(inputs))
	for _, in := range inputs {
		outpoints = append(outpoints, in.Outpoint)
	}
	outcome := &RoundOutcome{
		Id:                r.Id,
		PoolId:            r.Pool.Id,
		Denomination:      r.Pool.Denomination,
		Phase:             r.PhaseCode(),
		Inputs:            outpoints,
		NumMustMix:        st.mustMix,
		NumLiquidity:      st.liquidity,
		MinerFee:          st.fee,
		SurgeLevel:        r.SurgeLevel,
		StartingTimestamp: r.StartingTimestamp,
		EndingTimestamp:   r.EndingTimestamp,
	}
	switch phase := r.Phase.(type) {
	case Success:
		outcome.Txid = phase.Txid
		outcome.Tx = phase.Tx
	case Fail:
		outcome.FailReason = phase.Reason
		outcome.FailInfo = phase.Info
		outcome.Blamed = phase.Blamed
	}
	return outcome
}

type Blame struct {
	Outpoint  Outpoint
	Identity  string
	RoundId   string
	Reason    string
	Timestamp int64
}

type Ban struct {
	Outpoint  Outpoint
	Reason    string
	CreatedAt int64
	ExpiresAt int64
}

func (b Ban) IsActive(now time.Time) bool {
	return b.ExpiresAt <= 0 || now.Unix() < b.ExpiresAt
}

const (
	BlameRevealMissing  = "output not revealed"
	BlameRevealMismatch = "revealed output not registered"
	BlameSigningTimeout = "input not signed"
	BlameInvalidWitness = "invalid witness"
	BlameInputSpent     = "input spent during round"
)

// fail reasons
const (
	FailRegisterOutputTimeout = "register output timeout"
	FailRevealOutput          = "reveal output"
	FailSigningTimeout        = "signing timeout"
	FailInputSpent            = "input spent"
	FailInvalidWitness        = "invalid witness"
	FailTxAssembly            = "tx assembly failed"
	FailBroadcast             = "broadcast failed"
	FailInternal              = "internal error"
)
