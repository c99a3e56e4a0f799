package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// FeePolicy amounts are in sats, MinRelayFeeRate in sat/vbyte and weights in
// vbytes.
type FeePolicy struct {
	MinerFeeMin     uint64
	MinerFeeCap     uint64
	MinerFeeMax     uint64
	MinerFeeMix     uint64
	MinRelayFeeRate uint64
	// vsize added by one participant (input + output). When zero, sizes are
	// estimated for P2WPKH inputs and outputs.
	InputWeight     int
	SurgeSlotWeight int
}

type Pool struct {
	Id           string
	Denomination uint64
	MinMustMix   int
	MinLiquidity int
	AnonymitySet int
	SurgeCap     int
	// surge is turned off while the liquidity queue holds less than
	// LowLiquidityThreshold inputs
	SurgeDisabledForLowLiquidity bool
	LowLiquidityThreshold        int
	MaxInputsSameHash            int
	MaxInputsSameUserHash        int
	Fees                         FeePolicy
}

func (p Pool) Validate() error {
	if len(p.Id) <= 0 {
		return fmt.Errorf("missing pool id")
	}
	if p.Denomination <= 0 {
		return fmt.Errorf("pool %s: missing denomination", p.Id)
	}
	if p.AnonymitySet <= 1 {
		return fmt.Errorf("pool %s: anonymity set must be greater than 1", p.Id)
	}
	if p.MinMustMix < 1 {
		return fmt.Errorf("pool %s: min must mix must be at least 1", p.Id)
	}
	if p.MinLiquidity < 0 {
		return fmt.Errorf("pool %s: min liquidity must not be negative", p.Id)
	}
	if p.MinMustMix+p.MinLiquidity > p.AnonymitySet {
		return fmt.Errorf(
			"pool %s: min must mix %d + min liquidity %d exceed anonymity set %d",
			p.Id, p.MinMustMix, p.MinLiquidity, p.AnonymitySet,
		)
	}
	if p.SurgeCap < 0 {
		return fmt.Errorf("pool %s: surge cap must not be negative", p.Id)
	}
	if p.Fees.MinerFeeMin > p.Fees.MinerFeeMax {
		return fmt.Errorf("pool %s: miner fee min is greater than miner fee max", p.Id)
	}
	if p.Fees.MinerFeeCap > 0 &&
		(p.Fees.MinerFeeCap < p.Fees.MinerFeeMin || p.Fees.MinerFeeCap > p.Fees.MinerFeeMax) {
		return fmt.Errorf("pool %s: miner fee cap out of [min, max] range", p.Id)
	}
	if p.Fees.InputWeight < 0 || p.Fees.SurgeSlotWeight < 0 {
		return fmt.Errorf("pool %s: weights must not be negative", p.Id)
	}
	return nil
}

// MustMixValueRange is the accepted value range of a must-mix input.
func (p Pool) MustMixValueRange() (uint64, uint64) {
	return p.Denomination + p.Fees.MinerFeeMin, p.Denomination + p.Fees.MinerFeeMax
}

// EstimatedTxSize is the expected vsize of the mix transaction with surge
// extra slots on top of the anonymity set.
func (p Pool) EstimatedTxSize(surge int) int {
	if p.Fees.InputWeight > 0 {
		slotWeight := p.Fees.SurgeSlotWeight
		if slotWeight <= 0 {
			slotWeight = p.Fees.InputWeight
		}
		overhead := txsizes.EstimateVirtualSize(0, 0, 0, 0, nil, 0)
		return overhead + p.AnonymitySet*p.Fees.InputWeight + surge*slotWeight
	}

	numParticipants := p.AnonymitySet + surge
	outs := make([]*wire.TxOut, 0, numParticipants)
	for i := 0; i < numParticipants; i++ {
		outs = append(outs, wire.NewTxOut(
			int64(p.Denomination), make([]byte, txsizes.P2WPKHPkScriptSize),
		))
	}
	return txsizes.EstimateVirtualSize(0, 0, numParticipants, 0, outs, 0)
}

// MustMixBalanceCap is the value advertised to clients as the highest
// must-mix input worth registering.
func (p Pool) MustMixBalanceCap() uint64 {
	if p.Fees.MinerFeeCap <= 0 {
		return p.Denomination + p.Fees.MinerFeeMax
	}
	return p.Denomination + p.Fees.MinerFeeCap
}
