package domain

import "fmt"

type admissionState struct {
	mustMix   int
	liquidity int
	fee       uint64
}

func (s admissionState) with(input RegisteredInput, denomination uint64) admissionState {
	if input.Liquidity {
		s.liquidity++
		return s
	}
	s.mustMix++
	s.fee += input.MinerFee(denomination)
	return s
}

func (r *Round) admissionState() admissionState {
	st := admissionState{}
	for _, in := range r.Admitted.FindAll(MatchAll) {
		st = st.with(in, r.Pool.Denomination)
	}
	return st
}

func (r *Round) MustMixCount() int {
	return r.admissionState().mustMix
}

func (r *Round) LiquidityCount() int {
	return r.admissionState().liquidity
}

// MinerFeeAccumulated is the sum of the fees brought by the admitted
// must-mix inputs.
func (r *Round) MinerFeeAccumulated() uint64 {
	return r.admissionState().fee
}

func (r *Round) HasMinMustMixAndFeeReached() bool {
	return hasMinMustMixAndFeeReached(r.Pool, r.admissionState())
}

// DisableSurge turns surge slots off (or back on) and recomputes the surge
// level.
func (r *Round) DisableSurge(disabled bool) {
	r.surgeDisabled = disabled
	r.recomputeSurge()
}

func (r *Round) IsSurgeDisabled() bool {
	return r.surgeDisabled
}

func (r *Round) ComputeSurge() int {
	return computeSurge(r.Pool, r.admissionState(), r.surgeDisabled)
}

func (r *Round) AvailableMustMixSlots() int {
	return availableMustMixSlots(r.Pool, r.admissionState(), r.SurgeLevel)
}

func (r *Round) AvailableLiquiditySlots() int {
	return availableLiquiditySlots(r.Pool, r.admissionState(), r.SurgeLevel)
}

// CheckAdmission tells whether the input could be admitted right now. A nil
// error means there is a slot for it, AdmissionDeferredError means it must
// wait for another round.
func (r *Round) CheckAdmission(input RegisteredInput) error {
	st := r.admissionState()
	if r.Admitted.Size() >= r.Pool.AnonymitySet+r.SurgeLevel {
		return AdmissionDeferredError{"round is full"}
	}

	if input.Liquidity {
		if availableLiquiditySlots(r.Pool, st, r.SurgeLevel) < 1 {
			return AdmissionDeferredError{"no liquidity slot available"}
		}
	} else {
		slots := availableMustMixSlots(r.Pool, st, r.SurgeLevel)
		if slots < 1 {
			return AdmissionDeferredError{"no must-mix slot available"}
		}
		// the last must-mix slot goes only to an input that lets the round
		// reach the miner fee target
		if slots == 1 && !hasMinMustMixAndFeeReached(r.Pool, st.with(input, r.Pool.Denomination)) {
			return AdmissionDeferredError{
				"insufficient miner fee to take the last must-mix slot",
			}
		}
	}

	if limit := r.Pool.MaxInputsSameHash; limit > 0 {
		if r.Admitted.SizeMatching(MatchOriginTxid(input.Outpoint.Txid)) >= limit {
			return AdmissionDeferredError{
				fmt.Sprintf("too many inputs from tx %s", input.Outpoint.Txid),
			}
		}
	}
	if limit := r.Pool.MaxInputsSameUserHash; limit > 0 && len(input.UserHash) > 0 {
		if r.Admitted.SizeMatching(MatchUserHash(input.UserHash)) >= limit {
			return AdmissionDeferredError{"too many inputs from the same user"}
		}
	}
	return nil
}

func (r *Round) recomputeSurge() {
	r.SurgeLevel = r.ComputeSurge()
}

func hasMinMustMixAndFeeReached(pool Pool, st admissionState) bool {
	return st.mustMix >= pool.MinMustMix && st.fee >= pool.Fees.MinerFeeMix
}

// computeSurge is the greatest number of extra slots, up to the pool's cap,
// the accumulated fee pays for at the minimum relay fee rate. Sizes grow with
// the number of slots so the scan stops at the first unpaid one.
func computeSurge(pool Pool, st admissionState, disabled bool) int {
	if disabled || pool.SurgeCap < 1 || !hasMinMustMixAndFeeReached(pool, st) {
		return 0
	}
	surge := 0
	for i := 1; i <= pool.SurgeCap; i++ {
		required := pool.Fees.MinRelayFeeRate * uint64(pool.EstimatedTxSize(i))
		if st.fee < required {
			break
		}
		surge = i
	}
	return surge
}

// availableMustMixSlots is zero as soon as any surge slot opens.
func availableMustMixSlots(pool Pool, st admissionState, surge int) int {
	if surge > 0 {
		return 0
	}
	return pool.AnonymitySet - max(st.liquidity, pool.MinLiquidity) - st.mustMix
}

// availableLiquiditySlots may be negative, meaning no liquidity is needed
// yet.
func availableLiquiditySlots(pool Pool, st admissionState, surge int) int {
	if !hasMinMustMixAndFeeReached(pool, st) {
		return pool.MinLiquidity - st.liquidity
	}
	return pool.AnonymitySet + surge - max(st.mustMix, pool.MinMustMix) - st.liquidity
}
