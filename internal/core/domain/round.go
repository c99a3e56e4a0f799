package domain

import (
	"bytes"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ark-network/coinjoin/pkg/blindsig"
	"github.com/google/uuid"
)

type Round struct {
	Id                string
	Pool              Pool
	Phase             Phase
	SurgeLevel        int
	Admitted          InputRegistry
	Confirming        InputRegistry
	StartingTimestamp int64
	EndingTimestamp   int64
	PhaseTimestamps   map[PhaseCode]time.Time

	surgeDisabled bool
	signer        *blindsig.Signer
	changes       []RoundEvent
}

// NewRound starts a round in CONFIRM_INPUT. The admitted and confirming
// registries must be empty and are owned by the round from now on.
func NewRound(
	pool Pool, signer *blindsig.Signer, admitted, confirming InputRegistry,
) *Round {
	now := time.Now()
	r := &Round{
		Id:                uuid.New().String(),
		Pool:              pool,
		Phase:             ConfirmInput{},
		Admitted:          admitted,
		Confirming:        confirming,
		StartingTimestamp: now.Unix(),
		PhaseTimestamps:   map[PhaseCode]time.Time{ConfirmInputPhase: now},
		signer:            signer,
		changes:           make([]RoundEvent, 0),
	}
	r.raise(RoundStarted{
		Id:        r.Id,
		PoolId:    pool.Id,
		Timestamp: r.StartingTimestamp,
	})
	return r
}

func (r *Round) Events() []RoundEvent {
	return r.changes
}

func (r *Round) PublicKey() *rsa.PublicKey {
	return r.signer.PublicKey()
}

func (r *Round) PhaseCode() PhaseCode {
	if r.Phase == nil {
		return UndefinedPhase
	}
	return r.Phase.Code()
}

func (r *Round) PhaseStartedAt(code PhaseCode) time.Time {
	return r.PhaseTimestamps[code]
}

func (r *Round) IsTerminal() bool {
	return r.PhaseCode().IsTerminal()
}

func (r *Round) IsFailed() bool {
	return r.PhaseCode() == FailPhase
}

func (r *Round) IsSucceeded() bool {
	return r.PhaseCode() == SuccessPhase
}

// AddConfirming moves a candidate input into the confirming set, waiting for
// the client to send its blinded bordereau.
func (r *Round) AddConfirming(input RegisteredInput, now time.Time) error {
	if r.PhaseCode() != ConfirmInputPhase {
		return PhaseError{"invite inputs", r.PhaseCode()}
	}
	if _, ok := r.Admitted.Find(MatchOutpoint(input.Outpoint)); ok {
		return fmt.Errorf("input %s already admitted", input.Outpoint)
	}
	sameOutpointOtherOwner := And(
		MatchOutpoint(input.Outpoint), Not(MatchIdentity(input.Identity)),
	)
	if _, ok := r.Confirming.Find(sameOutpointOtherOwner); ok {
		return fmt.Errorf("input %s already invited for another client", input.Outpoint)
	}
	// one input per identity, outputs and witnesses are matched by identity
	otherInput := And(MatchIdentity(input.Identity), Not(MatchOutpoint(input.Outpoint)))
	_, admitted := r.Admitted.Find(otherInput)
	_, confirming := r.Confirming.Find(otherInput)
	if admitted || confirming {
		return fmt.Errorf("identity %s already has an input in round", input.Identity)
	}
	input.ConfirmingSince = now
	input.SignedBordereau = nil
	return r.Confirming.Put(input)
}

// ConfirmInput admits a confirming input and blind signs its bordereau. An
// input confirming twice gets back the signature it was issued the first
// time.
func (r *Round) ConfirmInput(key InputKey, blindedBordereau []byte) ([]byte, error) {
	if r.PhaseCode() != ConfirmInputPhase {
		return nil, PhaseError{"confirm inputs", r.PhaseCode()}
	}
	if admitted, ok := r.findAdmitted(key); ok {
		return admitted.SignedBordereau, nil
	}

	input, ok := r.Confirming.Find(matchKey(key))
	if !ok {
		return nil, ErrInputNotFound
	}
	if err := r.CheckAdmission(*input); err != nil {
		return nil, err
	}

	signed, err := r.signer.BlindSign(blindedBordereau)
	if err != nil {
		return nil, fmt.Errorf("failed to sign bordereau: %s", err)
	}

	r.Confirming.Remove(key)
	input.ConfirmingSince = time.Time{}
	input.SignedBordereau = signed
	if err := r.Admitted.Put(*input); err != nil {
		return nil, err
	}
	r.recomputeSurge()

	r.raise(InputAdmitted{
		Id:        r.Id,
		Outpoint:  input.Outpoint,
		Liquidity: input.Liquidity,
		Surge:     r.SurgeLevel,
		Timestamp: time.Now().Unix(),
	})
	return signed, nil
}

// ExpireConfirming drops the inputs that have been confirming since before
// the given deadline.
func (r *Round) ExpireConfirming(deadline time.Time) []RegisteredInput {
	expired := r.Confirming.FindAll(func(in RegisteredInput) bool {
		return in.ConfirmingSince.Before(deadline)
	})
	for i := range expired {
		r.Confirming.Remove(expired[i].Key())
		expired[i].ConfirmingSince = time.Time{}
	}
	return expired
}

// RemoveInput takes an input out of the round. It is allowed only before
// outputs registration started, later phases mark the input offline instead.
func (r *Round) RemoveInput(key InputKey) (*RegisteredInput, error) {
	if r.PhaseCode() != ConfirmInputPhase {
		return nil, PhaseError{"remove inputs", r.PhaseCode()}
	}
	if input, ok := r.Confirming.Remove(key); ok {
		input.ConfirmingSince = time.Time{}
		return input, nil
	}
	if input, ok := r.Admitted.Remove(key); ok {
		input.SignedBordereau = nil
		r.recomputeSurge()
		return input, nil
	}
	return nil, ErrInputNotFound
}

// EvictSurplusLiquidity takes random liquidity inputs out of the round until
// the admitted set fits its slots again. Slots shrink when an admitted
// must-mix input leaves or the surge level drops.
func (r *Round) EvictSurplusLiquidity() []RegisteredInput {
	evicted := make([]RegisteredInput, 0)
	if r.PhaseCode() != ConfirmInputPhase {
		return evicted
	}
	for {
		st := r.admissionState()
		limit := r.Pool.AnonymitySet + r.SurgeLevel - max(st.mustMix, r.Pool.MinMustMix)
		if st.liquidity <= limit {
			break
		}
		input, ok := r.Admitted.RemoveRandomMatching(MatchLiquidity(true))
		if !ok {
			break
		}
		input.SignedBordereau = nil
		evicted = append(evicted, *input)
		r.recomputeSurge()
	}
	return evicted
}

// MarkOffline flags every admitted input of the identity as offline and
// returns them. Inputs that could not be updated are returned along with
// the error.
func (r *Round) MarkOffline(identity string) ([]RegisteredInput, error) {
	inputs := r.Admitted.FindAll(MatchIdentity(identity))
	for i := range inputs {
		inputs[i].Offline = true
		if err := r.Admitted.Put(inputs[i]); err != nil {
			return inputs, fmt.Errorf("failed to mark input %s offline: %s", inputs[i].Outpoint, err)
		}
	}
	return inputs, nil
}

// IsReady tells whether the round may leave CONFIRM_INPUT.
func (r *Round) IsReady() bool {
	return r.PhaseCode() == ConfirmInputPhase &&
		r.Admitted.Size() >= r.Pool.AnonymitySet &&
		r.HasMinMustMixAndFeeReached()
}

// IsFull tells whether every slot, surge included, is taken.
func (r *Round) IsFull() bool {
	return r.Admitted.Size() >= r.Pool.AnonymitySet+r.SurgeLevel
}

// MarkReady records the first time the round was found ready and returns
// it.
func (r *Round) MarkReady(now time.Time) time.Time {
	phase, ok := r.Phase.(ConfirmInput)
	if !ok {
		return time.Time{}
	}
	if phase.ReadySince.IsZero() {
		phase.ReadySince = now
		r.Phase = phase
	}
	return phase.ReadySince
}

func (r *Round) StartRegisterOutput() error {
	if r.PhaseCode() != ConfirmInputPhase {
		return PhaseError{"start outputs registration", r.PhaseCode()}
	}
	if !r.IsReady() {
		return fmt.Errorf("round %s is not ready for outputs registration", r.Id)
	}
	r.changePhase(&RegisterOutput{
		Outputs:  make(map[string]struct{}),
		Redeemed: make(map[string]struct{}),
	})
	return nil
}

// RegisterOutput records an anonymous output. The caller presents an
// unblinded bordereau together with the coordinator signature over it.
func (r *Round) RegisterOutput(address string, bordereau, signature []byte) error {
	phase, ok := r.Phase.(*RegisterOutput)
	if !ok {
		return PhaseError{"register outputs", r.PhaseCode()}
	}
	if len(address) <= 0 {
		return fmt.Errorf("%w: missing address", ErrInvalidAddress)
	}
	if err := blindsig.Verify(r.signer.PublicKey(), bordereau, signature); err != nil {
		if errors.Is(err, blindsig.ErrInvalidSignature) {
			return ErrInvalidSignature
		}
		return err
	}

	token := hex.EncodeToString(bordereau)
	if _, ok := phase.Redeemed[token]; ok {
		return ErrBordereauAlreadyRedeemed
	}
	if _, ok := phase.Outputs[address]; ok {
		return ErrAddressAlreadyRegistered
	}
	if _, ok := r.Admitted.Find(MatchAddress(address)); ok {
		return ErrAddressReuse
	}

	phase.Redeemed[token] = struct{}{}
	phase.Outputs[address] = struct{}{}
	return nil
}

func (r *Round) AllOutputsRegistered() bool {
	phase, ok := r.Phase.(*RegisterOutput)
	if !ok {
		return false
	}
	return len(phase.Outputs) >= r.Admitted.Size()
}

// SortedOutputs returns the registered receive addresses. All outputs carry
// the denomination so the canonical order reduces to the address order.
func (r *Round) SortedOutputs() []string {
	var outputs map[string]struct{}
	switch phase := r.Phase.(type) {
	case *RegisterOutput:
		outputs = phase.Outputs
	case *RevealOutput:
		outputs = phase.Outputs
	case *Signing:
		return append([]string{}, phase.Outputs...)
	default:
		return nil
	}
	list := make([]string, 0, len(outputs))
	for addr := range outputs {
		list = append(list, addr)
	}
	sort.Strings(list)
	return list
}

// SortedInputs returns the admitted inputs ordered by txid, then vout.
func (r *Round) SortedInputs() []RegisteredInput {
	if phase, ok := r.Phase.(*Signing); ok {
		return append([]RegisteredInput{}, phase.Inputs...)
	}
	inputs := r.Admitted.FindAll(MatchAll)
	sort.SliceStable(inputs, func(i, j int) bool {
		a, b := inputs[i].Outpoint, inputs[j].Outpoint
		if a.Txid != b.Txid {
			return a.Txid < b.Txid
		}
		return a.VOut < b.VOut
	})
	return inputs
}

// StartRevealOutput is entered when outputs registration timed out: every
// admitted client must reveal the output it registered.
func (r *Round) StartRevealOutput() error {
	phase, ok := r.Phase.(*RegisterOutput)
	if !ok {
		return PhaseError{"start outputs reveal", r.PhaseCode()}
	}
	r.changePhase(&RevealOutput{
		Outputs:  phase.Outputs,
		Revealed: make(map[string]string),
	})
	return nil
}

func (r *Round) RevealOutput(identity, address string) error {
	phase, ok := r.Phase.(*RevealOutput)
	if !ok {
		return PhaseError{"reveal outputs", r.PhaseCode()}
	}
	if _, ok := r.Admitted.Find(MatchIdentity(identity)); !ok {
		return ErrNotAdmitted
	}
	if _, ok := phase.Revealed[identity]; ok {
		return ErrAlreadyRevealed
	}
	for _, revealed := range phase.Revealed {
		if revealed == address {
			return ErrAddressAlreadyRevealed
		}
	}
	phase.Revealed[identity] = address
	return nil
}

func (r *Round) AllOutputsRevealed() bool {
	phase, ok := r.Phase.(*RevealOutput)
	if !ok {
		return false
	}
	for _, in := range r.Admitted.FindAll(MatchAll) {
		if _, ok := phase.Revealed[in.Identity]; !ok {
			return false
		}
	}
	return true
}

// RevealBlames lists the admitted inputs whose owner did not reveal, or
// revealed an address that was never registered.
func (r *Round) RevealBlames() []RegisteredInput {
	phase, ok := r.Phase.(*RevealOutput)
	if !ok {
		return nil
	}
	return r.Admitted.FindAll(func(in RegisteredInput) bool {
		address, ok := phase.Revealed[in.Identity]
		if !ok {
			return true
		}
		_, registered := phase.Outputs[address]
		return !registered
	})
}

// StartSigning freezes inputs and outputs in canonical order. The unsigned
// tx must have been built with SortedInputs and SortedOutputs.
func (r *Round) StartSigning(unsignedTx string) error {
	if _, ok := r.Phase.(*RegisterOutput); !ok {
		return PhaseError{"start signing", r.PhaseCode()}
	}
	if !r.AllOutputsRegistered() {
		return fmt.Errorf("round %s: not all outputs are registered", r.Id)
	}
	if len(unsignedTx) <= 0 {
		return fmt.Errorf("missing unsigned tx")
	}
	inputs, outputs := r.SortedInputs(), r.SortedOutputs()
	r.changePhase(&Signing{
		Inputs:     inputs,
		Outputs:    outputs,
		UnsignedTx: unsignedTx,
		Witnesses:  make(map[string][][]byte),
	})
	return nil
}

// Sign stores the witness of the identity's input and returns the input
// index in the tx.
func (r *Round) Sign(identity string, witness [][]byte) (int, error) {
	phase, ok := r.Phase.(*Signing)
	if !ok {
		return -1, PhaseError{"sign", r.PhaseCode()}
	}
	index := -1
	for i, in := range phase.Inputs {
		if in.Identity == identity {
			index = i
			break
		}
	}
	if index < 0 {
		return -1, ErrNotAdmitted
	}
	if _, ok := phase.Witnesses[identity]; ok {
		return -1, ErrAlreadySigned
	}
	if len(witness) <= 0 || len(bytes.Join(witness, nil)) <= 0 {
		return -1, fmt.Errorf("missing witness")
	}
	phase.Witnesses[identity] = witness
	return index, nil
}

func (r *Round) AllSigned() bool {
	phase, ok := r.Phase.(*Signing)
	if !ok {
		return false
	}
	return len(phase.Witnesses) >= len(phase.Inputs)
}

// UnsignedInputs lists the inputs still missing a witness.
func (r *Round) UnsignedInputs() []RegisteredInput {
	phase, ok := r.Phase.(*Signing)
	if !ok {
		return nil
	}
	missing := make([]RegisteredInput, 0)
	for _, in := range phase.Inputs {
		if _, ok := phase.Witnesses[in.Identity]; !ok {
			missing = append(missing, in)
		}
	}
	return missing
}

// Witnesses returns the collected witnesses by input index.
func (r *Round) Witnesses() map[int][][]byte {
	phase, ok := r.Phase.(*Signing)
	if !ok {
		return nil
	}
	witnesses := make(map[int][][]byte, len(phase.Witnesses))
	for i, in := range phase.Inputs {
		if w, ok := phase.Witnesses[in.Identity]; ok {
			witnesses[i] = w
		}
	}
	return witnesses
}

func (r *Round) Succeed(txid, tx string) error {
	if r.PhaseCode() != SigningPhase {
		return PhaseError{"finalize", r.PhaseCode()}
	}
	if !r.AllSigned() {
		return fmt.Errorf("round %s: not all inputs are signed", r.Id)
	}
	r.changePhase(Success{Txid: txid, Tx: tx})
	r.EndingTimestamp = time.Now().Unix()
	r.raise(RoundSucceeded{
		Id:        r.Id,
		Txid:      txid,
		Timestamp: r.EndingTimestamp,
	})
	return nil
}

// Fail terminates the round. Failing a terminated round is a no-op.
func (r *Round) Fail(reason, info string, blamed []InputKey) []RoundEvent {
	if r.IsTerminal() {
		return nil
	}
	r.changePhase(Fail{Reason: reason, Info: info, Blamed: blamed})
	r.EndingTimestamp = time.Now().Unix()
	event := RoundFailed{
		Id:        r.Id,
		Reason:    reason,
		Info:      info,
		Blamed:    blamed,
		Timestamp: r.EndingTimestamp,
	}
	r.raise(event)
	return []RoundEvent{event}
}

func (r *Round) changePhase(next Phase) {
	from := r.PhaseCode()
	now := time.Now()
	r.Phase = next
	r.PhaseTimestamps[next.Code()] = now
	r.raise(PhaseChanged{
		Id:        r.Id,
		From:      from,
		To:        next.Code(),
		Timestamp: now.Unix(),
	})
}

func (r *Round) findAdmitted(key InputKey) (*RegisteredInput, bool) {
	return r.Admitted.Find(matchKey(key))
}

func (r *Round) raise(event RoundEvent) {
	if r.changes == nil {
		r.changes = make([]RoundEvent, 0)
	}
	r.changes = append(r.changes, event)
}

func matchKey(key InputKey) InputPredicate {
	return func(in RegisteredInput) bool { return in.Key() == key }
}
