package application

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/ark-network/coinjoin/pkg/blindsig"
	log "github.com/sirupsen/logrus"
)

type blame struct {
	input  domain.RegisteredInput
	reason string
}

// poolRunner drives the rounds of one pool. Every state change goes through
// the run loop, so the active round has a single writer: client requests and
// watchdog ticks are submitted as commands and executed in order.
type poolRunner struct {
	svc  *service
	pool domain.Pool

	mustMix    domain.InputRegistry
	liquidity  domain.InputRegistry
	admitted   domain.InputRegistry
	confirming domain.InputRegistry

	cmds chan func()
	quit chan struct{}
	done chan struct{}

	// owned by the run loop
	round        *domain.Round
	stopWatchdog func()

	statusLock sync.RWMutex
	status     PoolStatus
}

func newPoolRunner(svc *service, pool domain.Pool) *poolRunner {
	return &poolRunner{
		svc:        svc,
		pool:       pool,
		mustMix:    svc.liveStore.Queue(pool.Id, false),
		liquidity:  svc.liveStore.Queue(pool.Id, true),
		admitted:   svc.liveStore.NewRegistry(fmt.Sprintf("%s:admitted", pool.Id)),
		confirming: svc.liveStore.NewRegistry(fmt.Sprintf("%s:confirming", pool.Id)),
		cmds:       make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (p *poolRunner) start() error {
	// leftovers of a previous run go back in queue
	leftovers := append(p.admitted.DrainAll(), p.confirming.DrainAll()...)
	if err := p.startRound(nil, leftovers); err != nil {
		return err
	}
	p.refreshStatus()
	go p.run()
	return nil
}

func (p *poolRunner) stop() {
	close(p.quit)
	<-p.done
	if p.stopWatchdog != nil {
		p.stopWatchdog()
		p.stopWatchdog = nil
	}
}

func (p *poolRunner) run() {
	defer close(p.done)

	for {
		select {
		case <-p.quit:
			return
		case cmd := <-p.cmds:
			p.exec(cmd)
			p.refreshStatus()
		}
	}
}

// exec runs cmd in the loop. A panic fails the active round so that the
// pool moves on with a fresh one.
func (p *poolRunner) exec(cmd func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("recovered from panic in pool %s: %v", p.pool.Id, r)
			p.failOnPanic(r)
		}
	}()
	cmd()
}

func (p *poolRunner) failOnPanic(cause any) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("failed to terminate round of pool %s after panic: %v", p.pool.Id, r)
		}
	}()
	if p.round == nil || p.round.IsTerminal() {
		return
	}
	p.fail(domain.FailInternal, fmt.Sprintf("panic: %v", cause), nil)
}

// do submits fn to the run loop and waits for its result.
func (p *poolRunner) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	cmd := func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("internal error")
				panic(r)
			}
		}()
		err := fn()
		p.refreshStatus()
		errCh <- err
	}

	select {
	case p.cmds <- cmd:
	case <-p.quit:
		return errPoolStopped{p.pool.Id}
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryDo submits fn only if the run loop is idle.
func (p *poolRunner) tryDo(fn func()) bool {
	select {
	case p.cmds <- fn:
		return true
	default:
		return false
	}
}

func (p *poolRunner) watchdog(roundId string) func() {
	return func() {
		if ok := p.tryDo(func() { p.onTick(roundId) }); !ok {
			log.Tracef("pool %s busy, skipping watchdog tick", p.pool.Id)
		}
	}
}

func (p *poolRunner) startRound(victims, leftovers []domain.RegisteredInput) error {
	signer, err := blindsig.NewSigner(p.svc.cfg.BlindKeyBits)
	if err != nil {
		return fmt.Errorf("failed to generate round key: %s", err)
	}

	round := domain.NewRound(p.pool, signer, p.admitted, p.confirming)
	p.round = round

	// quarantines last one round only
	for _, queue := range []domain.InputRegistry{p.mustMix, p.liquidity} {
		for _, in := range queue.FindAll(domain.MatchQuarantined) {
			in.QuarantineReason = ""
			in.QuarantinedRound = ""
			if err := queue.Put(in); err != nil {
				log.WithError(err).Warnf("failed to release quarantine of %s", in.Outpoint)
			}
		}
	}
	for _, in := range victims {
		p.requeue(in, "previous round failed", round.Id)
	}
	for _, in := range leftovers {
		p.requeue(in, "previous round ended before admission", "")
	}

	p.refreshSurge()

	stop, err := p.svc.scheduler.ScheduleTask(p.svc.cfg.WatchdogInterval, p.watchdog(round.Id))
	if err != nil {
		return fmt.Errorf("failed to schedule watchdog: %s", err)
	}
	p.stopWatchdog = stop

	log.Infof("started round %s in pool %s", round.Id, p.pool.Id)
	p.sweep()
	return nil
}

func (p *poolRunner) enqueue(input domain.RegisteredInput) error {
	sameOutpointOtherOwner := domain.And(
		domain.MatchOutpoint(input.Outpoint),
		domain.Not(domain.MatchIdentity(input.Identity)),
	)
	if p.holds(sameOutpointOtherOwner) {
		return domain.InputRejectedError{
			Outpoint: input.Outpoint,
			Reason:   "already registered by another client",
		}
	}
	if p.inRound(domain.MatchOutpoint(input.Outpoint)) {
		return nil
	}

	// the class of an input may change between registrations
	p.queue(!input.Liquidity).Remove(input.Key())
	if err := p.queue(input.Liquidity).Put(input); err != nil {
		return err
	}
	log.Debugf("queued input %s in pool %s", input, p.pool.Id)

	p.sweep()
	return nil
}

func (p *poolRunner) unregister(key domain.InputKey) error {
	_, removedMustMix := p.mustMix.Remove(key)
	_, removedLiquidity := p.liquidity.Remove(key)
	removed := removedMustMix || removedLiquidity

	if p.inRound(keyMatcher(key)) {
		if p.round.PhaseCode() != domain.ConfirmInputPhase {
			return domain.PhaseError{
				Operation: "unregister a mixing input", Phase: p.round.PhaseCode(),
			}
		}
		if _, err := p.round.RemoveInput(key); err != nil {
			return err
		}
		removed = true
		p.sweep()
	}

	if !removed {
		return domain.ErrInputNotFound
	}
	log.Debugf("unregistered input %s from pool %s", key.Outpoint, p.pool.Id)
	return nil
}

func (p *poolRunner) confirmInput(
	roundId string, key domain.InputKey, blindedBordereau []byte,
) ([]byte, error) {
	if err := p.checkRound(roundId); err != nil {
		return nil, err
	}

	signed, err := p.round.ConfirmInput(key, blindedBordereau)
	if err != nil {
		if domain.IsAdmissionDeferred(err) {
			if input, rerr := p.round.RemoveInput(key); rerr == nil {
				p.requeue(*input, err.Error(), "")
			}
		}
		return nil, err
	}

	log.Debugf(
		"admitted input %s in round %s (%d/%d, surge %d)",
		key.Outpoint, p.round.Id, p.admitted.Size(), p.pool.AnonymitySet, p.round.SurgeLevel,
	)
	p.checkReady(time.Now())
	return signed, nil
}

func (p *poolRunner) registerOutput(
	roundId, address string, bordereau, signature []byte,
) error {
	if err := p.checkRound(roundId); err != nil {
		return err
	}
	if err := p.svc.builder.ValidateAddress(address); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidAddress, err)
	}
	if err := p.round.RegisterOutput(address, bordereau, signature); err != nil {
		return err
	}

	if p.round.AllOutputsRegistered() {
		p.startSigning()
	}
	return nil
}

func (p *poolRunner) revealOutput(roundId, identity, address string) error {
	if err := p.checkRound(roundId); err != nil {
		return err
	}
	if err := p.round.RevealOutput(identity, address); err != nil {
		return err
	}

	if p.round.AllOutputsRevealed() {
		p.endReveal()
	}
	return nil
}

func (p *poolRunner) sign(roundId, identity string, witness [][]byte) (int, error) {
	if err := p.checkRound(roundId); err != nil {
		return -1, err
	}
	index, err := p.round.Sign(identity, witness)
	if err != nil {
		return -1, err
	}

	if p.round.AllSigned() {
		p.finalize()
	}
	return index, nil
}

func (p *poolRunner) disconnect(identity string) {
	for _, queue := range []domain.InputRegistry{p.mustMix, p.liquidity} {
		for _, in := range queue.FindAll(domain.MatchIdentity(identity)) {
			queue.Remove(in.Key())
		}
	}

	switch phase := p.round.PhaseCode(); {
	case phase == domain.ConfirmInputPhase:
		inputs := append(
			p.confirming.FindAll(domain.MatchIdentity(identity)),
			p.admitted.FindAll(domain.MatchIdentity(identity))...,
		)
		for _, in := range inputs {
			// nolint:errcheck
			p.round.RemoveInput(in.Key())
			log.Debugf("removed input %s of disconnected client from round %s", in.Outpoint, p.round.Id)
		}
		if len(inputs) > 0 {
			p.sweep()
		}
	case phase.IsTerminal():
	default:
		inputs, err := p.round.MarkOffline(identity)
		if err != nil {
			log.WithError(err).Warnf("failed to flag inputs of %s offline in round %s", identity, p.round.Id)
		}
		for _, in := range inputs {
			log.Debugf("input %s of round %s is offline", in.Outpoint, p.round.Id)
		}
	}
}

func (p *poolRunner) onTick(roundId string) {
	if p.round.Id != roundId || p.round.IsTerminal() {
		return
	}

	now := time.Now()
	timing := p.svc.timing
	switch p.round.PhaseCode() {
	case domain.ConfirmInputPhase:
		p.expireConfirming(now)
		p.refreshSurge()
		p.sweep()
		p.checkReady(now)
	case domain.RegisterOutputPhase:
		if timing.isPhaseExpired(p.round, now) {
			log.Infof(
				"round %s: outputs registration timed out (%d/%d)",
				p.round.Id, len(p.round.SortedOutputs()), p.admitted.Size(),
			)
			p.startReveal()
		}
	case domain.RevealOutputPhase:
		if timing.isPhaseExpired(p.round, now) {
			p.endReveal()
		}
	case domain.SigningPhase:
		if timing.isPhaseExpired(p.round, now) {
			unsigned := p.round.UnsignedInputs()
			blames := make([]blame, 0, len(unsigned))
			for _, in := range unsigned {
				blames = append(blames, blame{in, domain.BlameSigningTimeout})
			}
			p.fail(
				domain.FailSigningTimeout,
				fmt.Sprintf("%d inputs not signed", len(unsigned)), blames,
			)
		}
	}
}

func (p *poolRunner) expireConfirming(now time.Time) {
	window := p.svc.timing.confirmWindow(p.svc.transport.HeartbeatInterval())
	for _, in := range p.round.ExpireConfirming(now.Add(-window)) {
		if p.svc.transport.RequeueOnConfirmExpiry() {
			p.requeue(in, "confirmation timeout", "")
			continue
		}
		log.Debugf("dropped input %s, not confirmed in time", in.Outpoint)
	}
}

// refreshSurge turns surge off while the pool lacks liquidity.
func (p *poolRunner) refreshSurge() {
	if !p.pool.SurgeDisabledForLowLiquidity {
		return
	}
	disabled := p.liquidity.Size() < p.pool.LowLiquidityThreshold
	if disabled != p.round.IsSurgeDisabled() {
		p.round.DisableSurge(disabled)
		log.Debugf("pool %s: surge disabled: %t", p.pool.Id, disabled)
	}
}

// sweep invites random queued inputs to fill the free slots of the round.
func (p *poolRunner) sweep() {
	if p.round == nil || p.round.PhaseCode() != domain.ConfirmInputPhase {
		return
	}

	for _, in := range p.round.EvictSurplusLiquidity() {
		log.Debugf("evicted liquidity %s from round %s, slots shrank", in.Outpoint, p.round.Id)
		p.requeue(in, "round slots shrank", "")
	}

	roundId := p.round.Id
	tried := make(map[domain.InputKey]struct{})
	eligible := func(in domain.RegisteredInput) bool {
		if in.QuarantinedRound == roundId {
			return false
		}
		if _, ok := tried[in.Key()]; ok {
			return false
		}
		return !p.inRound(domain.MatchIdentity(in.Identity))
	}

	now := time.Now()
	p.inviteFrom(p.mustMix, false, eligible, tried, now)
	p.inviteFrom(p.liquidity, true, eligible, tried, now)
}

func (p *poolRunner) inviteFrom(
	queue domain.InputRegistry, liquidity bool, eligible domain.InputPredicate,
	tried map[domain.InputKey]struct{}, now time.Time,
) {
	for {
		capacity := p.pool.AnonymitySet + p.round.SurgeLevel -
			p.admitted.Size() - p.confirming.Size()
		slots := p.round.AvailableMustMixSlots()
		if liquidity {
			slots = p.round.AvailableLiquiditySlots()
		}
		slots -= p.confirming.SizeMatching(domain.MatchLiquidity(liquidity))
		if min(capacity, slots) < 1 {
			return
		}

		input, ok := queue.RemoveRandomMatching(eligible)
		if !ok {
			return
		}
		tried[input.Key()] = struct{}{}

		if err := p.round.CheckAdmission(*input); err != nil {
			p.putBack(queue, *input)
			continue
		}
		if err := p.round.AddConfirming(*input, now); err != nil {
			log.WithError(err).Debugf("failed to invite input %s", input.Outpoint)
			p.putBack(queue, *input)
			continue
		}
		if err := p.invite(*input, now); err != nil {
			// nolint:errcheck
			p.round.RemoveInput(input.Key())
			log.WithError(err).Debugf("dropped input %s, client unreachable", input.Outpoint)
		}
	}
}

func (p *poolRunner) invite(input domain.RegisteredInput, now time.Time) error {
	pubkey := p.round.PublicKey()
	window := p.svc.timing.confirmWindow(p.svc.transport.HeartbeatInterval())

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()
	return p.svc.transport.Deliver(ctx, input.Identity, ports.Message{
		Type:    ports.MsgConfirmInputInvite,
		PoolId:  p.pool.Id,
		RoundId: p.round.Id,
		Body: ConfirmInputInvite{
			Outpoint:     input.Outpoint.String(),
			Denomination: p.pool.Denomination,
			PublicKey: BlindPublicKey{
				Modulus:  hex.EncodeToString(pubkey.N.Bytes()),
				Exponent: pubkey.E,
			},
			Deadline: now.Add(window).Unix(),
		},
		Timestamp: now.Unix(),
	})
}

// checkReady moves the round to outputs registration once ready. When surge
// slots are open and not all taken, the round waits for them up to the surge
// wait delay.
func (p *poolRunner) checkReady(now time.Time) {
	if !p.round.IsReady() {
		return
	}
	if p.round.SurgeLevel > 0 && !p.round.IsFull() {
		readySince := p.round.MarkReady(now)
		if !p.svc.timing.isSurgeWaitOver(readySince, now) {
			p.sweep()
			return
		}
	}
	p.startRegisterOutput()
}

func (p *poolRunner) startRegisterOutput() {
	for _, in := range p.confirming.FindAll(domain.MatchAll) {
		if removed, err := p.round.RemoveInput(in.Key()); err == nil {
			p.requeue(*removed, "round is full", "")
		}
	}

	if err := p.round.StartRegisterOutput(); err != nil {
		p.fail(domain.FailInternal, err.Error(), nil)
		return
	}

	log.Infof(
		"round %s: started outputs registration with %d must-mix and %d liquidity inputs (surge %d)",
		p.round.Id, p.round.MustMixCount(), p.round.LiquidityCount(), p.round.SurgeLevel,
	)
	p.broadcast(ports.MsgRegisterOutputStart, RegisterOutputStart{
		Inputs:   p.admitted.Size(),
		Deadline: unixOrZero(p.svc.timing.phaseDeadline(p.round)),
	})
}

func (p *poolRunner) startReveal() {
	if err := p.round.StartRevealOutput(); err != nil {
		p.fail(domain.FailInternal, err.Error(), nil)
		return
	}
	p.broadcast(ports.MsgRevealOutputRequest, RevealOutputRequest{
		Deadline: unixOrZero(p.svc.timing.phaseDeadline(p.round)),
	})
}

func (p *poolRunner) endReveal() {
	phase, ok := p.round.Phase.(*domain.RevealOutput)
	if !ok {
		return
	}

	culprits := p.round.RevealBlames()
	blames := make([]blame, 0, len(culprits))
	for _, in := range culprits {
		reason := domain.BlameRevealMismatch
		if _, revealed := phase.Revealed[in.Identity]; !revealed {
			reason = domain.BlameRevealMissing
		}
		blames = append(blames, blame{in, reason})
	}
	p.fail(
		domain.FailRevealOutput, fmt.Sprintf("%d inputs blamed", len(blames)), blames,
	)
}

func (p *poolRunner) startSigning() {
	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	inputs := p.round.SortedInputs()
	for _, in := range inputs {
		unspent, err := p.svc.blockchain.IsUnspent(ctx, in.Outpoint)
		if err != nil {
			p.fail(
				domain.FailInternal,
				fmt.Sprintf("failed to check input %s: %s", in.Outpoint, err), nil,
			)
			return
		}
		if !unspent {
			p.fail(
				domain.FailInputSpent, in.Outpoint.String(),
				[]blame{{in, domain.BlameInputSpent}},
			)
			return
		}
	}

	tx, err := p.svc.builder.BuildJointTx(inputs, p.round.SortedOutputs(), p.pool.Denomination)
	if err != nil {
		p.fail(domain.FailTxAssembly, err.Error(), nil)
		return
	}
	if err := p.round.StartSigning(tx); err != nil {
		p.fail(domain.FailInternal, err.Error(), nil)
		return
	}

	log.Infof("round %s: started signing", p.round.Id)
	deadline := unixOrZero(p.svc.timing.phaseDeadline(p.round))
	for i, in := range inputs {
		p.svc.deliver(ctx, in.Identity, ports.Message{
			Type:    ports.MsgSigningRequest,
			PoolId:  p.pool.Id,
			RoundId: p.round.Id,
			Body: SigningRequest{
				Tx:         tx,
				InputIndex: i,
				Deadline:   deadline,
			},
		})
	}
}

func (p *poolRunner) finalize() {
	phase, ok := p.round.Phase.(*domain.Signing)
	if !ok {
		return
	}

	inputs := p.round.SortedInputs()
	witnesses := p.round.Witnesses()
	tx := phase.UnsignedTx
	for i := range inputs {
		signed, err := p.svc.builder.ApplyWitness(tx, i, witnesses[i])
		if err != nil {
			p.fail(
				domain.FailInvalidWitness, err.Error(),
				[]blame{{inputs[i], domain.BlameInvalidWitness}},
			)
			return
		}
		tx = signed
	}

	if err := p.svc.builder.Verify(tx, inputs); err != nil {
		var witnessErr ports.InvalidWitnessError
		if errors.As(err, &witnessErr) &&
			witnessErr.InputIndex >= 0 && witnessErr.InputIndex < len(inputs) {
			p.fail(
				domain.FailInvalidWitness, err.Error(),
				[]blame{{inputs[witnessErr.InputIndex], domain.BlameInvalidWitness}},
			)
			return
		}
		p.fail(domain.FailTxAssembly, err.Error(), nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()
	txid, err := p.svc.blockchain.Broadcast(ctx, tx)
	if err != nil {
		p.fail(domain.FailBroadcast, err.Error(), nil)
		return
	}

	if err := p.round.Succeed(txid, tx); err != nil {
		p.fail(domain.FailInternal, err.Error(), nil)
		return
	}
	log.Infof("round %s: mix tx %s broadcasted", p.round.Id, txid)
	p.endRound()
}

// fail reports the culprits to the fraud service and terminates the round.
func (p *poolRunner) fail(reason, info string, blames []blame) {
	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	keys := make([]domain.InputKey, 0, len(blames))
	for _, b := range blames {
		keys = append(keys, b.input.Key())
		if err := p.svc.fraud.Blame(ctx, b.input, b.reason, p.round.Id); err != nil {
			log.WithError(err).Warnf("failed to blame input %s", b.input.Outpoint)
		}
	}

	p.round.Fail(reason, info, keys)
	log.Warnf("round %s failed: %s (%s)", p.round.Id, reason, info)
	p.endRound()
}

// endRound stores the outcome of the terminated round, notifies its
// participants and starts the next round. Inputs of a failed round that were
// not blamed are put back in queue but excluded from the next round.
func (p *poolRunner) endRound() {
	round := p.round
	if p.stopWatchdog != nil {
		p.stopWatchdog()
		p.stopWatchdog = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	outcome := round.Outcome()
	if err := p.svc.repoManager.Rounds().AddRoundOutcome(ctx, *outcome); err != nil {
		log.WithError(err).Warnf("failed to store outcome of round %s", round.Id)
	}

	blamed := make(map[domain.InputKey]struct{})
	for _, key := range outcome.Blamed {
		blamed[key] = struct{}{}
	}

	victims := make([]domain.RegisteredInput, 0)
	for _, in := range p.admitted.DrainAll() {
		_, isBlamed := blamed[in.Key()]
		p.svc.deliver(ctx, in.Identity, ports.Message{
			Type:    ports.MsgRoundResult,
			PoolId:  p.pool.Id,
			RoundId: round.Id,
			Body: RoundResult{
				Success: outcome.IsSucceeded(),
				Txid:    outcome.Txid,
				Reason:  outcome.FailReason,
				Info:    outcome.FailInfo,
				Blamed:  isBlamed,
			},
		})
		if round.IsFailed() && !isBlamed && !in.Offline {
			victims = append(victims, in)
		}
	}
	leftovers := p.confirming.DrainAll()

	if err := p.startRound(victims, leftovers); err != nil {
		log.WithError(err).Errorf("failed to start new round in pool %s", p.pool.Id)
	}
}

// requeue puts an input back in queue. A non empty quarantinedRound excludes
// the input from that round.
func (p *poolRunner) requeue(input domain.RegisteredInput, reason, quarantinedRound string) {
	input.ConfirmingSince = time.Time{}
	input.SignedBordereau = nil
	input.Offline = false
	input.QuarantineReason = ""
	input.QuarantinedRound = ""
	if len(quarantinedRound) > 0 {
		input.QuarantineReason = reason
		input.QuarantinedRound = quarantinedRound
	}

	if err := p.queue(input.Liquidity).Put(input); err != nil {
		log.WithError(err).Warnf("failed to requeue input %s", input.Outpoint)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()
	p.svc.deliver(ctx, input.Identity, ports.Message{
		Type:   ports.MsgInputRequeued,
		PoolId: p.pool.Id,
		Body: InputRequeued{
			Outpoint:    input.Outpoint.String(),
			Reason:      reason,
			Quarantined: len(quarantinedRound) > 0,
		},
	})
}

func (p *poolRunner) putBack(queue domain.InputRegistry, input domain.RegisteredInput) {
	if err := queue.Put(input); err != nil {
		log.WithError(err).Warnf("failed to put back input %s", input.Outpoint)
	}
}

func (p *poolRunner) broadcast(msgType ports.MessageType, body any) {
	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	for _, in := range p.admitted.FindAll(domain.MatchAll) {
		p.svc.deliver(ctx, in.Identity, ports.Message{
			Type:    msgType,
			PoolId:  p.pool.Id,
			RoundId: p.round.Id,
			Body:    body,
		})
	}
}

func (p *poolRunner) checkRound(roundId string) error {
	if p.round.Id != roundId {
		return errRoundMismatch{expected: p.round.Id, got: roundId}
	}
	if p.round.IsTerminal() {
		return domain.ErrRoundTerminated
	}
	return nil
}

func (p *poolRunner) queue(liquidity bool) domain.InputRegistry {
	if liquidity {
		return p.liquidity
	}
	return p.mustMix
}

func (p *poolRunner) inRound(match domain.InputPredicate) bool {
	if _, ok := p.admitted.Find(match); ok {
		return true
	}
	_, ok := p.confirming.Find(match)
	return ok
}

// holds is safe to call outside of the run loop.
func (p *poolRunner) holds(match domain.InputPredicate) bool {
	if _, ok := p.mustMix.Find(match); ok {
		return true
	}
	if _, ok := p.liquidity.Find(match); ok {
		return true
	}
	return p.inRound(match)
}

func (p *poolRunner) refreshStatus() {
	minValue, maxValue := p.pool.MustMixValueRange()
	status := PoolStatus{
		PoolId:             p.pool.Id,
		Denomination:       p.pool.Denomination,
		MustMixBalanceMin:  minValue,
		MustMixBalanceCap:  p.pool.MustMixBalanceCap(),
		MustMixBalanceMax:  maxValue,
		MinMustMix:         p.pool.MinMustMix,
		MinLiquidity:       p.pool.MinLiquidity,
		AnonymitySet:       p.pool.AnonymitySet,
		NumMustMixQueued:   p.mustMix.Size(),
		NumLiquidityQueued: p.liquidity.Size(),
	}
	if round := p.round; round != nil {
		status.Round = &RoundStatus{
			Id:             round.Id,
			Phase:          round.PhaseCode().String(),
			PhaseStartedAt: round.PhaseStartedAt(round.PhaseCode()),
			NumAdmitted:    p.admitted.Size(),
			NumConfirming:  p.confirming.Size(),
			NumMustMix:     round.MustMixCount(),
			NumLiquidity:   round.LiquidityCount(),
			MinerFee:       round.MinerFeeAccumulated(),
			SurgeLevel:     round.SurgeLevel,
		}
	}

	p.statusLock.Lock()
	defer p.statusLock.Unlock()
	p.status = status
}

func (p *poolRunner) getStatus() PoolStatus {
	p.statusLock.RLock()
	defer p.statusLock.RUnlock()
	return p.status
}

func (p *poolRunner) getRoundId() string {
	p.statusLock.RLock()
	defer p.statusLock.RUnlock()
	if p.status.Round == nil {
		return ""
	}
	return p.status.Round.Id
}

func keyMatcher(key domain.InputKey) domain.InputPredicate {
	return func(in domain.RegisteredInput) bool { return in.Key() == key }
}
