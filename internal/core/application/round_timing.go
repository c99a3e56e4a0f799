package application

import (
	"time"

	"github.com/ark-network/coinjoin/internal/core/domain"
)

type roundTiming struct {
	confirmInputTimeout   time.Duration
	registerOutputTimeout time.Duration
	revealOutputTimeout   time.Duration
	signingTimeout        time.Duration
	surgeWaitDelay        time.Duration
}

// confirmWindow is the time given to an invited input to confirm, at least
// twice the transport heartbeat.
func (t roundTiming) confirmWindow(heartbeat time.Duration) time.Duration {
	return max(t.confirmInputTimeout, 2*heartbeat)
}

func (t roundTiming) phaseTimeout(phase domain.PhaseCode) time.Duration {
	switch phase {
	case domain.RegisterOutputPhase:
		return t.registerOutputTimeout
	case domain.RevealOutputPhase:
		return t.revealOutputTimeout
	case domain.SigningPhase:
		return t.signingTimeout
	default:
		return 0
	}
}

// phaseDeadline is zero for phases without timeout.
func (t roundTiming) phaseDeadline(round *domain.Round) time.Time {
	phase := round.PhaseCode()
	timeout := t.phaseTimeout(phase)
	if timeout <= 0 {
		return time.Time{}
	}
	return round.PhaseStartedAt(phase).Add(timeout)
}

func (t roundTiming) isPhaseExpired(round *domain.Round, now time.Time) bool {
	deadline := t.phaseDeadline(round)
	return !deadline.IsZero() && !now.Before(deadline)
}

func (t roundTiming) isSurgeWaitOver(readySince, now time.Time) bool {
	return !now.Before(readySince.Add(t.surgeWaitDelay))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
