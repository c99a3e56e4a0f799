package domain

import (
	"errors"
	"fmt"
)

// protocol violations, reported to the offending client only
var (
	ErrInvalidSignature         = errors.New("invalid bordereau signature")
	ErrBordereauAlreadyRedeemed = errors.New("bordereau already redeemed")
	ErrAddressAlreadyRegistered = errors.New("receive address already registered")
	ErrAddressReuse             = errors.New("receive address reuses a mixed input address")
	ErrInvalidAddress           = errors.New("invalid receive address")
	ErrAlreadySigned            = errors.New("input already signed")
	ErrAlreadyRevealed          = errors.New("output already revealed")
	ErrAddressAlreadyRevealed   = errors.New("output address already revealed by another input")
)

var (
	ErrInputNotFound   = errors.New("input not found")
	ErrNotAdmitted     = errors.New("input is not admitted to the round")
	ErrRoundNotFound   = errors.New("round not found")
	ErrPoolNotFound    = errors.New("pool not found")
	ErrRoundTerminated = errors.New("round already terminated")
)

// InputRejectedError is returned for candidates that can never be admitted
// as they are: malformed, unsigned, banned, unconfirmed or out of range.
type InputRejectedError struct {
	Outpoint Outpoint
	Reason   string
}

func (e InputRejectedError) Error() string {
	return fmt.Sprintf("input %s rejected: %s", e.Outpoint, e.Reason)
}

// AdmissionDeferredError means the candidate is valid but the round has no
// slot for it right now. Callers queue the input instead of dropping it.
type AdmissionDeferredError struct {
	Reason string
}

func (e AdmissionDeferredError) Error() string {
	return fmt.Sprintf("admission deferred: %s", e.Reason)
}

func IsAdmissionDeferred(err error) bool {
	var deferred AdmissionDeferredError
	return errors.As(err, &deferred)
}

// PhaseError is returned when an operation is not allowed in the round's
// current phase.
type PhaseError struct {
	Operation string
	Phase     PhaseCode
}

func (e PhaseError) Error() string {
	return fmt.Sprintf("not in a valid phase to %s (current phase: %s)", e.Operation, e.Phase)
}
