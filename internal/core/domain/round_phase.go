package domain

import "time"

const (
	UndefinedPhase PhaseCode = iota
	ConfirmInputPhase
	RegisterOutputPhase
	RevealOutputPhase
	SigningPhase
	SuccessPhase
	FailPhase
)

type PhaseCode int

func (c PhaseCode) String() string {
	switch c {
	case ConfirmInputPhase:
		return "CONFIRM_INPUT"
	case RegisterOutputPhase:
		return "REGISTER_OUTPUT"
	case RevealOutputPhase:
		return "REVEAL_OUTPUT"
	case SigningPhase:
		return "SIGNING"
	case SuccessPhase:
		return "SUCCESS"
	case FailPhase:
		return "FAIL"
	default:
		return "UNDEFINED"
	}
}

func (c PhaseCode) IsTerminal() bool {
	return c == SuccessPhase || c == FailPhase
}

// Phase is the state carried by a round in one of its phases. Each variant
// holds only the data meaningful while the round is in that phase.
type Phase interface {
	Code() PhaseCode
}

type ConfirmInput struct {
	// set once the round is ready to move on but still waits for surge
	// inputs
	ReadySince time.Time
}

type RegisterOutput struct {
	Outputs  map[string]struct{}
	Redeemed map[string]struct{}
}

type RevealOutput struct {
	Outputs  map[string]struct{}
	Revealed map[string]string // identity -> revealed address
}

type Signing struct {
	Inputs     []RegisteredInput
	Outputs    []string
	UnsignedTx string
	Witnesses  map[string][][]byte // identity -> witness
}

type Success struct {
	Txid string
	Tx   string
}

type Fail struct {
	Reason string
	Info   string
	Blamed []InputKey
}

func (ConfirmInput) Code() PhaseCode    { return ConfirmInputPhase }
func (*RegisterOutput) Code() PhaseCode { return RegisterOutputPhase }
func (*RevealOutput) Code() PhaseCode   { return RevealOutputPhase }
func (*Signing) Code() PhaseCode        { return SigningPhase }
func (Success) Code() PhaseCode         { return SuccessPhase }
func (Fail) Code() PhaseCode            { return FailPhase }
