package ports

import (
	"fmt"

	"github.com/ark-network/coinjoin/internal/core/domain"
)

type TxBuilder interface {
	// GetTxOutput decodes the given tx and returns its output at vout.
	GetTxOutput(tx string, vout uint32) (*TxOutput, error)
	// VerifyMessage checks the compact signature of message made with the
	// key behind address.
	VerifyMessage(address, message, signature string) error
	// ValidateAddress checks that address can receive a mix output on the
	// configured network.
	ValidateAddress(address string) error
	// BuildJointTx assembles the unsigned mix tx. Inputs and outputs are
	// expected in canonical order, every output gets the denomination.
	BuildJointTx(
		inputs []domain.RegisteredInput, outputs []string, denomination uint64,
	) (string, error)
	ApplyWitness(tx string, inputIndex int, witness [][]byte) (string, error)
	// Verify runs the scripts of every input of tx. An InvalidWitnessError is
	// returned if one of them fails.
	Verify(tx string, prevouts []domain.RegisteredInput) error
	GetTxid(tx string) (string, error)
}

type TxOutput struct {
	Value   uint64
	Script  string
	Address string
}

type InvalidWitnessError struct {
	InputIndex int
	Reason     string
}

func (e InvalidWitnessError) Error() string {
	return fmt.Sprintf("invalid witness for input %d: %s", e.InputIndex, e.Reason)
}
