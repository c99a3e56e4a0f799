package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Outpoint struct {
	Txid string
	VOut uint32
}

func ParseOutpoint(s string) (Outpoint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Outpoint{}, fmt.Errorf("invalid outpoint %s, must be in form txid:vout", s)
	}
	if len(parts[0]) != 64 {
		return Outpoint{}, fmt.Errorf("invalid outpoint txid %s", parts[0])
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("invalid outpoint index %s", parts[1])
	}
	return Outpoint{Txid: parts[0], VOut: uint32(vout)}, nil
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid, o.VOut)
}

// InputKey identifies a registered input. Registering the same pair twice
// overwrites the previous entry.
type InputKey struct {
	Outpoint Outpoint
	Identity string
}

func (k InputKey) String() string {
	return fmt.Sprintf("%s@%s", k.Outpoint, k.Identity)
}

type RegisteredInput struct {
	Identity      string
	PoolId        string
	Outpoint      Outpoint
	Value         uint64
	Script        string
	Address       string
	Liquidity     bool
	Confirmations uint32
	UserHash      string
	CreatedAt     time.Time

	// set only while the input sits in a round's confirming set
	ConfirmingSince time.Time

	QuarantineReason string
	QuarantinedRound string

	// signed blinded bordereau issued when the input got admitted
	SignedBordereau []byte
	Offline         bool
}

func (i RegisteredInput) Key() InputKey {
	return InputKey{Outpoint: i.Outpoint, Identity: i.Identity}
}

func (i RegisteredInput) IsConfirming() bool {
	return !i.ConfirmingSince.IsZero()
}

func (i RegisteredInput) IsQuarantined() bool {
	return len(i.QuarantineReason) > 0
}

// MinerFee is the amount above the denomination a must-mix input brings to
// the mix.
func (i RegisteredInput) MinerFee(denomination uint64) uint64 {
	if i.Liquidity || i.Value <= denomination {
		return 0
	}
	return i.Value - denomination
}

func (i RegisteredInput) String() string {
	class := "mustmix"
	if i.Liquidity {
		class = "liquidity"
	}
	return fmt.Sprintf("%s (%s, %d sats)", i.Outpoint, class, i.Value)
}
